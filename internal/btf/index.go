package btf

import (
	"encoding/binary"
)

// Index is the fully linked, read-only type catalogue. Entry 0 is the
// implicit void type; every Ref and member Type field is guaranteed to
// be a valid index into the arena.
type Index struct {
	types []Type
	order binary.ByteOrder
}

// NumTypes returns the number of catalogue entries, including void.
func (ix *Index) NumTypes() int {
	return len(ix.types)
}

// ByteOrder returns the byte order the catalogue was recorded in.
// It is a property of the compiled object, not of the host.
func (ix *Index) ByteOrder() binary.ByteOrder {
	return ix.order
}

// Lookup returns the entry for a TypeID in O(1).
func (ix *Index) Lookup(id TypeID) (*Type, bool) {
	if int(id) >= len(ix.types) {
		return nil, false
	}
	return &ix.types[id], true
}

// MustLookup panics when id is invalid. Only for use after the parser
// has validated all references.
func (ix *Index) MustLookup(id TypeID) *Type {
	t, ok := ix.Lookup(id)
	if !ok {
		panic("btf: invalid TypeID after validation")
	}
	return t
}

// Resolve follows typedef and qualifier chains down to the underlying
// type. The chain length is bounded by the arena size, so a malformed
// cycle cannot hang the caller.
func (ix *Index) Resolve(id TypeID) TypeID {
	for range ix.types {
		t, ok := ix.Lookup(id)
		if !ok {
			return id
		}
		if t.Kind != KindTypedef && !t.Kind.IsQualifier() {
			return id
		}
		id = t.Ref
	}
	return id
}

// Datasecs returns the IDs of all data section entries in index order.
func (ix *Index) Datasecs() []TypeID {
	var out []TypeID
	for i := range ix.types {
		if ix.types[i].Kind == KindDatasec {
			out = append(out, TypeID(i))
		}
	}
	return out
}
