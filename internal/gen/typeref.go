package gen

import (
	"fmt"

	"skelgen/internal/btf"
)

// stripQualifiers follows const/volatile/restrict/type-tag edges only.
// Typedefs stay visible so named aliases are referenced by their Go
// name rather than flattened away.
func (e *Emitter) stripQualifiers(id btf.TypeID) btf.TypeID {
	for i := 0; i < e.ix.NumTypes(); i++ {
		t := e.ix.MustLookup(id)
		if !t.Kind.IsQualifier() {
			return id
		}
		id = t.Ref
	}
	return id
}

// goTypeRef renders the Go type expression used wherever the catalogue
// type appears as a field, array element, accessor value or datasec
// variable.
func (e *Emitter) goTypeRef(id btf.TypeID) string {
	id = e.stripQualifiers(id)
	t := e.ix.MustLookup(id)

	switch t.Kind {
	case btf.KindTypedef:
		if name, ok := e.typeNames[id]; ok {
			return name
		}
		return e.goTypeRef(t.Ref)
	case btf.KindStruct, btf.KindUnion, btf.KindEnum, btf.KindEnum64:
		if name, ok := e.typeNames[id]; ok {
			return name
		}
		return fmt.Sprintf("[%d]uint8", t.Size)
	case btf.KindInt:
		return intRef(t)
	case btf.KindFloat:
		switch t.Size {
		case 4:
			return "float32"
		case 8:
			return "float64"
		}
		return fmt.Sprintf("[%d]uint8", t.Size)
	case btf.KindPointer:
		return "skel.Ptr"
	case btf.KindArray:
		return fmt.Sprintf("[%d]%s", t.Array.Nelems, e.goTypeRef(t.Array.Elem))
	}
	// Void, forward declarations and functions have no value
	// representation; valid emission never reaches here because those
	// types only appear behind pointers.
	return "[0]uint8"
}

// intRef maps an integer entry onto the Go primitive with the same
// width and signedness. Oversized integers (__int128) become opaque
// byte arrays.
func intRef(t *btf.Type) string {
	if t.Int.Encoding&btf.IntBool != 0 && t.Size == 1 {
		return "bool"
	}
	signed := t.Int.Signed()
	switch t.Size {
	case 1:
		if signed {
			return "int8"
		}
		return "uint8"
	case 2:
		if signed {
			return "int16"
		}
		return "uint16"
	case 4:
		if signed {
			return "int32"
		}
		return "uint32"
	case 8:
		if signed {
			return "int64"
		}
		return "uint64"
	}
	return fmt.Sprintf("[%d]uint8", t.Size)
}

// scalarClass describes how an accessor moves a scalar through its raw
// storage.
type scalarClass int

const (
	scalarInt scalarClass = iota
	scalarBool
	scalarFloat
	scalarPtr
	scalarEnum
)

// scalarInfo resolves the accessor strategy for a scalar member: the
// Go value type, the raw width in bits, signedness and the class that
// picks the load/store wrapping. ok is false for non-scalars.
func (e *Emitter) scalarInfo(id btf.TypeID) (goType string, bits int, signed bool, class scalarClass, ok bool) {
	rid := e.ix.Resolve(id)
	t := e.ix.MustLookup(rid)
	switch t.Kind {
	case btf.KindInt:
		if t.Size > 8 {
			return "", 0, false, 0, false
		}
		if t.Int.Encoding&btf.IntBool != 0 && t.Size == 1 {
			return "bool", 8, false, scalarBool, true
		}
		return e.goTypeRef(id), int(t.Size) * 8, t.Int.Signed(), scalarInt, true
	case btf.KindEnum, btf.KindEnum64:
		return e.goTypeRef(id), int(t.Size) * 8, t.KindFlag, scalarEnum, true
	case btf.KindFloat:
		if t.Size != 4 && t.Size != 8 {
			return "", 0, false, 0, false
		}
		return e.goTypeRef(id), int(t.Size) * 8, false, scalarFloat, true
	case btf.KindPointer:
		return "skel.Ptr", 64, false, scalarPtr, true
	}
	return "", 0, false, 0, false
}

// underlyingGoInt picks the Go integer an enum or sized scalar reads
// back through when the named Go type itself is an integer kind.
func underlyingGoInt(bits int, signed bool) string {
	switch bits {
	case 8:
		if signed {
			return "int8"
		}
		return "uint8"
	case 16:
		if signed {
			return "int16"
		}
		return "uint16"
	case 32:
		if signed {
			return "int32"
		}
		return "uint32"
	default:
		if signed {
			return "int64"
		}
		return "uint64"
	}
}
