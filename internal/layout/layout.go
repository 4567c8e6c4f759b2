// Package layout resolves byte-exact memory layout for every type in
// the catalogue: sizes, alignments, per-member offsets and bitfield
// storage units, validated against the sizes the catalogue declares.
//
// Declared member offsets are authoritative — they come from the C
// compiler that produced the object. The engine recomputes everything
// it can from first principles and treats any disagreement with the
// declared data as fatal, because accessor code generated over a wrong
// layout would silently corrupt memory shared with the kernel.
package layout

import (
	"skelgen/internal/btf"
)

// FieldLayout is the resolved placement of one struct/union member or
// one datasec variable.
type FieldLayout struct {
	Offset int // byte offset from the start of the enclosing type
	Size   int
	Align  int

	// Bitfield placement. Unit indexes into TypeLayout.Units when
	// Bitfield is set; Offset then names the unit's byte offset.
	Bitfield bool
	Unit     int

	// Packed marks a member whose declared offset is below its natural
	// alignment. The emitter falls back to raw storage for these.
	Packed bool
}

// BitMember is one logical bitfield inside a storage unit.
type BitMember struct {
	Member    int // member ordinal within the enclosing type
	BitOffset int // bit offset within the unit, target numbering
	Width     int
	Signed    bool
}

// StorageUnit is the smallest addressable unit holding one or more
// packed bitfield members.
type StorageUnit struct {
	Offset  int // byte offset within the enclosing type
	Size    int // bytes; 1, 2, 4 or 8
	Members []BitMember
}

// TypeLayout is the resolved ABI layout of a type.
type TypeLayout struct {
	Size  int
	Align int

	// Composite-only:
	Fields []FieldLayout
	Units  []StorageUnit
}

// Engine computes and memoizes layout for catalogue types.
type Engine struct {
	Target Target
	Types  *btf.Index

	cache *cache
}

// New creates an Engine for the given target ABI over a parsed
// catalogue.
func New(target Target, ix *btf.Index) *Engine {
	return &Engine{
		Target: target,
		Types:  ix,
		cache:  newCache(),
	}
}

type resolveState struct {
	stack []btf.TypeID
	index map[btf.TypeID]int
}

func newResolveState() *resolveState {
	return &resolveState{index: make(map[btf.TypeID]int, 32)}
}

// LayoutOf resolves the layout of a type, caching both successes and
// failures. Pointer and function edges are layout leaves and never
// recurse into their target, so self-referential structs resolve in
// bounded time.
func (e *Engine) LayoutOf(id btf.TypeID) (TypeLayout, error) {
	l, err := e.layoutOf(id, newResolveState())
	if err != nil {
		return l, err
	}
	return l, nil
}

func (e *Engine) layoutOf(id btf.TypeID, state *resolveState) (TypeLayout, *Error) {
	if e.cache == nil {
		e.cache = newCache()
	}
	canon := e.Types.Resolve(id)
	if cached, ok := e.cache.get(canon); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[canon]; ok {
		cycle := append([]btf.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, canon)
		err := &Error{Kind: ErrRecursiveValue, Type: canon, Member: -1, Cycle: cycle}
		e.cache.put(canon, &cacheEntry{Layout: TypeLayout{Align: 1}, Err: err})
		return TypeLayout{Align: 1}, err
	}

	state.index[canon] = len(state.stack)
	state.stack = append(state.stack, canon)
	l, err := e.compute(canon, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, canon)

	e.cache.put(canon, &cacheEntry{Layout: l, Err: err})
	return l, err
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(id btf.TypeID) (int, error) {
	l, err := e.LayoutOf(id)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(id btf.TypeID) (int, error) {
	l, err := e.LayoutOf(id)
	return l.Align, err
}
