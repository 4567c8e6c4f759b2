package layout

import (
	"fmt"
	"strings"

	"skelgen/internal/btf"
)

// ErrorKind enumerates types of layout resolution errors.
type ErrorKind uint8

const (
	// ErrMismatch indicates computed and declared sizes disagree.
	ErrMismatch ErrorKind = iota + 1
	// ErrRecursiveValue indicates a by-value cycle in the type graph.
	ErrRecursiveValue
	// ErrUnsized indicates a type with no layout (fwd, void, func)
	// used where a sized type is required.
	ErrUnsized
	// ErrBitfieldOverflow indicates a bitfield range escaping its
	// storage unit.
	ErrBitfieldOverflow
	// ErrMemberOverlap indicates a member starting before the previous
	// member ends.
	ErrMemberOverlap
	// ErrBadOffset indicates a declared offset that is not expressible
	// (plain member on a non-byte boundary, variable outside its
	// section, and similar).
	ErrBadOffset
)

// Error reports a failed layout resolution. Mismatches are fatal for
// the whole generation run: emitting accessors over a wrong layout
// would silently corrupt memory.
type Error struct {
	Kind   ErrorKind
	Type   btf.TypeID
	Member int // member ordinal, -1 when not member-specific

	Computed int
	Declared int
	Cycle    []btf.TypeID // for ErrRecursiveValue
	Msg      string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrMismatch:
		return fmt.Sprintf("layout mismatch (type#%d): computed %d bytes, catalogue declares %d",
			e.Type, e.Computed, e.Declared)
	case ErrRecursiveValue:
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("by-value type cycle has no finite layout (cycle: %s)",
			strings.Join(parts, " -> "))
	case ErrUnsized:
		return fmt.Sprintf("type#%d has no layout: %s", e.Type, e.Msg)
	case ErrBitfieldOverflow:
		return fmt.Sprintf("bitfield escapes its storage unit (type#%d member %d): %s",
			e.Type, e.Member, e.Msg)
	case ErrMemberOverlap:
		return fmt.Sprintf("member overlap (type#%d member %d): %s", e.Type, e.Member, e.Msg)
	case ErrBadOffset:
		return fmt.Sprintf("bad declared offset (type#%d member %d): %s", e.Type, e.Member, e.Msg)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
