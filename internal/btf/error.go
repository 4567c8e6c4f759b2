package btf

import "fmt"

// ErrKind classifies catalogue parse failures.
type ErrKind uint8

const (
	// ErrTruncated indicates the blob ends before a declared region.
	ErrTruncated ErrKind = iota + 1
	ErrBadMagic
	ErrBadHeader
	ErrUnknownKind
	ErrIndexOutOfRange
	ErrBadStringOffset
	ErrBadRecord
)

// MalformedError reports a structurally invalid catalogue. Parsing
// stops at the first such error; no partial catalogue is returned.
type MalformedError struct {
	Kind   ErrKind
	Type   TypeID // catalogue index of the offending entry, when known
	Offset int    // byte offset into the blob, when known
	Msg    string
}

func (e *MalformedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Type != VoidID:
		return fmt.Sprintf("malformed catalogue (type#%d): %s", e.Type, e.Msg)
	case e.Offset > 0:
		return fmt.Sprintf("malformed catalogue (offset %#x): %s", e.Offset, e.Msg)
	default:
		return fmt.Sprintf("malformed catalogue: %s", e.Msg)
	}
}

func malformed(kind ErrKind, id TypeID, offset int, format string, args ...any) *MalformedError {
	return &MalformedError{
		Kind:   kind,
		Type:   id,
		Offset: offset,
		Msg:    fmt.Sprintf(format, args...),
	}
}
