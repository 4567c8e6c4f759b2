package diag

import "fmt"

// NoMember marks a diagnostic that points at a whole type rather than
// at one of its members.
const NoMember = -1

// Loc is a position inside the type catalogue: a type index plus an
// optional member ordinal within that type.
type Loc struct {
	Type   uint32
	Member int
}

// TypeLoc builds a Loc covering a whole catalogue entry.
func TypeLoc(typeID uint32) Loc {
	return Loc{Type: typeID, Member: NoMember}
}

// MemberLoc builds a Loc pointing at one member of a catalogue entry.
func MemberLoc(typeID uint32, member int) Loc {
	return Loc{Type: typeID, Member: member}
}

func (l Loc) String() string {
	if l.Member == NoMember {
		return fmt.Sprintf("type#%d", l.Type)
	}
	return fmt.Sprintf("type#%d.%d", l.Type, l.Member)
}

type Note struct {
	Loc Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Loc
	Notes    []Note
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s %s: %s", d.Severity, d.Code, d.Primary, d.Message)
}
