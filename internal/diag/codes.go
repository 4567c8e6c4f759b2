package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Catalogue structure
	CatInfo               Code = 1000
	CatMalformed          Code = 1001
	CatTruncated          Code = 1002
	CatBadMagic           Code = 1003
	CatIndexOutOfRange    Code = 1004
	CatUnknownKind        Code = 1005
	CatBadStringOffset    Code = 1006
	CatBadMemberRecord    Code = 1007
	CatBadDatasecVariable Code = 1008

	// Layout resolution
	LayInfo             Code = 2000
	LayMismatch         Code = 2001
	LayBitfieldOverflow Code = 2002
	LayMemberMisaligned Code = 2003
	LayRecursiveValue   Code = 2004
	LayNegativeSize     Code = 2005

	// Identifier resolution
	NameInfo         Code = 3000
	NameUnresolvable Code = 3001

	// Emission
	GenInfo                 Code = 4000
	GenUnsupportedConstruct Code = 4001
	GenSkippedDependent     Code = 4002
	GenPointerWidth         Code = 4003
)

// IsFatal reports whether a code aborts generation with no output.
// Unsupported constructs are recoverable per type; everything that
// signals a malformed catalogue or an ABI-breaking layout disagreement
// is fatal.
func (c Code) IsFatal() bool {
	switch c {
	case CatMalformed, CatTruncated, CatBadMagic, CatIndexOutOfRange,
		CatUnknownKind, CatBadStringOffset, CatBadMemberRecord,
		CatBadDatasecVariable:
		return true
	case LayMismatch, LayBitfieldOverflow, LayRecursiveValue, LayNegativeSize:
		return true
	case NameUnresolvable:
		return true
	}
	return false
}

func (c Code) String() string {
	switch {
	case c >= 4000:
		return fmt.Sprintf("GEN%04d", uint16(c))
	case c >= 3000:
		return fmt.Sprintf("NAME%04d", uint16(c))
	case c >= 2000:
		return fmt.Sprintf("LAY%04d", uint16(c))
	case c >= 1000:
		return fmt.Sprintf("CAT%04d", uint16(c))
	default:
		return fmt.Sprintf("UNK%04d", uint16(c))
	}
}
