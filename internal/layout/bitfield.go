package layout

import (
	"fmt"

	"skelgen/internal/btf"
)

// bitfield describes one bitfield member before it is placed into a
// storage unit.
type bitfield struct {
	width     int
	signed    bool
	rawBitOff int // bit offset from the start of the enclosing type
	unitSize  int // declared storage unit size in bytes
	// unitOffset is the byte offset of the declared storage unit
	// window containing the member's bits.
	unitOffset int
	// spanStart/spanEnd bound the bytes actually touched by the bit
	// range. Adjacent members sharing bytes are clustered into one
	// emitted unit; bytes belonging to other plain members never
	// appear in a span, even when the declared unit window overlaps
	// them.
	spanStart int
	spanEnd   int
}

// bitfieldInfo decides whether a member is a bitfield and resolves its
// width, signedness and storage unit. Returns nil for plain members.
//
// Modern catalogues set kind_flag on the enclosing type and encode the
// width in the member record; legacy ones leave kind_flag clear and
// narrow the underlying int type instead. Both forms are honoured.
func (e *Engine) bitfieldInfo(id btf.TypeID, ordinal int, m *btf.Member) (*bitfield, *Error) {
	under := e.Types.MustLookup(e.Types.Resolve(m.Type))

	width := int(m.BitfieldSize)
	if width == 0 {
		if under.Kind != btf.KindInt {
			return nil, nil
		}
		bits := int(under.Int.Bits)
		if under.Int.Offset == 0 && (bits == 0 || bits == int(under.Size)*8) {
			return nil, nil
		}
		width = bits
	}

	var unitSize int
	var signed bool
	switch under.Kind {
	case btf.KindInt:
		unitSize = int(under.Size)
		signed = under.Int.Signed()
	case btf.KindEnum, btf.KindEnum64:
		unitSize = int(under.Size)
		signed = under.KindFlag
	default:
		return nil, &Error{
			Kind: ErrBadOffset, Type: id, Member: ordinal,
			Msg: fmt.Sprintf("bitfield member %q over non-integer %s", m.Name, under.Kind),
		}
	}
	if unitSize <= 0 || width <= 0 || width > unitSize*8 {
		return nil, &Error{
			Kind: ErrBitfieldOverflow, Type: id, Member: ordinal,
			Msg: fmt.Sprintf("bitfield member %q has width %d in unit of %d bytes", m.Name, width, unitSize),
		}
	}

	unitBits := unitSize * 8
	bitOff := int(m.RawOffset)
	unitOffset := bitOff / unitBits * unitSize
	bitInUnit := bitOff - unitOffset*8
	if bitInUnit+width > unitBits {
		return nil, &Error{
			Kind: ErrBitfieldOverflow, Type: id, Member: ordinal,
			Msg: fmt.Sprintf("member %q occupies bits [%d, %d) of a %d-bit unit",
				m.Name, bitInUnit, bitInUnit+width, unitBits),
		}
	}

	return &bitfield{
		width:      width,
		signed:     signed,
		rawBitOff:  bitOff,
		unitSize:   unitSize,
		unitOffset: unitOffset,
		spanStart:  bitOff / 8,
		spanEnd:    (bitOff + width + 7) / 8,
	}, nil
}

// placeBitfield clusters a struct bitfield member into the trailing
// storage unit when their byte spans touch, or opens a new unit.
// Bit ranges inside a unit must be disjoint and non-decreasing.
func placeBitfield(id btf.TypeID, ordinal int, bf *bitfield, units *[]StorageUnit, cursor int) (int, FieldLayout, *Error) {
	merge := false
	if n := len(*units); n > 0 {
		last := &(*units)[n-1]
		if bf.spanStart <= last.Offset+last.Size && bf.spanStart >= last.Offset {
			merge = true
		}
	}

	if !merge && bf.spanStart < cursor {
		return 0, FieldLayout{}, &Error{
			Kind: ErrMemberOverlap, Type: id, Member: ordinal,
			Msg: fmt.Sprintf("bitfield bytes [%d, %d) overlap previous member ending at %d",
				bf.spanStart, bf.spanEnd, cursor),
		}
	}

	var unitIdx int
	if merge {
		unitIdx = len(*units) - 1
		unit := &(*units)[unitIdx]
		memberBitOff := bf.rawBitOff - unit.Offset*8
		prev := unit.Members[len(unit.Members)-1]
		if memberBitOff < prev.BitOffset+prev.Width {
			return 0, FieldLayout{}, &Error{
				Kind: ErrBitfieldOverflow, Type: id, Member: ordinal,
				Msg: fmt.Sprintf("bit range [%d, %d) overlaps previous bitfield ending at bit %d",
					memberBitOff, memberBitOff+bf.width, prev.BitOffset+prev.Width),
			}
		}
		if bf.spanEnd > unit.Offset+unit.Size {
			unit.Size = bf.spanEnd - unit.Offset
		}
		unit.Members = append(unit.Members, BitMember{
			Member:    ordinal,
			BitOffset: memberBitOff,
			Width:     bf.width,
			Signed:    bf.signed,
		})
	} else {
		*units = append(*units, StorageUnit{
			Offset: bf.spanStart,
			Size:   bf.spanEnd - bf.spanStart,
			Members: []BitMember{{
				Member:    ordinal,
				BitOffset: bf.rawBitOff - bf.spanStart*8,
				Width:     bf.width,
				Signed:    bf.signed,
			}},
		})
		unitIdx = len(*units) - 1
	}

	unit := (*units)[unitIdx]
	return unitIdx, FieldLayout{
		Offset:   unit.Offset,
		Size:     unit.Size,
		Bitfield: true,
		Unit:     unitIdx,
	}, nil
}
