package layout

import (
	"fmt"
	"sort"

	"fortio.org/safecast"

	"skelgen/internal/btf"
)

func (e *Engine) compute(id btf.TypeID, state *resolveState) (TypeLayout, *Error) {
	t := e.Types.MustLookup(id)

	switch t.Kind {
	case btf.KindVoid:
		return TypeLayout{Align: 1}, &Error{Kind: ErrUnsized, Type: id, Member: -1, Msg: "void has no storage"}

	case btf.KindFwd:
		what := "struct"
		if t.KindFlag {
			what = "union"
		}
		return TypeLayout{Align: 1}, &Error{
			Kind: ErrUnsized, Type: id, Member: -1,
			Msg: fmt.Sprintf("forward-declared %s %q used by value", what, t.Name),
		}

	case btf.KindFunc, btf.KindFuncProto:
		return TypeLayout{Align: 1}, &Error{Kind: ErrUnsized, Type: id, Member: -1, Msg: "function type has no storage"}

	case btf.KindInt, btf.KindFloat, btf.KindEnum, btf.KindEnum64:
		size, err := safecast.Conv[int](t.Size)
		if err != nil || size <= 0 {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrUnsized, Type: id, Member: -1,
				Msg: fmt.Sprintf("%s with size %d", t.Kind, t.Size),
			}
		}
		return TypeLayout{Size: size, Align: e.naturalAlign(size)}, nil

	case btf.KindPointer:
		// Pointers are layout leaves: fixed target width, no recursion
		// into the pointee.
		return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil

	case btf.KindArray:
		return e.arrayLayout(id, t, state)

	case btf.KindStruct:
		return e.structLayout(id, t, state)

	case btf.KindUnion:
		return e.unionLayout(id, t, state)

	case btf.KindDatasec:
		return e.datasecLayout(id, t, state)

	case btf.KindVar:
		return e.layoutOf(t.Ref, state)

	default:
		// Typedefs and qualifiers are collapsed by Resolve before we
		// get here; decl_tag has no layout of its own.
		return TypeLayout{Align: 1}, &Error{
			Kind: ErrUnsized, Type: id, Member: -1,
			Msg: fmt.Sprintf("%s has no storage", t.Kind),
		}
	}
}

// naturalAlign returns the largest power of two not exceeding size,
// capped by the target's maximum scalar alignment.
func (e *Engine) naturalAlign(size int) int {
	a := 1
	for a*2 <= size {
		a *= 2
	}
	if max := e.Target.MaxAlign; max > 0 && a > max {
		a = max
	}
	return a
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (e *Engine) arrayLayout(id btf.TypeID, t *btf.Type, state *resolveState) (TypeLayout, *Error) {
	el, err := e.layoutOf(t.Array.Elem, state)
	if err != nil {
		return TypeLayout{Align: 1}, err
	}
	n, convErr := safecast.Conv[int](t.Array.Nelems)
	if convErr != nil {
		return TypeLayout{Align: 1}, &Error{
			Kind: ErrBadOffset, Type: id, Member: -1,
			Msg: fmt.Sprintf("array length %d out of range", t.Array.Nelems),
		}
	}
	align := maxInt(el.Align, 1)
	stride := roundUp(el.Size, align)
	return TypeLayout{Size: stride * n, Align: align}, nil
}

func (e *Engine) structLayout(id btf.TypeID, t *btf.Type, state *resolveState) (TypeLayout, *Error) {
	fields := make([]FieldLayout, len(t.Members))
	var units []StorageUnit

	align := 1
	cursor := 0 // first byte not covered by any previous member
	maxEnd := 0

	for i := range t.Members {
		m := &t.Members[i]
		bf, bfErr := e.bitfieldInfo(id, i, m)
		if bfErr != nil {
			return TypeLayout{Align: 1}, bfErr
		}

		if bf != nil {
			unitIdx, f, ufErr := placeBitfield(id, i, bf, &units, cursor)
			if ufErr != nil {
				return TypeLayout{Align: 1}, ufErr
			}
			ua := e.naturalAlign(bf.unitSize)
			if bf.unitOffset%ua != 0 {
				ua = 1
			}
			f.Align = ua
			fields[i] = f
			fields[i].Unit = unitIdx
			align = maxInt(align, ua)
			end := units[unitIdx].Offset + units[unitIdx].Size
			cursor = maxInt(cursor, end)
			maxEnd = maxInt(maxEnd, end)
			continue
		}

		ml, err := e.layoutOf(m.Type, state)
		if err != nil {
			return TypeLayout{Align: 1}, err
		}
		if m.RawOffset%8 != 0 {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrBadOffset, Type: id, Member: i,
				Msg: fmt.Sprintf("plain member %q at bit offset %d", m.Name, m.RawOffset),
			}
		}
		off := int(m.RawOffset / 8)
		if off < cursor {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrMemberOverlap, Type: id, Member: i,
				Msg: fmt.Sprintf("member %q at byte %d, previous member ends at %d", m.Name, off, cursor),
			}
		}
		a := maxInt(ml.Align, 1)
		packed := false
		if off%a != 0 {
			// The compiler placed the member below its natural
			// alignment: the enclosing struct is packed here.
			packed = true
			a = 1
		}
		fields[i] = FieldLayout{Offset: off, Size: ml.Size, Align: a, Packed: packed}
		cursor = off + ml.Size
		maxEnd = maxInt(maxEnd, cursor)
		align = maxInt(align, a)
	}

	declared, convErr := safecast.Conv[int](t.Size)
	if convErr != nil {
		return TypeLayout{Align: 1}, &Error{Kind: ErrMismatch, Type: id, Member: -1, Declared: -1, Computed: maxEnd}
	}
	size, szErr := e.checkSize(id, declared, maxEnd, &align)
	if szErr != nil {
		return TypeLayout{Align: 1}, szErr
	}
	return TypeLayout{Size: size, Align: align, Fields: fields, Units: units}, nil
}

func (e *Engine) unionLayout(id btf.TypeID, t *btf.Type, state *resolveState) (TypeLayout, *Error) {
	fields := make([]FieldLayout, len(t.Members))
	var units []StorageUnit

	align := 1
	maxEnd := 0

	for i := range t.Members {
		m := &t.Members[i]
		bf, bfErr := e.bitfieldInfo(id, i, m)
		if bfErr != nil {
			return TypeLayout{Align: 1}, bfErr
		}

		if bf != nil {
			// Union bitfield members intentionally overlap, so each
			// gets its own storage unit.
			unit := StorageUnit{
				Offset: bf.spanStart,
				Size:   bf.spanEnd - bf.spanStart,
				Members: []BitMember{{
					Member:    i,
					BitOffset: int(m.RawOffset) - bf.spanStart*8,
					Width:     bf.width,
					Signed:    bf.signed,
				}},
			}
			units = append(units, unit)
			ua := e.naturalAlign(bf.unitSize)
			fields[i] = FieldLayout{Offset: unit.Offset, Size: unit.Size, Align: ua, Bitfield: true, Unit: len(units) - 1}
			align = maxInt(align, ua)
			maxEnd = maxInt(maxEnd, unit.Offset+unit.Size)
			continue
		}

		ml, err := e.layoutOf(m.Type, state)
		if err != nil {
			return TypeLayout{Align: 1}, err
		}
		if m.RawOffset != 0 {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrBadOffset, Type: id, Member: i,
				Msg: fmt.Sprintf("union member %q at nonzero offset %d", m.Name, m.RawOffset),
			}
		}
		a := maxInt(ml.Align, 1)
		fields[i] = FieldLayout{Offset: 0, Size: ml.Size, Align: a}
		align = maxInt(align, a)
		maxEnd = maxInt(maxEnd, ml.Size)
	}

	declared, convErr := safecast.Conv[int](t.Size)
	if convErr != nil {
		return TypeLayout{Align: 1}, &Error{Kind: ErrMismatch, Type: id, Member: -1, Declared: -1, Computed: maxEnd}
	}
	size, szErr := e.checkSize(id, declared, maxEnd, &align)
	if szErr != nil {
		return TypeLayout{Align: 1}, szErr
	}
	return TypeLayout{Size: size, Align: align, Fields: fields, Units: units}, nil
}

// checkSize reconciles the computed extent with the declared size.
// Declared sizes win when they are a consistent packing or alignment
// of the computed extent; anything else is an ABI-breaking mismatch.
func (e *Engine) checkSize(id btf.TypeID, declared, maxEnd int, align *int) (int, *Error) {
	computed := roundUp(maxEnd, *align)
	switch {
	case declared == computed:
		return declared, nil
	case declared == maxEnd:
		// No trailing padding at all: packed layout.
		*align = 1
		return declared, nil
	case declared > computed && declared%*align == 0:
		// Extra trailing padding from an alignment attribute.
		return declared, nil
	default:
		return 0, &Error{Kind: ErrMismatch, Type: id, Member: -1, Computed: computed, Declared: declared}
	}
}

func (e *Engine) datasecLayout(id btf.TypeID, t *btf.Type, state *resolveState) (TypeLayout, *Error) {
	secSize, convErr := safecast.Conv[int](t.Size)
	if convErr != nil {
		return TypeLayout{Align: 1}, &Error{Kind: ErrMismatch, Type: id, Member: -1, Declared: -1}
	}
	fields := make([]FieldLayout, len(t.Vars))
	align := 1

	for i, v := range t.Vars {
		vl, err := e.layoutOf(v.Type, state)
		if err != nil {
			return TypeLayout{Align: 1}, err
		}
		off := int(v.Offset)
		size := int(v.Size)
		if vl.Size != size {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrMismatch, Type: id, Member: i,
				Computed: vl.Size, Declared: size,
			}
		}
		if off+size > secSize {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrBadOffset, Type: id, Member: i,
				Msg: fmt.Sprintf("variable [%d, %d) outside section of %d bytes", off, off+size, secSize),
			}
		}
		fields[i] = FieldLayout{Offset: off, Size: size, Align: maxInt(vl.Align, 1)}
		align = maxInt(align, vl.Align)
	}

	// Variables must not overlap; check in offset order without
	// disturbing declaration order.
	byOffset := make([]int, len(fields))
	for i := range byOffset {
		byOffset[i] = i
	}
	sort.Slice(byOffset, func(a, b int) bool { return fields[byOffset[a]].Offset < fields[byOffset[b]].Offset })
	end := 0
	for _, fi := range byOffset {
		if fields[fi].Offset < end {
			return TypeLayout{Align: 1}, &Error{
				Kind: ErrMemberOverlap, Type: id, Member: fi,
				Msg: fmt.Sprintf("variable at byte %d overlaps previous variable ending at %d", fields[fi].Offset, end),
			}
		}
		end = fields[fi].Offset + fields[fi].Size
	}

	return TypeLayout{Size: secSize, Align: align, Fields: fields}, nil
}
