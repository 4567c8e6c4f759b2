package gen

import (
	"fmt"

	"skelgen/internal/btf"
	"skelgen/internal/layout"
	"skelgen/internal/names"
)

func (e *Emitter) loadFn() string {
	if e.le {
		return "skel.LoadBitsLE"
	}
	return "skel.LoadBitsBE"
}

func (e *Emitter) storeFn() string {
	if e.le {
		return "skel.StoreBitsLE"
	}
	return "skel.StoreBitsBE"
}

func (e *Emitter) emitTypes() {
	for _, id := range e.emitOrder {
		t := e.ix.MustLookup(id)
		name := e.typeNames[id]
		switch t.Kind {
		case btf.KindStruct, btf.KindUnion:
			// A named composite without a layout had a fatal layout
			// diagnostic; emission is aborted after this walk.
			if e.layouts[id] == nil {
				continue
			}
			if t.Kind == btf.KindStruct {
				e.emitStruct(id, t, name)
			} else {
				e.emitUnion(id, t, name)
			}
		case btf.KindEnum, btf.KindEnum64:
			e.emitEnum(id, t, name)
		case btf.KindTypedef:
			e.emitTypedef(t, name)
		}
	}
}

func memberBase(m *btf.Member, ordinal int) string {
	base := names.Exported(m.Name)
	if base == "" {
		base = fmt.Sprintf("Field%d", ordinal)
	}
	return base
}

// bitMemberOf finds the placement of member ordinal inside its unit.
func bitMemberOf(u *layout.StorageUnit, ordinal int) layout.BitMember {
	for _, bm := range u.Members {
		if bm.Member == ordinal {
			return bm
		}
	}
	panic("gen: bitfield member missing from its storage unit")
}

// structPlan is the per-member identifier assignment for one emitted
// struct. Fields and methods share one Go namespace, so everything is
// claimed from a single scope in member order.
type structPlan struct {
	field []string // plain member field name
	raw   []string // raw storage field for packed scalars
	get   []string
	set   []string
	unit  map[int]string // storage unit field names by unit index
}

func (e *Emitter) planStruct(t *btf.Type, l *layout.TypeLayout, fs *names.Scope) *structPlan {
	p := &structPlan{
		field: make([]string, len(t.Members)),
		raw:   make([]string, len(t.Members)),
		get:   make([]string, len(t.Members)),
		set:   make([]string, len(t.Members)),
		unit:  make(map[int]string, len(l.Units)),
	}
	for u := range l.Units {
		p.unit[u] = fs.Claim(fmt.Sprintf("Bits%d", u), u)
	}
	for i := range t.Members {
		m := &t.Members[i]
		f := l.Fields[i]
		base := memberBase(m, i)
		switch {
		case f.Bitfield:
			p.get[i] = fs.Claim(base, i)
			p.set[i] = fs.Claim("Set"+base, i)
		case e.packedNeedsRaw(f, m):
			p.raw[i] = fs.Claim(base+"Raw", i)
			p.get[i] = fs.Claim(base, i)
			p.set[i] = fs.Claim("Set"+base, i)
		default:
			p.field[i] = fs.Claim(base, i)
		}
	}
	return p
}

// packedNeedsRaw reports whether a packed member must drop to raw
// storage plus accessors. One-byte scalars and byte-array fallbacks
// already have alignment 1 in Go and keep their typed field.
func (e *Emitter) packedNeedsRaw(f layout.FieldLayout, m *btf.Member) bool {
	if !f.Packed {
		return false
	}
	_, bits, _, _, ok := e.scalarInfo(m.Type)
	return ok && bits > 8
}

func (e *Emitter) emitStruct(id btf.TypeID, t *btf.Type, name string) {
	l := e.layouts[id]
	fs := names.NewScope()
	p := e.planStruct(t, l, fs)

	if t.Name != "" {
		e.printf("// %s mirrors struct %q (%d bytes).\n", name, t.Name, l.Size)
	} else {
		e.printf("// %s mirrors an anonymous struct (%d bytes).\n", name, l.Size)
	}
	e.printf("type %s struct {\n", name)

	cursor := 0
	padN := 0
	pad := func(to int) {
		if to > cursor {
			e.printf("\t%s [%d]uint8\n", fs.Claim(fmt.Sprintf("Pad%d", padN), padN), to-cursor)
			padN++
			cursor = to
		}
	}
	unitDone := make(map[int]bool, len(l.Units))
	for i, f := range l.Fields {
		if f.Bitfield {
			if unitDone[f.Unit] {
				continue
			}
			unitDone[f.Unit] = true
			u := l.Units[f.Unit]
			pad(u.Offset)
			e.printf("\t%s [%d]uint8\n", p.unit[f.Unit], u.Size)
			cursor = u.Offset + u.Size
			continue
		}
		pad(f.Offset)
		if p.raw[i] != "" {
			e.printf("\t%s [%d]uint8\n", p.raw[i], f.Size)
		} else {
			e.printf("\t%s %s\n", p.field[i], e.goTypeRef(t.Members[i].Type))
		}
		cursor = f.Offset + f.Size
	}
	pad(l.Size)
	e.printf("}\n\n")

	ctor := e.scope.Claim("New"+name, int(id))
	e.printf("// %s returns a zero-initialized value.\n", ctor)
	e.printf("func %s() *%s {\n\treturn new(%s)\n}\n\n", ctor, name, name)

	for i, f := range l.Fields {
		m := &t.Members[i]
		switch {
		case f.Bitfield:
			u := l.Units[f.Unit]
			bm := bitMemberOf(&u, i)
			store := fmt.Sprintf("v.%s[:]", p.unit[f.Unit])
			e.emitBitAccessors(name, store, p.get[i], p.set[i], m, bm.BitOffset, bm.Width)
		case p.raw[i] != "":
			store := fmt.Sprintf("v.%s[:]", p.raw[i])
			e.emitPackedAccessors(name, store, p.get[i], p.set[i], m, f.Size*8)
		}
	}
}

// emitBitAccessors writes the read/write pair for one bitfield member.
// The byte-order variant of the bit helpers is fixed at generation
// time from the catalogue's recorded order.
func (e *Emitter) emitBitAccessors(recv, store, get, set string, m *btf.Member, bitOff, width int) {
	goType, _, signed, class, ok := e.scalarInfo(m.Type)
	if !ok {
		goType, signed, class = "uint64", false, scalarInt
	}
	load := fmt.Sprintf("%s(%s, %d, %d)", e.loadFn(), store, bitOff, width)

	e.printf("// %s reads the %d-bit field %q.\n", get, width, m.Name)
	e.printf("func (v *%s) %s() %s {\n", recv, get, goType)
	switch {
	case class == scalarBool:
		e.printf("\treturn %s != 0\n", load)
	case signed:
		e.printf("\treturn %s(skel.SignExtend(%s, %d))\n", goType, load, width)
	default:
		e.printf("\treturn %s(%s)\n", goType, load)
	}
	e.printf("}\n\n")

	e.printf("// %s stores the low %d bits of x into %q.\n", set, width, m.Name)
	e.printf("func (v *%s) %s(x %s) {\n", recv, set, goType)
	if class == scalarBool {
		e.printf("\tvar b uint64\n\tif x {\n\t\tb = 1\n\t}\n")
		e.printf("\t%s(%s, %d, %d, b)\n", e.storeFn(), store, bitOff, width)
	} else {
		e.printf("\t%s(%s, %d, %d, uint64(x))\n", e.storeFn(), store, bitOff, width)
	}
	e.printf("}\n\n")
}

// emitPackedAccessors writes the read/write pair for a scalar member
// whose declared offset sits below its natural alignment. The member
// lives in raw byte storage and moves through the bit helpers at full
// width.
func (e *Emitter) emitPackedAccessors(recv, store, get, set string, m *btf.Member, width int) {
	goType, _, signed, class, ok := e.scalarInfo(m.Type)
	if !ok {
		return
	}
	load := fmt.Sprintf("%s(%s, 0, %d)", e.loadFn(), store, width)

	e.printf("// %s reads the unaligned member %q.\n", get, m.Name)
	e.printf("func (v *%s) %s() %s {\n", recv, get, goType)
	switch class {
	case scalarBool:
		e.printf("\treturn %s != 0\n", load)
	case scalarFloat:
		e.needsMath = true
		if width == 32 {
			e.printf("\treturn math.Float32frombits(uint32(%s))\n", load)
		} else {
			e.printf("\treturn math.Float64frombits(%s)\n", load)
		}
	case scalarPtr:
		e.printf("\treturn skel.PtrTo(%s)\n", load)
	default:
		if signed {
			e.printf("\treturn %s(skel.SignExtend(%s, %d))\n", goType, load, width)
		} else {
			e.printf("\treturn %s(%s)\n", goType, load)
		}
	}
	e.printf("}\n\n")

	e.printf("// %s stores the unaligned member %q.\n", set, m.Name)
	e.printf("func (v *%s) %s(x %s) {\n", recv, set, goType)
	switch class {
	case scalarBool:
		e.printf("\tvar b uint64\n\tif x {\n\t\tb = 1\n\t}\n")
		e.printf("\t%s(%s, 0, %d, b)\n", e.storeFn(), store, width)
	case scalarFloat:
		e.needsMath = true
		if width == 32 {
			e.printf("\t%s(%s, 0, %d, uint64(math.Float32bits(x)))\n", e.storeFn(), store, width)
		} else {
			e.printf("\t%s(%s, 0, %d, math.Float64bits(x))\n", e.storeFn(), store, width)
		}
	case scalarPtr:
		e.printf("\t%s(%s, 0, %d, x.Addr())\n", e.storeFn(), store, width)
	default:
		e.printf("\t%s(%s, 0, %d, uint64(x))\n", e.storeFn(), store, width)
	}
	e.printf("}\n\n")
}

// emitUnion renders a union as opaque raw storage with one accessor
// surface per member. Go has no union types; reading a member is a
// reinterpretation of the same bytes, which the accessors make
// explicit.
func (e *Emitter) emitUnion(id btf.TypeID, t *btf.Type, name string) {
	l := e.layouts[id]
	fs := names.NewScope()
	rawField := fs.Claim("Raw", 0)

	if t.Name != "" {
		e.printf("// %s mirrors union %q (%d bytes). All members alias %s.\n", name, t.Name, l.Size, rawField)
	} else {
		e.printf("// %s mirrors an anonymous union (%d bytes). All members alias %s.\n", name, l.Size, rawField)
	}
	e.printf("type %s struct {\n\t%s [%d]uint8\n}\n\n", name, rawField, l.Size)

	ctor := e.scope.Claim("New"+name, int(id))
	e.printf("// %s returns a zero-initialized value, which reads as the zero\n", ctor)
	e.printf("// value of every member.\n")
	e.printf("func %s() *%s {\n\treturn new(%s)\n}\n\n", ctor, name, name)

	for i, f := range l.Fields {
		m := &t.Members[i]
		base := memberBase(m, i)
		if f.Bitfield {
			u := l.Units[f.Unit]
			bm := bitMemberOf(&u, i)
			get := fs.Claim(base, i)
			set := fs.Claim("Set"+base, i)
			store := fmt.Sprintf("v.%s[%d:%d]", rawField, u.Offset, u.Offset+u.Size)
			e.emitBitAccessors(name, store, get, set, m, bm.BitOffset, bm.Width)
			continue
		}
		if _, bits, _, _, ok := e.scalarInfo(m.Type); ok && bits <= 64 {
			get := fs.Claim(base, i)
			set := fs.Claim("Set"+base, i)
			store := fmt.Sprintf("v.%s[%d:%d]", rawField, f.Offset, f.Offset+f.Size)
			e.emitPackedAccessors(name, store, get, set, m, f.Size*8)
			continue
		}
		// Composite and array members alias the raw bytes in place.
		as := fs.Claim("As"+base, i)
		ref := e.goTypeRef(m.Type)
		e.printf("// %s views member %q in place.\n", as, m.Name)
		e.printf("func (v *%s) %s() *%s {\n", name, as, ref)
		e.printf("\treturn skel.As[%s](v.%s[%d:%d])\n", ref, rawField, f.Offset, f.Offset+f.Size)
		e.printf("}\n\n")
	}
}

func (e *Emitter) emitEnum(id btf.TypeID, t *btf.Type, name string) {
	signed := t.KindFlag
	goInt := underlyingGoInt(int(t.Size)*8, signed)

	if t.Name != "" {
		e.printf("// %s mirrors enum %q.\n", name, t.Name)
	} else {
		e.printf("// %s mirrors an anonymous enum.\n", name)
	}
	e.printf("type %s %s\n\n", name, goInt)

	if len(t.Enums) == 0 {
		return
	}
	e.printf("const (\n")
	for vi, ev := range t.Enums {
		cname := e.scope.Claim(name+names.Exported(ev.Name), int(id)*1000+vi)
		if signed {
			e.printf("\t%s %s = %d\n", cname, name, ev.Value)
		} else {
			e.printf("\t%s %s = %d\n", cname, name, uint64(ev.Value))
		}
	}
	e.printf(")\n\n")
}

func (e *Emitter) emitTypedef(t *btf.Type, name string) {
	if e.typedefTarget(t) == nil {
		// Function prototypes and void have no Go value shape; the
		// alias carries an address instead.
		e.printf("// %s aliases typedef %q, whose target has no value\n", name, t.Name)
		e.printf("// representation. Values hold a target address.\n")
		e.printf("type %s = skel.Ptr\n\n", name)
		return
	}
	e.printf("// %s aliases typedef %q.\n", name, t.Name)
	e.printf("type %s = %s\n\n", name, e.goTypeRef(t.Ref))
}
