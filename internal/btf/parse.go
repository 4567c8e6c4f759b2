package btf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

const (
	btfMagic    = 0xeB9F
	headerLen   = 24
	typeRecLen  = 12
	maxNumTypes = 1 << 24 // sanity bound, far above any real catalogue
	kindFlagBit = 1 << 31
	kindShift   = 24
	kindMask    = 0x1f
	vlenMask    = 0xffff
	noComponent = -1
)

type header struct {
	version uint8
	flags   uint8
	hdrLen  uint32
	typeOff uint32
	typeLen uint32
	strOff  uint32
	strLen  uint32
}

type parser struct {
	data  []byte
	order binary.ByteOrder

	hdr     header
	strings []byte

	pos   int // cursor into the type section
	types []Type
}

// Parse decodes a raw BTF blob into an Index. The blob is consumed
// read-only; the returned Index owns no reference to it. The byte
// order is inferred from the magic, so catalogues produced on a
// foreign-endian machine parse the same way.
func Parse(data []byte) (*Index, error) {
	if len(data) < headerLen {
		return nil, malformed(ErrTruncated, VoidID, len(data),
			"blob shorter than header (%d < %d bytes)", len(data), headerLen)
	}

	order, err := detectOrder(data)
	if err != nil {
		return nil, err
	}

	p := &parser{data: data, order: order}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	if err := p.sliceSections(); err != nil {
		return nil, err
	}
	if err := p.parseTypes(); err != nil {
		return nil, err
	}
	if err := p.linkCheck(); err != nil {
		return nil, err
	}
	return &Index{types: p.types, order: order}, nil
}

func detectOrder(data []byte) (binary.ByteOrder, error) {
	switch {
	case binary.LittleEndian.Uint16(data) == btfMagic:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint16(data) == btfMagic:
		return binary.BigEndian, nil
	default:
		return nil, malformed(ErrBadMagic, VoidID, 0,
			"bad magic %#04x, want %#04x", binary.LittleEndian.Uint16(data), btfMagic)
	}
}

func (p *parser) readHeader() error {
	p.hdr = header{
		version: p.data[2],
		flags:   p.data[3],
		hdrLen:  p.order.Uint32(p.data[4:]),
		typeOff: p.order.Uint32(p.data[8:]),
		typeLen: p.order.Uint32(p.data[12:]),
		strOff:  p.order.Uint32(p.data[16:]),
		strLen:  p.order.Uint32(p.data[20:]),
	}
	if p.hdr.version != 1 {
		return malformed(ErrBadHeader, VoidID, 2, "unsupported version %d", p.hdr.version)
	}
	if p.hdr.hdrLen < headerLen {
		return malformed(ErrBadHeader, VoidID, 4, "header length %d too small", p.hdr.hdrLen)
	}
	if p.hdr.typeLen%typeRecLen != 0 && p.hdr.typeLen%4 != 0 {
		return malformed(ErrBadHeader, VoidID, 12, "type section length %d not 4-aligned", p.hdr.typeLen)
	}
	return nil
}

func (p *parser) sliceSections() error {
	base, err := safecast.Conv[int](p.hdr.hdrLen)
	if err != nil {
		return malformed(ErrBadHeader, VoidID, 4, "header length overflow: %v", err)
	}
	typeStart := base + int(p.hdr.typeOff)
	typeEnd := typeStart + int(p.hdr.typeLen)
	strStart := base + int(p.hdr.strOff)
	strEnd := strStart + int(p.hdr.strLen)

	if typeEnd > len(p.data) || typeStart < base {
		return malformed(ErrTruncated, VoidID, typeStart,
			"type section [%d, %d) exceeds blob of %d bytes", typeStart, typeEnd, len(p.data))
	}
	if strEnd > len(p.data) || strStart < base {
		return malformed(ErrTruncated, VoidID, strStart,
			"string section [%d, %d) exceeds blob of %d bytes", strStart, strEnd, len(p.data))
	}
	if p.hdr.strLen == 0 || p.data[strStart] != 0 {
		return malformed(ErrBadHeader, VoidID, strStart, "string section must start with NUL")
	}

	p.strings = p.data[strStart:strEnd]
	p.data = p.data[typeStart:typeEnd]
	p.pos = 0
	return nil
}

func (p *parser) remaining() int {
	return len(p.data) - p.pos
}

func (p *parser) u32() uint32 {
	v := p.order.Uint32(p.data[p.pos:])
	p.pos += 4
	return v
}

func (p *parser) need(n int, id TypeID, what string) error {
	if p.remaining() < n {
		return malformed(ErrTruncated, id, p.pos,
			"type section ends inside %s (%d bytes left, need %d)", what, p.remaining(), n)
	}
	return nil
}

func (p *parser) string(off uint32, id TypeID) (string, error) {
	n, err := safecast.Conv[int](off)
	if err != nil || n >= len(p.strings) {
		return "", malformed(ErrBadStringOffset, id, p.pos,
			"string offset %d outside string section of %d bytes", off, len(p.strings))
	}
	end := bytes.IndexByte(p.strings[n:], 0)
	if end < 0 {
		return "", malformed(ErrBadStringOffset, id, p.pos,
			"unterminated string at offset %d", off)
	}
	return string(p.strings[n : n+end]), nil
}

func (p *parser) parseTypes() error {
	// Entry 0 is the implicit void type.
	p.types = append(p.types, Type{Kind: KindVoid})

	for p.remaining() > 0 {
		if len(p.types) >= maxNumTypes {
			return malformed(ErrBadRecord, TypeID(len(p.types)), p.pos, "too many types")
		}
		id := TypeID(uint32(len(p.types)))
		if err := p.need(typeRecLen, id, "type record"); err != nil {
			return err
		}
		nameOff := p.u32()
		info := p.u32()
		sizeOrType := p.u32()

		kind := Kind((info >> kindShift) & kindMask)
		if kind > maxKind {
			return malformed(ErrUnknownKind, id, p.pos, "unknown kind tag %d", uint8(kind))
		}
		vlen := int(info & vlenMask)
		kindFlag := info&kindFlagBit != 0

		name, err := p.string(nameOff, id)
		if err != nil {
			return err
		}

		t := Type{Kind: kind, Name: name, KindFlag: kindFlag, ComponentIdx: noComponent}
		if err := p.parsePayload(&t, id, vlen, sizeOrType); err != nil {
			return err
		}
		p.types = append(p.types, t)
	}
	return nil
}

func (p *parser) parsePayload(t *Type, id TypeID, vlen int, sizeOrType uint32) error {
	switch t.Kind {
	case KindInt:
		t.Size = sizeOrType
		if err := p.need(4, id, "int payload"); err != nil {
			return err
		}
		v := p.u32()
		t.Int = IntInfo{
			Encoding: IntEncoding((v >> 24) & 0x0f),
			Offset:   uint8((v >> 16) & 0xff),
			Bits:     uint8(v & 0xff),
		}
		if uint32(t.Int.Bits) > t.Size*8 {
			return malformed(ErrBadRecord, id, p.pos,
				"int declares %d bits in %d bytes", t.Int.Bits, t.Size)
		}

	case KindPointer, KindTypedef, KindVolatile, KindConst, KindRestrict,
		KindFunc, KindTypeTag:
		t.Ref = TypeID(sizeOrType)

	case KindArray:
		if err := p.need(12, id, "array payload"); err != nil {
			return err
		}
		t.Array = ArrayInfo{
			Elem:   TypeID(p.u32()),
			Index:  TypeID(p.u32()),
			Nelems: p.u32(),
		}

	case KindStruct, KindUnion:
		t.Size = sizeOrType
		if err := p.need(vlen*12, id, "member records"); err != nil {
			return err
		}
		t.Members = make([]Member, 0, vlen)
		for i := 0; i < vlen; i++ {
			nameOff := p.u32()
			typ := p.u32()
			offset := p.u32()
			name, err := p.string(nameOff, id)
			if err != nil {
				return err
			}
			m := Member{Name: name, Type: TypeID(typ)}
			if t.KindFlag {
				m.BitfieldSize = uint8(offset >> 24)
				m.RawOffset = offset & 0x00ffffff
			} else {
				m.RawOffset = offset
			}
			t.Members = append(t.Members, m)
		}

	case KindEnum:
		t.Size = sizeOrType
		if err := p.need(vlen*8, id, "enum records"); err != nil {
			return err
		}
		t.Enums = make([]EnumValue, 0, vlen)
		for i := 0; i < vlen; i++ {
			nameOff := p.u32()
			val := int32(p.u32())
			name, err := p.string(nameOff, id)
			if err != nil {
				return err
			}
			t.Enums = append(t.Enums, EnumValue{Name: name, Value: int64(val)})
		}

	case KindEnum64:
		t.Size = sizeOrType
		if err := p.need(vlen*12, id, "enum64 records"); err != nil {
			return err
		}
		t.Enums = make([]EnumValue, 0, vlen)
		for i := 0; i < vlen; i++ {
			nameOff := p.u32()
			lo := uint64(p.u32())
			hi := uint64(p.u32())
			name, err := p.string(nameOff, id)
			if err != nil {
				return err
			}
			t.Enums = append(t.Enums, EnumValue{Name: name, Value: int64(hi<<32 | lo)})
		}

	case KindFwd:
		// kind_flag distinguishes struct and union forward declarations.

	case KindFuncProto:
		t.Ref = TypeID(sizeOrType)
		if err := p.need(vlen*8, id, "param records"); err != nil {
			return err
		}
		t.Params = make([]Param, 0, vlen)
		for i := 0; i < vlen; i++ {
			nameOff := p.u32()
			typ := p.u32()
			name, err := p.string(nameOff, id)
			if err != nil {
				return err
			}
			t.Params = append(t.Params, Param{Name: name, Type: TypeID(typ)})
		}

	case KindVar:
		t.Ref = TypeID(sizeOrType)
		if err := p.need(4, id, "var payload"); err != nil {
			return err
		}
		t.Linkage = FuncLinkage(p.u32())

	case KindDatasec:
		t.Size = sizeOrType
		if err := p.need(vlen*12, id, "datasec records"); err != nil {
			return err
		}
		t.Vars = make([]DatasecVar, 0, vlen)
		for i := 0; i < vlen; i++ {
			t.Vars = append(t.Vars, DatasecVar{
				Type:   TypeID(p.u32()),
				Offset: p.u32(),
				Size:   p.u32(),
			})
		}

	case KindFloat:
		t.Size = sizeOrType

	case KindDeclTag:
		t.Ref = TypeID(sizeOrType)
		if err := p.need(4, id, "decl_tag payload"); err != nil {
			return err
		}
		t.ComponentIdx = int32(p.u32())

	default:
		return malformed(ErrUnknownKind, id, p.pos, "unhandled kind %s", t.Kind)
	}

	if t.Kind == KindFunc {
		// For funcs the vlen slot carries the linkage.
		t.Linkage = FuncLinkage(vlen)
	}
	return nil
}

// linkCheck validates that every type reference lands inside the arena,
// so later phases can use MustLookup without range checks.
func (p *parser) linkCheck() error {
	n := TypeID(uint32(len(p.types)))
	check := func(ref TypeID, id TypeID, what string) error {
		if ref >= n {
			return malformed(ErrIndexOutOfRange, id, 0,
				"%s reference %d out of range (catalogue has %d types)", what, ref, n)
		}
		return nil
	}
	for i := range p.types {
		id := TypeID(uint32(i))
		t := &p.types[i]
		switch t.Kind {
		case KindPointer, KindTypedef, KindVolatile, KindConst, KindRestrict,
			KindFunc, KindVar, KindDeclTag, KindTypeTag:
			if err := check(t.Ref, id, t.Kind.String()); err != nil {
				return err
			}
		case KindArray:
			if err := check(t.Array.Elem, id, "array element"); err != nil {
				return err
			}
			if err := check(t.Array.Index, id, "array index"); err != nil {
				return err
			}
		case KindStruct, KindUnion:
			for mi, m := range t.Members {
				if err := check(m.Type, id, "member"); err != nil {
					return err.(*MalformedError).withMember(mi)
				}
			}
		case KindFuncProto:
			if err := check(t.Ref, id, "return"); err != nil {
				return err
			}
			for _, pr := range t.Params {
				if err := check(pr.Type, id, "param"); err != nil {
					return err
				}
			}
		case KindDatasec:
			for _, v := range t.Vars {
				if err := check(v.Type, id, "datasec variable"); err != nil {
					return err
				}
				if vt := p.types[v.Type]; vt.Kind != KindVar {
					return malformed(ErrBadRecord, id, 0,
						"datasec variable references %s, want var", vt.Kind)
				}
			}
		}
	}
	return nil
}

func (e *MalformedError) withMember(member int) *MalformedError {
	e.Msg = fmt.Sprintf("%s (member %d)", e.Msg, member)
	return e
}
