// Package testkit assembles BTF catalogue blobs for tests. Tests
// declare types through the builder and get back wire bytes that the
// parser accepts, so fixtures live next to the assertions instead of
// as opaque binary files.
package testkit

import (
	"encoding/binary"
)

const (
	magic     = 0xeB9F
	headerLen = 24
)

// Kind tags, mirroring the wire encoding.
const (
	KindInt       = 1
	KindPointer   = 2
	KindArray     = 3
	KindStruct    = 4
	KindUnion     = 5
	KindEnum      = 6
	KindFwd       = 7
	KindTypedef   = 8
	KindVolatile  = 9
	KindConst     = 10
	KindRestrict  = 11
	KindFunc      = 12
	KindFuncProto = 13
	KindVar       = 14
	KindDatasec   = 15
	KindFloat     = 16
	KindDeclTag   = 17
	KindTypeTag   = 18
	KindEnum64    = 19
)

// Int encoding flags.
const (
	Signed = 1 << 0
	Char   = 1 << 1
	Bool   = 1 << 2
)

// Var linkage values.
const (
	LinkageStatic = 0
	LinkageGlobal = 1
)

// Builder accumulates type records and strings. The zero value is not
// usable; call NewBuilder.
type Builder struct {
	order   binary.ByteOrder
	types   []byte
	strings []byte
	offsets map[string]uint32
	count   uint32
}

// NewBuilder starts an empty little-endian catalogue.
func NewBuilder() *Builder {
	return NewBuilderOrder(binary.LittleEndian)
}

// NewBuilderOrder starts an empty catalogue in the given byte order.
func NewBuilderOrder(order binary.ByteOrder) *Builder {
	return &Builder{
		order:   order,
		strings: []byte{0},
		offsets: map[string]uint32{"": 0},
	}
}

func (b *Builder) str(s string) uint32 {
	if off, ok := b.offsets[s]; ok {
		return off
	}
	off := uint32(len(b.strings))
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, 0)
	b.offsets[s] = off
	return off
}

func (b *Builder) u32(v uint32) {
	var buf [4]byte
	b.order.PutUint32(buf[:], v)
	b.types = append(b.types, buf[:]...)
}

// record appends a type record header and returns the new type's ID.
// IDs start at 1; ID 0 is the implicit void entry.
func (b *Builder) record(name string, kind, vlen int, kindFlag bool, sizeOrType uint32) uint32 {
	info := uint32(vlen)&0xffff | uint32(kind)<<24
	if kindFlag {
		info |= 1 << 31
	}
	b.u32(b.str(name))
	b.u32(info)
	b.u32(sizeOrType)
	b.count++
	return b.count
}

// Int appends an integer type. bits is the declared value width, which
// equals size*8 except for legacy bitfield carriers.
func (b *Builder) Int(name string, size int, encoding, bits int) uint32 {
	id := b.record(name, KindInt, 0, false, uint32(size))
	b.u32(uint32(encoding)<<24 | uint32(bits))
	return id
}

// IntOff appends an integer type with a nonzero declared bit offset.
func (b *Builder) IntOff(name string, size int, encoding, offset, bits int) uint32 {
	id := b.record(name, KindInt, 0, false, uint32(size))
	b.u32(uint32(encoding)<<24 | uint32(offset)<<16 | uint32(bits))
	return id
}

func (b *Builder) Float(name string, size int) uint32 {
	return b.record(name, KindFloat, 0, false, uint32(size))
}

func (b *Builder) Pointer(to uint32) uint32 {
	return b.record("", KindPointer, 0, false, to)
}

func (b *Builder) Typedef(name string, to uint32) uint32 {
	return b.record(name, KindTypedef, 0, false, to)
}

func (b *Builder) Qualifier(kind int, to uint32) uint32 {
	return b.record("", kind, 0, false, to)
}

func (b *Builder) Array(elem, index uint32, n int) uint32 {
	id := b.record("", KindArray, 0, false, 0)
	b.u32(elem)
	b.u32(index)
	b.u32(uint32(n))
	return id
}

// MemberDef declares one member for Struct or Union. For bitfield
// catalogues built with kindFlag, Bits carries the width and Offset
// the plain bit offset.
type MemberDef struct {
	Name   string
	Type   uint32
	Offset uint32 // bit offset from the start of the type
	Bits   uint8  // bitfield width, kind_flag form only
}

func (b *Builder) Struct(name string, size int, members ...MemberDef) uint32 {
	return b.composite(KindStruct, name, size, false, members)
}

// StructBF appends a struct with kind_flag set, encoding member widths
// in the member records.
func (b *Builder) StructBF(name string, size int, members ...MemberDef) uint32 {
	return b.composite(KindStruct, name, size, true, members)
}

func (b *Builder) Union(name string, size int, members ...MemberDef) uint32 {
	return b.composite(KindUnion, name, size, false, members)
}

func (b *Builder) UnionBF(name string, size int, members ...MemberDef) uint32 {
	return b.composite(KindUnion, name, size, true, members)
}

func (b *Builder) composite(kind int, name string, size int, kindFlag bool, members []MemberDef) uint32 {
	id := b.record(name, kind, len(members), kindFlag, uint32(size))
	for _, m := range members {
		b.u32(b.str(m.Name))
		b.u32(m.Type)
		off := m.Offset
		if kindFlag {
			off |= uint32(m.Bits) << 24
		}
		b.u32(off)
	}
	return id
}

// EnumVal is one enumerator.
type EnumVal struct {
	Name  string
	Value int64
}

func (b *Builder) Enum(name string, size int, signed bool, vals ...EnumVal) uint32 {
	id := b.record(name, KindEnum, len(vals), signed, uint32(size))
	for _, v := range vals {
		b.u32(b.str(v.Name))
		b.u32(uint32(int32(v.Value)))
	}
	return id
}

func (b *Builder) Enum64(name string, size int, signed bool, vals ...EnumVal) uint32 {
	id := b.record(name, KindEnum64, len(vals), signed, uint32(size))
	for _, v := range vals {
		b.u32(b.str(v.Name))
		b.u32(uint32(uint64(v.Value) & 0xffffffff))
		b.u32(uint32(uint64(v.Value) >> 32))
	}
	return id
}

func (b *Builder) Fwd(name string, union bool) uint32 {
	return b.record(name, KindFwd, 0, union, 0)
}

// FuncProto appends a prototype. Params alternate name, type ID pairs.
func (b *Builder) FuncProto(ret uint32, params ...ParamDef) uint32 {
	id := b.record("", KindFuncProto, len(params), false, ret)
	for _, p := range params {
		b.u32(b.str(p.Name))
		b.u32(p.Type)
	}
	return id
}

type ParamDef struct {
	Name string
	Type uint32
}

// Func appends a function entry; linkage rides in the vlen slot.
func (b *Builder) Func(name string, proto uint32, linkage int) uint32 {
	return b.record(name, KindFunc, linkage, false, proto)
}

func (b *Builder) Var(name string, typ uint32, linkage int) uint32 {
	id := b.record(name, KindVar, 0, false, typ)
	b.u32(uint32(linkage))
	return id
}

// SecVar places one variable inside a Datasec.
type SecVar struct {
	Type   uint32
	Offset uint32
	Size   uint32
}

func (b *Builder) Datasec(name string, size int, vars ...SecVar) uint32 {
	id := b.record(name, KindDatasec, len(vars), false, uint32(size))
	for _, v := range vars {
		b.u32(v.Type)
		b.u32(v.Offset)
		b.u32(v.Size)
	}
	return id
}

// Raw appends arbitrary words to the type section, for malformed-input
// tests that the typed helpers refuse to produce.
func (b *Builder) Raw(words ...uint32) {
	for _, w := range words {
		b.u32(w)
	}
}

// Bytes assembles the final blob: header, type section, string
// section.
func (b *Builder) Bytes() []byte {
	out := make([]byte, headerLen, headerLen+len(b.types)+len(b.strings))
	b.order.PutUint16(out[0:], magic)
	out[2] = 1 // version
	b.order.PutUint32(out[4:], headerLen)
	b.order.PutUint32(out[8:], 0) // type_off
	b.order.PutUint32(out[12:], uint32(len(b.types)))
	b.order.PutUint32(out[16:], uint32(len(b.types))) // str_off
	b.order.PutUint32(out[20:], uint32(len(b.strings)))
	out = append(out, b.types...)
	out = append(out, b.strings...)
	return out
}
