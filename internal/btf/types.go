package btf

import "fmt"

// TypeID uniquely identifies a type inside the catalogue.
// ID 0 is the implicit void type.
type TypeID uint32

// VoidID is the implicit first catalogue entry.
const VoidID TypeID = 0

// Kind enumerates all supported catalogue type kinds. The numeric
// values match the on-disk BTF kind tags.
type Kind uint8

const (
	KindVoid      Kind = 0
	KindInt       Kind = 1
	KindPointer   Kind = 2
	KindArray     Kind = 3
	KindStruct    Kind = 4
	KindUnion     Kind = 5
	KindEnum      Kind = 6
	KindFwd       Kind = 7
	KindTypedef   Kind = 8
	KindVolatile  Kind = 9
	KindConst     Kind = 10
	KindRestrict  Kind = 11
	KindFunc      Kind = 12
	KindFuncProto Kind = 13
	KindVar       Kind = 14
	KindDatasec   Kind = 15
	KindFloat     Kind = 16
	KindDeclTag   Kind = 17
	KindTypeTag   Kind = 18
	KindEnum64    Kind = 19

	maxKind = KindEnum64
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindFwd:
		return "fwd"
	case KindTypedef:
		return "typedef"
	case KindVolatile:
		return "volatile"
	case KindConst:
		return "const"
	case KindRestrict:
		return "restrict"
	case KindFunc:
		return "func"
	case KindFuncProto:
		return "func_proto"
	case KindVar:
		return "var"
	case KindDatasec:
		return "datasec"
	case KindFloat:
		return "float"
	case KindDeclTag:
		return "decl_tag"
	case KindTypeTag:
		return "type_tag"
	case KindEnum64:
		return "enum64"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsComposite reports whether the kind owns member layout of its own.
func (k Kind) IsComposite() bool {
	return k == KindStruct || k == KindUnion
}

// IsQualifier reports whether the kind merely wraps another type
// without changing its layout.
func (k Kind) IsQualifier() bool {
	switch k {
	case KindVolatile, KindConst, KindRestrict, KindTypeTag:
		return true
	}
	return false
}

// IntEncoding captures the signedness flavour of an integer type.
type IntEncoding uint8

const (
	IntUnsigned IntEncoding = 0
	IntSigned   IntEncoding = 1 << 0
	IntChar     IntEncoding = 1 << 1
	IntBool     IntEncoding = 1 << 2
)

// FuncLinkage mirrors the linkage payload of func and var entries.
type FuncLinkage uint8

const (
	LinkageStatic FuncLinkage = 0
	LinkageGlobal FuncLinkage = 1
	LinkageExtern FuncLinkage = 2
)

// Member is one field of a struct or union entry.
type Member struct {
	Name string
	Type TypeID

	// RawOffset is the catalogue-declared bit offset of the member
	// from the start of the enclosing type.
	RawOffset uint32

	// BitfieldSize is the declared bit width for bitfield members
	// (kind_flag encoding); zero for plain members.
	BitfieldSize uint8
}

// ByteOffset returns the declared byte offset of a plain member.
// For bitfield members use RawOffset directly; their position is a
// bit coordinate, not a byte one.
func (m Member) ByteOffset() uint32 {
	return m.RawOffset / 8
}

// EnumValue is one enumerator of an enum or enum64 entry.
type EnumValue struct {
	Name  string
	Value int64
}

// Param is one parameter of a function prototype.
type Param struct {
	Name string
	Type TypeID
}

// DatasecVar places one global variable inside a data section.
type DatasecVar struct {
	Type   TypeID
	Offset uint32
	Size   uint32
}

// ArrayInfo is the payload of an array entry.
type ArrayInfo struct {
	Elem   TypeID
	Index  TypeID
	Nelems uint32
}

// IntInfo is the payload of an integer entry.
type IntInfo struct {
	Encoding IntEncoding
	Offset   uint8
	Bits     uint8
}

// Signed reports whether the integer carries a signed encoding.
func (i IntInfo) Signed() bool {
	return i.Encoding&IntSigned != 0
}

// Type is one catalogue entry. Kind-specific payload fields are only
// populated for the matching kind; the rest stay zero.
type Type struct {
	Kind Kind
	Name string

	// Size is the declared byte size for sized kinds (int, float,
	// struct, union, enum, enum64, datasec).
	Size uint32

	// Ref is the referenced type for pointer, typedef, qualifier,
	// func, var and decl_tag entries, and the return type for
	// func_proto entries.
	Ref TypeID

	// KindFlag is the raw kind_flag bit: bitfield encoding for
	// struct/union, union-ness for fwd, signedness for enums.
	KindFlag bool

	Int     IntInfo
	Array   ArrayInfo
	Members []Member
	Enums   []EnumValue
	Params  []Param
	Vars    []DatasecVar
	Linkage FuncLinkage

	// ComponentIdx is the decl_tag payload (-1 for whole-type tags).
	ComponentIdx int32
}

// Anonymous reports whether the entry has no catalogue name.
func (t *Type) Anonymous() bool {
	return t.Name == ""
}
