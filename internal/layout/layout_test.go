package layout

import (
	"encoding/binary"
	"testing"

	"skelgen/internal/btf"
	"skelgen/internal/testkit"
)

func engineFor(t *testing.T, b *testkit.Builder) *Engine {
	t.Helper()
	ix, err := btf.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return New(BPF(binary.LittleEndian), ix)
}

func layoutOK(t *testing.T, e *Engine, id uint32) TypeLayout {
	t.Helper()
	l, err := e.LayoutOf(btf.TypeID(id))
	if err != nil {
		t.Fatalf("LayoutOf(%d) failed: %v", id, err)
	}
	return l
}

func layoutErr(t *testing.T, e *Engine, id uint32, want ErrorKind) *Error {
	t.Helper()
	_, err := e.LayoutOf(btf.TypeID(id))
	if err == nil {
		t.Fatalf("LayoutOf(%d) succeeded, want error kind %d", id, want)
	}
	le, ok := err.(*Error)
	if !ok {
		t.Fatalf("LayoutOf(%d) error %v is not a layout.Error", id, err)
	}
	if le.Kind != want {
		t.Fatalf("error kind = %d, want %d (%v)", le.Kind, want, le)
	}
	return le
}

func TestStructNaturalLayout(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	u64 := b.Int("unsigned long", 8, 0, 64)
	s := b.Struct("pair", 16,
		testkit.MemberDef{Name: "lo", Type: u32, Offset: 0},
		testkit.MemberDef{Name: "hi", Type: u64, Offset: 64},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if l.Size != 16 || l.Align != 8 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {16, 8}", l.Size, l.Align)
	}
	if l.Fields[0].Offset != 0 || l.Fields[1].Offset != 8 {
		t.Fatalf("field offsets = %d, %d, want 0, 8", l.Fields[0].Offset, l.Fields[1].Offset)
	}
}

func TestBitfieldStorageUnit(t *testing.T) {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	u32 := b.Int("unsigned int", 4, 0, 32)
	s := b.StructBF("s", 8,
		testkit.MemberDef{Name: "a", Type: i32, Offset: 0, Bits: 3},
		testkit.MemberDef{Name: "b", Type: i32, Offset: 3, Bits: 5},
		testkit.MemberDef{Name: "c", Type: u32, Offset: 32},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {8, 4}", l.Size, l.Align)
	}
	if len(l.Units) != 1 {
		t.Fatalf("unit count = %d, want 1", len(l.Units))
	}
	u := l.Units[0]
	if u.Offset != 0 || u.Size != 1 {
		t.Fatalf("unit = {Offset: %d, Size: %d}, want {0, 1}", u.Offset, u.Size)
	}
	if len(u.Members) != 2 {
		t.Fatalf("unit member count = %d, want 2", len(u.Members))
	}
	a, bm := u.Members[0], u.Members[1]
	if a.BitOffset != 0 || a.Width != 3 || !a.Signed {
		t.Fatalf("member a placement = %+v", a)
	}
	if bm.BitOffset != 3 || bm.Width != 5 {
		t.Fatalf("member b placement = %+v", bm)
	}
	if !l.Fields[0].Bitfield || !l.Fields[1].Bitfield {
		t.Fatalf("bitfield flags = %v, %v", l.Fields[0].Bitfield, l.Fields[1].Bitfield)
	}
	if l.Fields[2].Bitfield || l.Fields[2].Offset != 4 {
		t.Fatalf("member c = %+v", l.Fields[2])
	}
}

func TestLegacyBitfieldViaNarrowedInt(t *testing.T) {
	b := testkit.NewBuilder()
	i3 := b.Int("int", 4, testkit.Signed, 3)
	u32 := b.Int("unsigned int", 4, 0, 32)
	s := b.Struct("s", 8,
		testkit.MemberDef{Name: "a", Type: i3, Offset: 0},
		testkit.MemberDef{Name: "c", Type: u32, Offset: 32},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if len(l.Units) != 1 || l.Units[0].Members[0].Width != 3 {
		t.Fatalf("legacy bitfield units = %+v", l.Units)
	}
	if !l.Units[0].Members[0].Signed {
		t.Fatalf("legacy bitfield lost signedness: %+v", l.Units[0].Members[0])
	}
}

func TestBitfieldClusterSharesBytes(t *testing.T) {
	// Unit windows may overlap a preceding plain member; only the bytes
	// actually holding bits belong to the emitted unit.
	b := testkit.NewBuilder()
	u8 := b.Int("unsigned char", 1, 0, 8)
	i32 := b.Int("int", 4, testkit.Signed, 32)
	s := b.StructBF("s", 4,
		testkit.MemberDef{Name: "tag", Type: u8, Offset: 0},
		testkit.MemberDef{Name: "flags", Type: i32, Offset: 8, Bits: 20},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if len(l.Units) != 1 {
		t.Fatalf("unit count = %d, want 1", len(l.Units))
	}
	u := l.Units[0]
	if u.Offset != 1 || u.Size != 3 {
		t.Fatalf("unit = {Offset: %d, Size: %d}, want {1, 3}", u.Offset, u.Size)
	}
	if u.Members[0].BitOffset != 0 || u.Members[0].Width != 20 {
		t.Fatalf("member placement = %+v", u.Members[0])
	}
}

func TestPackedMemberDetection(t *testing.T) {
	b := testkit.NewBuilder()
	u8 := b.Int("unsigned char", 1, 0, 8)
	u32 := b.Int("unsigned int", 4, 0, 32)
	s := b.Struct("p", 5,
		testkit.MemberDef{Name: "a", Type: u8, Offset: 0},
		testkit.MemberDef{Name: "b", Type: u32, Offset: 8},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if l.Size != 5 || l.Align != 1 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {5, 1}", l.Size, l.Align)
	}
	if !l.Fields[1].Packed {
		t.Fatalf("member b not marked packed: %+v", l.Fields[1])
	}
}

func TestSelfReferenceThroughPointer(t *testing.T) {
	b := testkit.NewBuilder()
	u64 := b.Int("unsigned long", 8, 0, 64)
	// node is id 3; the pointer forward-references it.
	ptr := b.Pointer(3)
	node := b.Struct("node", 16,
		testkit.MemberDef{Name: "val", Type: u64, Offset: 0},
		testkit.MemberDef{Name: "next", Type: ptr, Offset: 64},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, node)
	if l.Size != 16 || l.Align != 8 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {16, 8}", l.Size, l.Align)
	}
}

func TestByValueCycleFails(t *testing.T) {
	b := testkit.NewBuilder()
	a := b.Struct("a", 4, testkit.MemberDef{Name: "b", Type: 2, Offset: 0})
	b.Struct("b", 4, testkit.MemberDef{Name: "a", Type: 1, Offset: 0})

	e := engineFor(t, b)
	le := layoutErr(t, e, a, ErrRecursiveValue)
	if len(le.Cycle) < 2 {
		t.Fatalf("cycle = %v, want at least two entries", le.Cycle)
	}

	// Failures are cached; the second query reports the same cycle.
	le2 := layoutErr(t, e, a, ErrRecursiveValue)
	if len(le2.Cycle) != len(le.Cycle) {
		t.Fatalf("cached cycle = %v, first %v", le2.Cycle, le.Cycle)
	}
}

func TestSizeMismatchFails(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	s := b.Struct("bad", 3, testkit.MemberDef{Name: "x", Type: u32, Offset: 0})

	e := engineFor(t, b)
	le := layoutErr(t, e, s, ErrMismatch)
	if le.Computed != 4 || le.Declared != 3 {
		t.Fatalf("mismatch = computed %d declared %d, want 4 and 3", le.Computed, le.Declared)
	}
}

func TestAlignmentAttributePadding(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	s := b.Struct("aligned", 8, testkit.MemberDef{Name: "x", Type: u32, Offset: 0})

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {8, 4}", l.Size, l.Align)
	}
}

func TestMemberOverlapFails(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	s := b.Struct("o", 8,
		testkit.MemberDef{Name: "a", Type: u32, Offset: 0},
		testkit.MemberDef{Name: "b", Type: u32, Offset: 16},
	)

	e := engineFor(t, b)
	layoutErr(t, e, s, ErrMemberOverlap)
}

func TestUnionLayout(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	u8 := b.Int("unsigned char", 1, 0, 8)
	arr := b.Array(u8, u32, 8)
	u := b.Union("u", 8,
		testkit.MemberDef{Name: "word", Type: u32, Offset: 0},
		testkit.MemberDef{Name: "bytes", Type: arr, Offset: 0},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, u)
	if l.Size != 8 || l.Align != 4 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {8, 4}", l.Size, l.Align)
	}
	if l.Fields[0].Size != 4 || l.Fields[1].Size != 8 {
		t.Fatalf("member sizes = %d, %d, want 4, 8", l.Fields[0].Size, l.Fields[1].Size)
	}
}

func TestArrayStride(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	u8 := b.Int("unsigned char", 1, 0, 8)
	// 5-byte struct padded to 8 per element when aligned.
	s := b.Struct("el", 8,
		testkit.MemberDef{Name: "a", Type: u32, Offset: 0},
		testkit.MemberDef{Name: "b", Type: u8, Offset: 32},
	)
	arr := b.Array(s, u32, 3)

	e := engineFor(t, b)
	size, err := e.SizeOf(btf.TypeID(arr))
	if err != nil {
		t.Fatalf("SizeOf failed: %v", err)
	}
	if size != 24 {
		t.Fatalf("array size = %d, want 24", size)
	}
}

func TestFwdByValueIsUnsized(t *testing.T) {
	b := testkit.NewBuilder()
	fwd := b.Fwd("opaque", false)
	s := b.Struct("holder", 4, testkit.MemberDef{Name: "o", Type: fwd, Offset: 0})

	e := engineFor(t, b)
	layoutErr(t, e, s, ErrUnsized)
}

func TestPointerToFwdIsFine(t *testing.T) {
	b := testkit.NewBuilder()
	fwd := b.Fwd("opaque", false)
	ptr := b.Pointer(fwd)
	s := b.Struct("holder", 8, testkit.MemberDef{Name: "o", Type: ptr, Offset: 0})

	e := engineFor(t, b)
	l := layoutOK(t, e, s)
	if l.Size != 8 || l.Align != 8 {
		t.Fatalf("layout = {Size: %d, Align: %d}, want {8, 8}", l.Size, l.Align)
	}
}

func TestDatasecLayout(t *testing.T) {
	b := testkit.NewBuilder()
	u64 := b.Int("unsigned long", 8, 0, 64)
	u32 := b.Int("unsigned int", 4, 0, 32)
	v1 := b.Var("counter", u64, testkit.LinkageGlobal)
	v2 := b.Var("mode", u32, testkit.LinkageGlobal)
	sec := b.Datasec(".bss", 16,
		testkit.SecVar{Type: v1, Offset: 0, Size: 8},
		testkit.SecVar{Type: v2, Offset: 8, Size: 4},
	)

	e := engineFor(t, b)
	l := layoutOK(t, e, sec)
	if l.Size != 16 {
		t.Fatalf("section size = %d, want 16", l.Size)
	}
	if l.Fields[1].Offset != 8 || l.Fields[1].Size != 4 {
		t.Fatalf("variable placement = %+v", l.Fields[1])
	}
}

func TestDatasecVarSizeMismatchFails(t *testing.T) {
	b := testkit.NewBuilder()
	u64 := b.Int("unsigned long", 8, 0, 64)
	v := b.Var("counter", u64, testkit.LinkageGlobal)
	sec := b.Datasec(".bss", 16, testkit.SecVar{Type: v, Offset: 0, Size: 4})

	e := engineFor(t, b)
	layoutErr(t, e, sec, ErrMismatch)
}

func TestDatasecOverlapFails(t *testing.T) {
	b := testkit.NewBuilder()
	u64 := b.Int("unsigned long", 8, 0, 64)
	v1 := b.Var("a", u64, testkit.LinkageGlobal)
	v2 := b.Var("b", u64, testkit.LinkageGlobal)
	sec := b.Datasec(".bss", 16,
		testkit.SecVar{Type: v1, Offset: 0, Size: 8},
		testkit.SecVar{Type: v2, Offset: 4, Size: 8},
	)

	e := engineFor(t, b)
	layoutErr(t, e, sec, ErrMemberOverlap)
}

func TestBitfieldOverflowFails(t *testing.T) {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	s := b.StructBF("s", 8,
		testkit.MemberDef{Name: "a", Type: i32, Offset: 30, Bits: 8},
	)

	e := engineFor(t, b)
	layoutErr(t, e, s, ErrBitfieldOverflow)
}
