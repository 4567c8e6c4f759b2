package btf

import (
	"encoding/binary"
	"errors"
	"testing"

	"skelgen/internal/testkit"
)

func parseOK(t *testing.T, blob []byte) *Index {
	t.Helper()
	ix, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return ix
}

func parseKind(t *testing.T, blob []byte, want ErrKind) *MalformedError {
	t.Helper()
	_, err := Parse(blob)
	if err == nil {
		t.Fatalf("Parse succeeded, want %v failure", want)
	}
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("Parse error %v is not a MalformedError", err)
	}
	if me.Kind != want {
		t.Fatalf("error kind = %v, want %v (%v)", me.Kind, want, me)
	}
	return me
}

func TestParseMinimalCatalogue(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	i64 := b.Int("long", 8, testkit.Signed, 64)
	s := b.Struct("pair", 16,
		testkit.MemberDef{Name: "lo", Type: u32, Offset: 0},
		testkit.MemberDef{Name: "hi", Type: i64, Offset: 64},
	)

	ix := parseOK(t, b.Bytes())
	if got := ix.NumTypes(); got != 4 {
		t.Fatalf("NumTypes = %d, want 4 (void + 3)", got)
	}
	if ix.ByteOrder() != binary.LittleEndian {
		t.Fatalf("ByteOrder = %v, want little-endian", ix.ByteOrder())
	}

	void := ix.MustLookup(VoidID)
	if void.Kind != KindVoid {
		t.Fatalf("entry 0 kind = %v, want void", void.Kind)
	}

	st := ix.MustLookup(TypeID(s))
	if st.Kind != KindStruct || st.Name != "pair" || st.Size != 16 {
		t.Fatalf("struct entry = %+v", st)
	}
	if len(st.Members) != 2 {
		t.Fatalf("member count = %d, want 2", len(st.Members))
	}
	if st.Members[1].Name != "hi" || st.Members[1].ByteOffset() != 8 {
		t.Fatalf("member hi = %+v", st.Members[1])
	}

	it := ix.MustLookup(TypeID(i64))
	if !it.Int.Signed() || it.Size != 8 {
		t.Fatalf("long entry = %+v", it)
	}
}

func TestParseBigEndian(t *testing.T) {
	b := testkit.NewBuilderOrder(binary.BigEndian)
	b.Int("int", 4, testkit.Signed, 32)

	ix := parseOK(t, b.Bytes())
	if ix.ByteOrder() != binary.BigEndian {
		t.Fatalf("ByteOrder = %v, want big-endian", ix.ByteOrder())
	}
	it := ix.MustLookup(TypeID(1))
	if it.Name != "int" || it.Size != 4 {
		t.Fatalf("int entry = %+v", it)
	}
}

func TestParseBitfieldMemberDecoding(t *testing.T) {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	s := b.StructBF("flags", 4,
		testkit.MemberDef{Name: "a", Type: i32, Offset: 0, Bits: 3},
		testkit.MemberDef{Name: "b", Type: i32, Offset: 3, Bits: 5},
	)

	ix := parseOK(t, b.Bytes())
	st := ix.MustLookup(TypeID(s))
	if !st.KindFlag {
		t.Fatalf("kind_flag not set on %+v", st)
	}
	a, bm := st.Members[0], st.Members[1]
	if a.BitfieldSize != 3 || a.RawOffset != 0 {
		t.Fatalf("member a = %+v", a)
	}
	if bm.BitfieldSize != 5 || bm.RawOffset != 3 {
		t.Fatalf("member b = %+v", bm)
	}
}

func TestParseEnum64Value(t *testing.T) {
	b := testkit.NewBuilder()
	e := b.Enum64("big", 8, false, testkit.EnumVal{Name: "HUGE", Value: 1 << 40})

	ix := parseOK(t, b.Bytes())
	et := ix.MustLookup(TypeID(e))
	if len(et.Enums) != 1 || et.Enums[0].Value != 1<<40 {
		t.Fatalf("enum64 entry = %+v", et)
	}
}

func TestParseFuncLinkageFromVlen(t *testing.T) {
	b := testkit.NewBuilder()
	proto := b.FuncProto(0)
	fn := b.Func("handle_tp", proto, testkit.LinkageGlobal)

	ix := parseOK(t, b.Bytes())
	ft := ix.MustLookup(TypeID(fn))
	if ft.Kind != KindFunc || ft.Linkage != LinkageGlobal {
		t.Fatalf("func entry = %+v", ft)
	}
}

func TestResolveFollowsAliasChains(t *testing.T) {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	td := b.Typedef("myint", i32)
	cq := b.Qualifier(testkit.KindConst, td)
	vq := b.Qualifier(testkit.KindVolatile, cq)

	ix := parseOK(t, b.Bytes())
	if got := ix.Resolve(TypeID(vq)); got != TypeID(i32) {
		t.Fatalf("Resolve(%d) = %d, want %d", vq, got, i32)
	}
}

func TestParseTruncated(t *testing.T) {
	b := testkit.NewBuilder()
	b.Int("int", 4, testkit.Signed, 32)
	blob := b.Bytes()

	parseKind(t, blob[:10], ErrTruncated)
}

func TestParseBadMagic(t *testing.T) {
	b := testkit.NewBuilder()
	blob := b.Bytes()
	blob[0], blob[1] = 0xde, 0xad

	parseKind(t, blob, ErrBadMagic)
}

func TestParseBadVersion(t *testing.T) {
	b := testkit.NewBuilder()
	blob := b.Bytes()
	blob[2] = 9

	parseKind(t, blob, ErrBadHeader)
}

func TestParseUnknownKind(t *testing.T) {
	b := testkit.NewBuilder()
	// name_off 0, kind 27 (out of range), size 0.
	b.Raw(0, 27<<24, 0)

	parseKind(t, b.Bytes(), ErrUnknownKind)
}

func TestParseRefOutOfRange(t *testing.T) {
	b := testkit.NewBuilder()
	b.Pointer(99)

	parseKind(t, b.Bytes(), ErrIndexOutOfRange)
}

func TestParseMemberRefOutOfRange(t *testing.T) {
	b := testkit.NewBuilder()
	b.Struct("s", 4, testkit.MemberDef{Name: "m", Type: 42, Offset: 0})

	me := parseKind(t, b.Bytes(), ErrIndexOutOfRange)
	if me.Type != TypeID(1) {
		t.Fatalf("error type = %d, want 1", me.Type)
	}
}

func TestParseDatasecMustReferenceVars(t *testing.T) {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	b.Datasec(".bss", 4, testkit.SecVar{Type: i32, Offset: 0, Size: 4})

	parseKind(t, b.Bytes(), ErrBadRecord)
}

func TestParseBadStringOffset(t *testing.T) {
	b := testkit.NewBuilder()
	b.Raw(0xffff, uint32(testkit.KindFwd)<<24, 0)

	parseKind(t, b.Bytes(), ErrBadStringOffset)
}

func TestParseIntBitsBeyondSize(t *testing.T) {
	b := testkit.NewBuilder()
	b.Int("weird", 1, 0, 64)

	parseKind(t, b.Bytes(), ErrBadRecord)
}

func TestDatasecsEnumeration(t *testing.T) {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	v := b.Var("counter", i32, testkit.LinkageGlobal)
	b.Datasec(".bss", 4, testkit.SecVar{Type: v, Offset: 0, Size: 4})
	b.Datasec(".data", 0)

	ix := parseOK(t, b.Bytes())
	secs := ix.Datasecs()
	if len(secs) != 2 {
		t.Fatalf("Datasecs = %v, want 2 entries", secs)
	}
	if ix.MustLookup(secs[0]).Name != ".bss" || ix.MustLookup(secs[1]).Name != ".data" {
		t.Fatalf("datasec names wrong: %v", secs)
	}
}
