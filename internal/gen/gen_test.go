package gen

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"skelgen/internal/btf"
	"skelgen/internal/diag"
	"skelgen/internal/layout"
	"skelgen/internal/testkit"
)

func generate(t *testing.T, blob []byte, opts Options) (string, *diag.Bag) {
	t.Helper()
	ix, err := btf.Parse(blob)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	eng := layout.New(layout.BPF(ix.ByteOrder()), ix)
	bag := diag.NewBag(64)
	code, err := Generate(ix, eng, opts, bag)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return code, bag
}

func wantContains(t *testing.T, code string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(code, p) {
			t.Errorf("generated code missing %q", p)
		}
	}
}

// counterBlob builds the catalogue most tests share: a bitfield struct,
// an enum, a union, a .bss datasec with one global, a .maps datasec and
// one global program.
func counterBlob() []byte {
	b := testkit.NewBuilder()
	i32 := b.Int("int", 4, testkit.Signed, 32)
	u32 := b.Int("unsigned int", 4, 0, 32)
	u64 := b.Int("unsigned long long", 8, 0, 64)

	b.StructBF("event", 8,
		testkit.MemberDef{Name: "a", Type: i32, Offset: 0, Bits: 3},
		testkit.MemberDef{Name: "b", Type: i32, Offset: 3, Bits: 5},
		testkit.MemberDef{Name: "count", Type: u32, Offset: 32},
	)
	b.Enum("mode", 4, false,
		testkit.EnumVal{Name: "MODE_OFF", Value: 0},
		testkit.EnumVal{Name: "MODE_ON", Value: 1},
	)
	b.Union("slot", 8,
		testkit.MemberDef{Name: "word", Type: u64, Offset: 0},
		testkit.MemberDef{Name: "half", Type: u32, Offset: 0},
	)

	total := b.Var("total", u64, testkit.LinkageGlobal)
	b.Datasec(".bss", 8, testkit.SecVar{Type: total, Offset: 0, Size: 8})

	ringbuf := b.Struct("ringbuf_map", 8,
		testkit.MemberDef{Name: "type", Type: u32, Offset: 0},
		testkit.MemberDef{Name: "max_entries", Type: u32, Offset: 32},
	)
	events := b.Var("events", ringbuf, testkit.LinkageGlobal)
	b.Datasec(".maps", 8, testkit.SecVar{Type: events, Offset: 0, Size: 8})

	proto := b.FuncProto(i32)
	b.Func("handle_tp", proto, testkit.LinkageGlobal)

	return b.Bytes()
}

func TestGenerateDeterministic(t *testing.T) {
	opts := Options{ObjectName: "counter"}
	first, _ := generate(t, counterBlob(), opts)
	second, _ := generate(t, counterBlob(), opts)
	if first != second {
		t.Fatalf("two runs over the same catalogue differ")
	}
	if first == "" {
		t.Fatalf("empty output for a valid catalogue")
	}
}

func TestGenerateHeaderAndPackage(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	wantContains(t, code,
		"// Code generated by skelgen from counter.bpf.o; DO NOT EDIT.",
		"package counter\n",
		"skel \"skelgen/skel\"",
	)
}

func TestGenerateBitfieldAccessors(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	wantContains(t, code,
		"type CounterEvent struct",
		"Bits0 [1]uint8",
		"skel.SignExtend",
		"skel.LoadBitsLE",
		"skel.StoreBitsLE",
		"func (v *CounterEvent) A() int32",
		"func (v *CounterEvent) SetB(x int32)",
		"Count uint32",
	)
}

func TestGenerateEnum(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	wantContains(t, code,
		"type CounterMode uint32",
		"CounterModeModeOff CounterMode = 0",
		"CounterModeModeOn CounterMode = 1",
	)
}

func TestGenerateUnionRawStorage(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	wantContains(t, code,
		"type CounterSlot struct",
		"Raw [8]uint8",
		"func (v *CounterSlot) Word() uint64",
		"func (v *CounterSlot) SetHalf(x uint32)",
	)
}

func TestGenerateDatasecViews(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	wantContains(t, code,
		"type CounterBssShared struct",
		"type CounterBssExclusive struct",
		"func (v CounterBssShared) Total() uint64",
		"func (v CounterBssExclusive) SetTotal(x uint64)",
		"func (v CounterBssExclusive) TotalPtr() *uint64",
	)
	// .maps never becomes a data view.
	if strings.Contains(code, "MapsShared") {
		t.Errorf(".maps section grew a data view")
	}
}

func TestGenerateSkeletonLifecycle(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	wantContains(t, code,
		"//go:embed counter.bpf.o",
		"type CounterBuilder struct",
		"type OpenCounter struct",
		"type LoadedCounter struct",
		"type AttachedCounter struct",
		"func (s *LoadedCounter) Attach()",
		"func (s *LoadedCounter) EventsMap()",
		"skel.ErrClosed",
		"\"handle_tp\"",
	)
}

func TestGenerateRawAccessorsOptIn(t *testing.T) {
	off, _ := generate(t, counterBlob(), Options{ObjectName: "counter"})
	on, _ := generate(t, counterBlob(), Options{ObjectName: "counter", EmitRawAccessors: true})
	if strings.Contains(off, "func (v CounterBssExclusive) Bytes()") {
		t.Errorf("raw accessors emitted without the option")
	}
	wantContains(t, on, "func (v CounterBssExclusive) Bytes()")
}

func TestGenerateTypePrefixOverride(t *testing.T) {
	code, _ := generate(t, counterBlob(), Options{ObjectName: "counter", TypePrefix: "Xdp"})
	wantContains(t, code, "type XdpEvent struct", "type XdpMode uint32")
	if strings.Contains(code, "type CounterEvent ") {
		t.Errorf("default prefix used despite override")
	}
}

func TestGenerateAnonymousStructsGetDistinctNames(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	inner1 := b.Struct("", 4, testkit.MemberDef{Name: "x", Type: u32, Offset: 0})
	inner2 := b.Struct("", 4, testkit.MemberDef{Name: "y", Type: u32, Offset: 0})
	b.Struct("outer", 8,
		testkit.MemberDef{Name: "first", Type: inner1, Offset: 0},
		testkit.MemberDef{Name: "second", Type: inner2, Offset: 32},
	)

	code, _ := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	wantContains(t, code,
		"type DemoOuter struct",
		"type DemoOuterFirst struct",
		"type DemoOuterSecond struct",
		"First DemoOuterFirst",
		"Second DemoOuterSecond",
	)
}

func TestGenerateNameCollisionOrdinalSuffix(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	b.Struct("conn_state", 4, testkit.MemberDef{Name: "v", Type: u32, Offset: 0})
	b.Struct("conn__state", 4, testkit.MemberDef{Name: "v", Type: u32, Offset: 0})

	code, _ := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	wantContains(t, code, "type DemoConnState struct", "type DemoConnState_3 struct")
}

func TestGeneratePaddingFields(t *testing.T) {
	b := testkit.NewBuilder()
	u8 := b.Int("unsigned char", 1, 0, 8)
	u64 := b.Int("unsigned long long", 8, 0, 64)
	b.Struct("padded", 16,
		testkit.MemberDef{Name: "tag", Type: u8, Offset: 0},
		testkit.MemberDef{Name: "val", Type: u64, Offset: 64},
	)

	code, _ := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	wantContains(t, code, "Pad0 [7]uint8")
}

func TestGenerateTypedefAlias(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	b.Typedef("req_id", u32)
	proto := b.FuncProto(0)
	b.Typedef("callback_t", proto)

	code, _ := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	wantContains(t, code,
		"type DemoReqId = uint32",
		"type DemoCallbackT = skel.Ptr",
	)
}

func TestGenerateFatalLayoutMismatch(t *testing.T) {
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	// Declared size smaller than the members require.
	b.Struct("broken", 3, testkit.MemberDef{Name: "v", Type: u32, Offset: 0})

	code, bag := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	if code != "" {
		t.Fatalf("fatal layout produced output")
	}
	if !bag.HasFatal() {
		t.Fatalf("no fatal diagnostic recorded: %v", bag.Items())
	}
}

func TestGenerateFatalSurvivesFullBag(t *testing.T) {
	// Enough recoverable skips to exhaust the bag before the layout
	// mismatch is found. The fatal finding must still abort the run.
	b := testkit.NewBuilder()
	u32 := b.Int("unsigned int", 4, 0, 32)
	for i := 0; i < 70; i++ {
		fwd := b.Fwd(fmt.Sprintf("opaque%d", i), false)
		b.Struct(fmt.Sprintf("holder%d", i), 4,
			testkit.MemberDef{Name: "o", Type: fwd, Offset: 0})
	}
	b.Struct("broken", 3, testkit.MemberDef{Name: "v", Type: u32, Offset: 0})

	code, bag := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	if code != "" {
		t.Fatalf("fatal layout produced output")
	}
	if !bag.HasFatal() {
		t.Fatalf("fatal diagnostic dropped by a full bag")
	}
}

func TestGenerateUnsizedFwdSkippedWithWarning(t *testing.T) {
	b := testkit.NewBuilder()
	fwd := b.Fwd("opaque", false)
	b.Struct("holder", 4, testkit.MemberDef{Name: "o", Type: fwd, Offset: 0})

	code, bag := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	if code == "" {
		t.Fatalf("recoverable skip aborted generation: %v", bag.Items())
	}
	if strings.Contains(code, "type DemoHolder struct") {
		t.Errorf("dependent of an unsized type was emitted")
	}
	if bag.Len() == 0 {
		t.Fatalf("skip left no diagnostic")
	}
	if bag.HasFatal() {
		t.Fatalf("recoverable skip reported as fatal: %v", bag.Items())
	}
}

func TestGenerateBigEndianUsesBEHelpers(t *testing.T) {
	b := testkit.NewBuilderOrder(binary.BigEndian)
	i32 := b.Int("int", 4, testkit.Signed, 32)
	b.StructBF("flags", 4,
		testkit.MemberDef{Name: "a", Type: i32, Offset: 0, Bits: 3},
	)

	code, _ := generate(t, b.Bytes(), Options{ObjectName: "demo"})
	wantContains(t, code, "skel.LoadBitsBE", "skel.StoreBitsBE")
	if strings.Contains(code, "skel.LoadBitsLE") {
		t.Errorf("little-endian helper in big-endian output")
	}
}
