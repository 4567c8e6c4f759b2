package skel

import (
	"encoding/binary"
	"testing"
)

func TestSectionReadWriteVar(t *testing.T) {
	s := NewSection(".bss", make([]byte, 16), binary.LittleEndian)

	WriteVar[uint32](s, 4, 0xdeadbeef)
	if got := ReadVar[uint32](s, 4); got != 0xdeadbeef {
		t.Fatalf("ReadVar = %#x, want 0xdeadbeef", got)
	}
	// ReadVar copies: mutating the snapshot leaves the section alone.
	v := ReadVar[uint32](s, 4)
	v = 0
	_ = v
	if got := ReadVar[uint32](s, 4); got != 0xdeadbeef {
		t.Fatalf("section mutated through a snapshot: %#x", got)
	}
}

func TestSectionVarPtrAliases(t *testing.T) {
	s := NewSection(".data", make([]byte, 8), binary.LittleEndian)

	p := VarPtr[uint64](s, 0)
	*p = 42
	if got := ReadVar[uint64](s, 0); got != 42 {
		t.Fatalf("write through VarPtr not visible: %d", got)
	}
	if s.Bytes()[0] != 42 {
		t.Fatalf("backing bytes = %v, want 42 in byte 0", s.Bytes()[:8])
	}
}

func TestSectionVarBytes(t *testing.T) {
	s := NewSection(".rodata", []byte{1, 2, 3, 4, 5, 6}, binary.LittleEndian)

	b := s.VarBytes(2, 3)
	if len(b) != 3 || b[0] != 3 {
		t.Fatalf("VarBytes = %v", b)
	}
	b[0] = 9
	if s.Bytes()[2] != 9 {
		t.Fatalf("VarBytes does not alias the section")
	}
}

func TestSectionBoundsPanic(t *testing.T) {
	s := NewSection(".bss", make([]byte, 4), binary.LittleEndian)

	defer func() {
		if recover() == nil {
			t.Fatalf("out-of-bounds read did not panic")
		}
	}()
	_ = ReadVar[uint64](s, 0)
}

func TestAsAliasesBytes(t *testing.T) {
	buf := make([]byte, 8)
	type pair struct {
		Lo uint32
		Hi uint32
	}
	p := As[pair](buf)
	p.Hi = 7
	if q := As[pair](buf); q.Hi != 7 {
		t.Fatalf("write through As not visible: %+v", q)
	}
	all := byte(0)
	for _, b := range buf[4:] {
		all |= b
	}
	if all == 0 {
		t.Fatalf("backing bytes untouched: %v", buf)
	}
}

func TestAsPanicsOnShortSlice(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("short slice did not panic")
		}
	}()
	_ = As[uint64](make([]byte, 4))
}
