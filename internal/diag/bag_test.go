package diag

import "testing"

func TestBagLimit(t *testing.T) {
	b := NewBag(2)
	if !b.Add(NewWarning(GenInfo, TypeLoc(1), "one")) {
		t.Fatalf("first add dropped")
	}
	if !b.Add(NewWarning(GenInfo, TypeLoc(2), "two")) {
		t.Fatalf("second add dropped")
	}
	if b.Add(NewWarning(GenInfo, TypeLoc(3), "three")) {
		t.Fatalf("add beyond the limit accepted")
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
}

func TestBagFullStillAdmitsErrors(t *testing.T) {
	b := NewBag(1)
	b.Add(NewWarning(GenSkippedDependent, TypeLoc(1), "filler"))
	if b.Add(NewWarning(GenSkippedDependent, TypeLoc(2), "dropped")) {
		t.Fatalf("warning accepted past the limit")
	}
	if !b.Add(NewError(LayMismatch, TypeLoc(3), "must land")) {
		t.Fatalf("error dropped by a full bag")
	}
	if !b.HasFatal() {
		t.Fatalf("fatal diagnostic lost")
	}
}

func TestBagHasFatal(t *testing.T) {
	b := NewBag(8)
	b.Add(NewWarning(GenUnsupportedConstruct, TypeLoc(1), "skip"))
	if b.HasFatal() {
		t.Fatalf("warning counted as fatal")
	}
	b.Add(NewError(LayMismatch, TypeLoc(2), "boom"))
	if !b.HasFatal() {
		t.Fatalf("layout mismatch not fatal")
	}
	if !b.HasErrors() {
		t.Fatalf("HasErrors false with an error present")
	}
}

func TestBagSortOrder(t *testing.T) {
	b := NewBag(8)
	b.Add(NewWarning(GenSkippedDependent, TypeLoc(5), "later type"))
	b.Add(NewError(LayMismatch, MemberLoc(2, 1), "member"))
	b.Add(NewError(CatTruncated, TypeLoc(2), "type before member"))

	b.Sort()
	items := b.Items()
	if items[0].Primary.Type != 2 || items[0].Primary.Member != -1 {
		t.Fatalf("first item = %+v", items[0].Primary)
	}
	if items[1].Primary.Member != 1 {
		t.Fatalf("second item = %+v", items[1].Primary)
	}
	if items[2].Primary.Type != 5 {
		t.Fatalf("third item = %+v", items[2].Primary)
	}
}

func TestBagDedup(t *testing.T) {
	b := NewBag(8)
	b.Add(NewWarning(GenSkippedDependent, TypeLoc(3), "dup"))
	b.Add(NewWarning(GenSkippedDependent, TypeLoc(3), "dup again"))
	b.Add(NewWarning(GenSkippedDependent, TypeLoc(4), "kept"))

	b.Dedup()
	if b.Len() != 2 {
		t.Fatalf("Len after Dedup = %d, want 2", b.Len())
	}
}

func TestCodeString(t *testing.T) {
	if got := LayMismatch.String(); got != "LAY2001" {
		t.Fatalf("LayMismatch = %q", got)
	}
	if got := CatTruncated.String(); got != "CAT1002" {
		t.Fatalf("CatTruncated = %q", got)
	}
	if got := GenSkippedDependent.String(); got != "GEN4002" {
		t.Fatalf("GenSkippedDependent = %q", got)
	}
}
