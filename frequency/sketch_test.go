package frequency

import (
	"testing"

	"sketchcore.dev/hashfn"
	"sketchcore.dev/sketchrand"
)

func newTestSketch(t *testing.T, maxMapSize int) *ItemsSketch[string] {
	t.Helper()
	s, err := New[string](maxMapSize, hashfn.XXHashString, sketchrand.NewPCG(7, 11))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestScenarioBasicUpdatesWithinCapacity(t *testing.T) {
	s := newTestSketch(t, 8)
	updates := []struct {
		item  string
		count int64
	}{
		{"a", 3}, {"b", 1}, {"c", 2}, {"d", 4},
	}
	for _, u := range updates {
		if err := s.Update(u.item, u.count); err != nil {
			t.Fatal(err)
		}
	}
	if s.StreamLength() != 10 {
		t.Fatalf("StreamLength = %d, want 10", s.StreamLength())
	}
	if s.NumActiveItems() != 4 {
		t.Fatalf("NumActiveItems = %d, want 4", s.NumActiveItems())
	}
	if got := s.Estimate("a"); got != 3 {
		t.Fatalf("Estimate(a) = %d, want 3", got)
	}
	if got := s.LowerBound("a"); got != 3 {
		t.Fatalf("LowerBound(a) = %d, want 3", got)
	}
	if got := s.UpperBound("a"); got != 3 {
		t.Fatalf("UpperBound(a) = %d, want 3", got)
	}
}

func TestScenarioPurgeFiresPastCapacity(t *testing.T) {
	s := newTestSketch(t, 8)
	items := []string{"i0", "i1", "i2", "i3", "i4", "i5", "i6", "i7", "i8"}
	for _, item := range items {
		if err := s.Update(item, 1); err != nil {
			t.Fatal(err)
		}
	}
	if s.Offset() == 0 {
		t.Fatal("expected a purge to have fired and grown Offset")
	}
	for _, item := range items {
		if s.Estimate(item) > 1+s.Offset() {
			t.Fatalf("Estimate(%s) exceeds trueCount + offset", item)
		}
	}
}

func TestUpdateRejectsNegativeCount(t *testing.T) {
	s := newTestSketch(t, 8)
	if err := s.Update("a", -1); err == nil {
		t.Fatal("expected Domain error for negative count")
	}
}

func TestUpdateZeroCountIsNoOp(t *testing.T) {
	s := newTestSketch(t, 8)
	if err := s.Update("a", 0); err != nil {
		t.Fatal(err)
	}
	if s.StreamLength() != 0 || s.NumActiveItems() != 0 {
		t.Fatal("zero-count update should be a complete no-op")
	}
}

func TestMergeWithEmptyIsIdentity(t *testing.T) {
	s := newTestSketch(t, 8)
	s.Update("a", 3)
	s.Update("b", 2)

	empty := newTestSketch(t, 8)
	if err := s.Merge(empty); err != nil {
		t.Fatal(err)
	}
	if s.StreamLength() != 5 {
		t.Fatalf("StreamLength after merging empty = %d, want 5", s.StreamLength())
	}
	if s.Estimate("a") != 3 || s.Estimate("b") != 2 {
		t.Fatal("merging an empty sketch should not change estimates")
	}
}

func TestMergeFoldsInOtherActiveItems(t *testing.T) {
	a := newTestSketch(t, 8)
	a.Update("x", 5)
	b := newTestSketch(t, 8)
	b.Update("x", 2)
	b.Update("y", 7)

	if err := a.Merge(b); err != nil {
		t.Fatal(err)
	}
	if a.StreamLength() != 14 {
		t.Fatalf("StreamLength after merge = %d, want 14", a.StreamLength())
	}
	if got := a.Estimate("x"); got < 7 {
		t.Fatalf("Estimate(x) after merge = %d, want >= 7", got)
	}
}

func TestFrequentItemsSortedDescendingByEstimate(t *testing.T) {
	s := newTestSketch(t, 16)
	s.Update("low", 1)
	s.Update("mid", 5)
	s.Update("high", 9)

	rows := s.FrequentItems(NoFalseNegatives, 0)
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Estimate < rows[i].Estimate {
			t.Fatalf("rows not sorted descending: %+v", rows)
		}
	}
	if rows[0].Item != "high" {
		t.Fatalf("top row = %+v, want item high first", rows[0])
	}
}

func TestTopItemsCapsAtN(t *testing.T) {
	s := newTestSketch(t, 16)
	for _, item := range []string{"a", "b", "c", "d"} {
		s.Update(item, 1)
	}
	rows := s.TopItems(2)
	if len(rows) != 2 {
		t.Fatalf("TopItems(2) returned %d rows, want 2", len(rows))
	}
}

func TestResetReturnsToEmptyMinimalMap(t *testing.T) {
	s := newTestSketch(t, 8)
	s.Update("a", 1)
	s.Reset()
	if !s.IsEmpty() || s.StreamLength() != 0 || s.Offset() != 0 {
		t.Fatal("Reset should clear all bookkeeping and tracked items")
	}
}
