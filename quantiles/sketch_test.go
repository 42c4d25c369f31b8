package quantiles

import (
	"errors"
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"

	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

func newTestSketch(t *testing.T, k int) *Sketch {
	t.Helper()
	s, err := New(k, sketchrand.NewPCG(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRejectsNonPowerOfTwoK(t *testing.T) {
	if _, err := New(17, sketchrand.NewPCG(1, 1)); err == nil {
		t.Fatal("expected Domain error for non-power-of-two k")
	}
	if _, err := New(1, sketchrand.NewPCG(1, 1)); err == nil {
		t.Fatal("expected Domain error for k below MinK")
	}
}

func TestBitPatternMatchesNOverTwoK(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 1000; i++ {
		if err := s.Update(float64(i)); err != nil {
			t.Fatal(err)
		}
		if s.BitPattern() != uint64(s.N())/uint64(2*s.K()) {
			t.Fatalf("at n=%d: bitPattern = %b, want %b", s.N(), s.BitPattern(), uint64(s.N())/uint64(2*s.K()))
		}
	}
}

func TestUpdateTracksExtrema(t *testing.T) {
	s := newTestSketch(t, 16)
	for _, v := range []float64{5, 1, 9, 3, 7} {
		s.Update(v)
	}
	if s.MinValue() != 1 || s.MaxValue() != 9 {
		t.Fatalf("extrema = [%v, %v], want [1, 9]", s.MinValue(), s.MaxValue())
	}
}

func TestMergeCombinesTwoDisjointRanges(t *testing.T) {
	a := newTestSketch(t, 16)
	for i := 1; i <= 1000; i++ {
		a.Update(float64(i))
	}
	b := newTestSketch(t, 16)
	for i := 1001; i <= 2000; i++ {
		b.Update(float64(i))
	}

	u := NewUnion()
	if err := u.Update(a); err != nil {
		t.Fatal(err)
	}
	if err := u.Update(b); err != nil {
		t.Fatal(err)
	}
	merged, err := u.Result()
	if err != nil {
		t.Fatal(err)
	}

	if merged.N() != 2000 {
		t.Fatalf("N = %d, want 2000", merged.N())
	}
	if merged.MinValue() != 1 || merged.MaxValue() != 2000 {
		t.Fatalf("extrema = [%v, %v], want [1, 2000]", merged.MinValue(), merged.MaxValue())
	}
	median := merged.Quantile(0.5)
	tolerance := 1.65 * 2000 / 16
	if math.Abs(median-1000) > tolerance {
		t.Fatalf("median = %v, want within %v of 1000", median, tolerance)
	}
}

func TestUnionUpdateWithEmptyIsNoop(t *testing.T) {
	a := newTestSketch(t, 16)
	a.Update(1)
	a.Update(2)
	empty := newTestSketch(t, 16)

	u := NewUnion()
	u.Update(a)
	u.Update(empty)
	merged, err := u.Result()
	if err != nil {
		t.Fatal(err)
	}
	if merged.N() != 2 {
		t.Fatalf("N = %d, want 2", merged.N())
	}
}

func TestUnionResultOnEmptyUnionErrors(t *testing.T) {
	u := NewUnion()
	if _, err := u.Result(); err == nil {
		t.Fatal("expected State error from an un-updated union")
	}
}

func TestDownSamplingMergeOfLargerKIntoSmaller(t *testing.T) {
	big := newTestSketch(t, 64)
	for i := 1; i <= 5000; i++ {
		big.Update(float64(i))
	}
	small := newTestSketch(t, 16)
	for i := 5001; i <= 6000; i++ {
		small.Update(float64(i))
	}

	u := NewUnion()
	if err := u.Update(small); err != nil {
		t.Fatal(err)
	}
	if err := u.Update(big); err != nil {
		t.Fatal(err)
	}
	merged, err := u.Result()
	if err != nil {
		t.Fatal(err)
	}
	if merged.K() != 16 {
		t.Fatalf("K = %d, want 16 (down-sampled to the smaller k)", merged.K())
	}
	if merged.N() != 6000 {
		t.Fatalf("N = %d, want 6000", merged.N())
	}
	if merged.MinValue() != 1 || merged.MaxValue() != 6000 {
		t.Fatalf("extrema = [%v, %v], want [1, 6000]", merged.MinValue(), merged.MaxValue())
	}
	if merged.BitPattern() != uint64(merged.N())/uint64(2*merged.K()) {
		t.Fatalf("bitPattern = %b after down-sampling merge, want %b",
			merged.BitPattern(), uint64(merged.N())/uint64(2*merged.K()))
	}
	median := merged.Quantile(0.5)
	tolerance := 1.65 * 6000 / 16
	if math.Abs(median-3000) > tolerance {
		t.Fatalf("median = %v, want within %v of 3000", median, tolerance)
	}
}

func TestRankApproximatesUniformStream(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 1000; i++ {
		s.Update(float64(i))
	}
	rank, err := s.Rank(500)
	if err != nil {
		t.Fatal(err)
	}
	eps := 1.65 / 16
	if math.Abs(rank-0.5) > eps {
		t.Fatalf("Rank(500) = %v, want within %v of 0.5", rank, eps)
	}
	median := s.Quantile(0.5)
	if math.Abs(median-500) > eps*1000 {
		t.Fatalf("Quantile(0.5) = %v, want within %v of 500", median, eps*1000)
	}
}

func TestQuantileOutOfRangeIsNaN(t *testing.T) {
	s := newTestSketch(t, 16)
	s.Update(1)
	if !math.IsNaN(s.Quantile(0)) {
		t.Fatal("expected NaN for rank 0")
	}
	if !math.IsNaN(s.Quantile(1.5)) {
		t.Fatal("expected NaN for rank > 1")
	}
	empty := newTestSketch(t, 16)
	if !math.IsNaN(empty.Quantile(0.5)) {
		t.Fatal("expected NaN on an empty sketch")
	}
}

func TestRankOnEmptySketchErrors(t *testing.T) {
	s := newTestSketch(t, 16)
	if _, err := s.Rank(1); err == nil {
		t.Fatal("expected State error on an empty sketch")
	}
}

func TestCDFIsNonDecreasingAndEndsAtOne(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 500; i++ {
		s.Update(float64(i))
	}
	cdf, err := s.CDF([]float64{100, 200, 300, 400})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(cdf); i++ {
		if cdf[i] < cdf[i-1] {
			t.Fatalf("CDF not non-decreasing at %d: %v", i, cdf)
		}
	}
	if cdf[len(cdf)-1] != 1 {
		t.Fatalf("final CDF bucket = %v, want 1", cdf[len(cdf)-1])
	}
}

func TestPMFSumsToOne(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 500; i++ {
		s.Update(float64(i))
	}
	pmf, err := s.PMF([]float64{100, 200, 300, 400})
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, p := range pmf {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("PMF sums to %v, want 1", sum)
	}
}

// roundTripFields is the subset of Sketch state a serialize/deserialize
// round trip must preserve exactly; compared as a struct with testify/assert
// so a failure prints both sides in one diff instead of a chain of
// individual field assertions.
type roundTripFields struct {
	N          int64
	BitPattern uint64
	MinValue   float64
	MaxValue   float64
}

func fieldsOf(s *Sketch) roundTripFields {
	return roundTripFields{N: s.N(), BitPattern: s.BitPattern(), MinValue: s.MinValue(), MaxValue: s.MaxValue()}
}

func TestRoundTripPreservesStateAndLevels(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 1000; i++ {
		s.Update(float64(i))
	}
	b := s.ToBytes()
	restored, err := FromBytes(b, sketchrand.NewPCG(9, 9))
	if err != nil {
		t.Fatal(err)
	}
	if !assert.Equal(t, fieldsOf(s), fieldsOf(restored), "round trip should preserve n/bitPattern/extrema:\n%s", spew.Sdump(s)) {
		t.FailNow()
	}
	for lvl := range s.levels {
		if s.levels[lvl] == nil {
			continue
		}
		got := restored.levels[lvl].Items()
		want := s.levels[lvl].Items()
		if len(got) != len(want) {
			t.Fatalf("level %d length mismatch: got %d, want %d", lvl, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("level %d item %d mismatch: got %v, want %v", lvl, i, got[i], want[i])
			}
		}
	}
}

func TestToBytesEmptySketchIsEightBytes(t *testing.T) {
	s := newTestSketch(t, 16)
	b := s.ToBytes()
	if len(b) != 8 {
		t.Fatalf("len = %d, want 8", len(b))
	}
	if b[0] != 1 {
		t.Fatalf("preambleLongs = %d, want 1", b[0])
	}
	if b[6]&quantilesEmptyFlag == 0 {
		t.Fatal("expected EMPTY flag set")
	}
}

func TestResetReturnsToEmptyState(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 100; i++ {
		s.Update(float64(i))
	}
	s.Reset()
	if !s.IsEmpty() || s.N() != 0 || s.BitPattern() != 0 {
		t.Fatal("Reset should clear all bookkeeping")
	}
	if !math.IsInf(s.MinValue(), 1) || !math.IsInf(s.MaxValue(), -1) {
		t.Fatal("Reset should restore the no-data extrema sentinels")
	}
}

func TestCopyBytesRejectsTooSmallDst(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 100; i++ {
		s.Update(float64(i))
	}
	want := s.ToBytes()
	dst := make([]byte, len(want)-1)
	_, err := s.CopyBytes(dst)
	if err == nil {
		t.Fatal("expected Capacity error for an undersized destination")
	}
	if !errors.Is(err, sketcherr.ErrCapacity) {
		t.Fatalf("err = %v, want a Capacity error", err)
	}
}

func TestCopyBytesWritesIntoCallerBuffer(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 100; i++ {
		s.Update(float64(i))
	}
	want := s.ToBytes()
	dst := make([]byte, len(want)+32)
	n, err := s.CopyBytes(dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(want) {
		t.Fatalf("n = %d, want %d", n, len(want))
	}
	for i := 0; i < n; i++ {
		if dst[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestSketch(t, 16)
	for i := 1; i <= 100; i++ {
		s.Update(float64(i))
	}
	clone := s.Clone()
	for i := 101; i <= 200; i++ {
		s.Update(float64(i))
	}
	if clone.N() != 100 {
		t.Fatalf("clone.N() = %d, want 100 (mutating the original should not affect the clone)", clone.N())
	}
}
