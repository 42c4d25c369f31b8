package frequency

import (
	"errors"
	"testing"

	"sketchcore.dev/hashfn"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

func TestScenarioEmptySketchSerializesToEightBytes(t *testing.T) {
	s := newTestSketch(t, 8)
	b := s.ToBytes(StringCodec{})
	if len(b) != 8 {
		t.Fatalf("len(ToBytes) = %d, want 8", len(b))
	}
	if b[0] != 1 {
		t.Fatalf("byte 0 = %d, want 1", b[0])
	}
	if b[5]&emptyFlagMask == 0 {
		t.Fatal("byte 5 should have the EMPTY bit set")
	}
}

func TestRoundTripPopulatedSketch(t *testing.T) {
	s := newTestSketch(t, 8)
	s.Update("alpha", 3)
	s.Update("beta", 1)
	s.Update("gamma", 2)

	b := s.ToBytes(StringCodec{})
	got, err := FromBytes[string](b, StringCodec{}, hashfn.XXHashString, sketchrand.NewPCG(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if got.StreamLength() != s.StreamLength() {
		t.Fatalf("StreamLength = %d, want %d", got.StreamLength(), s.StreamLength())
	}
	for _, item := range []string{"alpha", "beta", "gamma"} {
		if got.Estimate(item) != s.Estimate(item) {
			t.Fatalf("Estimate(%s) = %d, want %d", item, got.Estimate(item), s.Estimate(item))
		}
	}
}

func TestRoundTripEmptySketch(t *testing.T) {
	s := newTestSketch(t, 8)
	b := s.ToBytes(StringCodec{})
	got, err := FromBytes[string](b, StringCodec{}, hashfn.XXHashString, sketchrand.NewPCG(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsEmpty() {
		t.Fatal("round-tripped empty sketch should still be empty")
	}
}

func TestFromBytesRejectsShortInput(t *testing.T) {
	if _, err := FromBytes[string]([]byte{1, 2, 3}, StringCodec{}, hashfn.XXHashString, sketchrand.NewPCG(1, 2)); err == nil {
		t.Fatal("expected Corruption error for too-short input")
	}
}

func TestFromBytesRejectsBadFamilyID(t *testing.T) {
	s := newTestSketch(t, 8)
	b := s.ToBytes(StringCodec{})
	b[2] = 99
	if _, err := FromBytes[string](b, StringCodec{}, hashfn.XXHashString, sketchrand.NewPCG(1, 2)); err == nil {
		t.Fatal("expected Corruption error for bad family id")
	}
}

func TestFromBytesRejectsMismatchedSerializerTypeByte(t *testing.T) {
	s := newTestSketch(t, 8)
	b := s.ToBytes(StringCodec{})
	b[6] = 200
	if _, err := FromBytes[string](b, StringCodec{}, hashfn.XXHashString, sketchrand.NewPCG(1, 2)); err == nil {
		t.Fatal("expected Corruption error for type byte mismatch")
	}
}

func TestCopyBytesRejectsTooSmallDst(t *testing.T) {
	s := newTestSketch(t, 8)
	s.Update("alpha", 3)
	want := s.ToBytes(StringCodec{})
	dst := make([]byte, len(want)-1)
	_, err := s.CopyBytes(dst, StringCodec{})
	if err == nil {
		t.Fatal("expected Capacity error for an undersized destination")
	}
	if !errors.Is(err, sketcherr.ErrCapacity) {
		t.Fatalf("err = %v, want a Capacity error", err)
	}
}

func TestCopyBytesWritesIntoCallerBuffer(t *testing.T) {
	s := newTestSketch(t, 8)
	s.Update("alpha", 3)
	s.Update("beta", 1)
	want := s.ToBytes(StringCodec{})
	dst := make([]byte, len(want)+16)
	n, err := s.CopyBytes(dst, StringCodec{})
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
