package rhashmap

import (
	"testing"

	"sketchcore.dev/hashfn"
	"sketchcore.dev/sketchrand"
)

func stateInvariant(t *testing.T, m *Map[string]) {
	t.Helper()
	for i := 0; i < m.Length(); i++ {
		if m.State(i) == 0 {
			continue
		}
		want := byte(1 + m.ProbeDistance(i))
		if m.State(i) != want {
			t.Fatalf("slot %d: state = %d, want %d (probe distance %d)", i, m.State(i), want, m.ProbeDistance(i))
		}
	}
}

func TestAdjustInsertsAndIncrements(t *testing.T) {
	m, err := New[string](8, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	m.Adjust("a", 3)
	m.Adjust("b", 1)
	m.Adjust("a", 4)

	if got := m.Get("a"); got != 7 {
		t.Fatalf("Get(a) = %d, want 7", got)
	}
	if got := m.Get("b"); got != 1 {
		t.Fatalf("Get(b) = %d, want 1", got)
	}
	if got := m.Get("missing"); got != 0 {
		t.Fatalf("Get(missing) = %d, want 0", got)
	}
	if m.NumActive() != 2 {
		t.Fatalf("NumActive = %d, want 2", m.NumActive())
	}
	stateInvariant(t, m)
}

func TestDeleteSlotPreservesInvariant(t *testing.T) {
	m, err := New[string](8, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	words := []string{"apple", "pear", "plum", "grape", "kiwi", "mango", "fig", "date"}
	for _, w := range words {
		m.Adjust(w, 1)
	}
	stateInvariant(t, m)

	for i := 0; i < m.Length(); i++ {
		if m.State(i) != 0 {
			m.deleteSlot(i)
			break
		}
	}
	stateInvariant(t, m)
}

func TestPurgeSubtractsMedianAndDeletesNonPositive(t *testing.T) {
	m, err := New[string](16, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	m.Adjust("a", 1)
	m.Adjust("b", 2)
	m.Adjust("c", 3)
	m.Adjust("d", 4)
	m.Adjust("e", 5)

	rng := sketchrand.NewPCG(1, 2)
	median := m.Purge(5, rng)
	if median <= 0 {
		t.Fatalf("median = %d, want > 0", median)
	}
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if v := m.Get(k); v != 0 && v <= 0 {
			t.Fatalf("residual value for %q = %d, should be deleted or positive", k, v)
		}
	}
	stateInvariant(t, m)
}

func TestPurgeLeavesNoNonPositiveValues(t *testing.T) {
	m, err := New[string](64, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	heavy := []string{"heavy0", "heavy1", "heavy2", "heavy3", "heavy4", "heavy5", "heavy6", "heavy7"}
	for i := 0; i < 40; i++ {
		m.Adjust(string(rune('a'+i%26))+string(rune('0'+i/26)), 1)
	}
	for _, k := range heavy {
		m.Adjust(k, 10)
	}

	m.Purge(48, sketchrand.NewPCG(11, 13))

	if m.NumActive() != len(heavy) {
		t.Fatalf("NumActive after purge = %d, want %d", m.NumActive(), len(heavy))
	}
	for i := 0; i < m.Length(); i++ {
		if m.State(i) != 0 && m.values[i] <= 0 {
			t.Fatalf("slot %d survived purge with non-positive value %d", i, m.values[i])
		}
	}
	for _, k := range heavy {
		if got := m.Get(k); got != 9 {
			t.Fatalf("Get(%q) = %d, want 9 after subtracting the median", k, got)
		}
	}
	stateInvariant(t, m)
}

func TestResizePreservesActiveEntries(t *testing.T) {
	m, err := New[string](4, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	m.Adjust("a", 1)
	m.Adjust("b", 2)
	m.Adjust("c", 3)

	if err := m.Resize(32); err != nil {
		t.Fatal(err)
	}
	if m.Length() != 32 {
		t.Fatalf("Length = %d, want 32", m.Length())
	}
	if m.NumActive() != 3 {
		t.Fatalf("NumActive = %d, want 3", m.NumActive())
	}
	for k, want := range map[string]int64{"a": 1, "b": 2, "c": 3} {
		if got := m.Get(k); got != want {
			t.Fatalf("Get(%q) = %d, want %d", k, got, want)
		}
	}
	stateInvariant(t, m)
}

func TestResizeRejectsSmallerOrNonPowerOfTwo(t *testing.T) {
	m, err := New[string](16, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Resize(8); err == nil {
		t.Fatal("expected error shrinking below current length")
	}
	if err := m.Resize(48); err == nil {
		t.Fatal("expected error for non-power-of-two length")
	}
}

func TestResetClearsAllSlots(t *testing.T) {
	m, err := New[string](8, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	m.Adjust("a", 1)
	m.Reset()
	if m.NumActive() != 0 {
		t.Fatalf("NumActive after Reset = %d, want 0", m.NumActive())
	}
	if got := m.Get("a"); got != 0 {
		t.Fatalf("Get(a) after Reset = %d, want 0", got)
	}
}

func TestActiveKeysAndValuesMatchCount(t *testing.T) {
	m, err := New[string](8, hashfn.XXHashString)
	if err != nil {
		t.Fatal(err)
	}
	m.Adjust("a", 1)
	m.Adjust("b", 2)
	keys := m.ActiveKeys()
	values := m.ActiveValues()
	if len(keys) != 2 || len(values) != 2 {
		t.Fatalf("got %d keys, %d values, want 2 each", len(keys), len(values))
	}
}
