// Package rhashmap implements ReversePurgeHashMap: an open-addressed,
// linear-probing hash table supporting adjust(key, delta), rank-based purge
// by approximate median, and resize — the table the frequency sketch layers
// its Misra-Gries/SpaceSaving bookkeeping on top of.
//
// Grounded on freakyzoidberg-apache-datasketches-go's
// reverse_purge_item_hash_map.go for field shape (lgLength, parallel
// keys/values/states arrays, numActive, loadThreshold); the probe-distance
// state byte and Robin-Hood purge semantics below were written from scratch,
// since the upstream Go port in the retrieval pack only carries the
// constructor.
package rhashmap

import (
	"sort"

	"sketchcore.dev/hashfn"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// LoadFactor is the fraction of slots considered usable capacity.
const LoadFactor = 0.75

// MinLgLength is the smallest table exponent ReversePurgeHashMap allows:
// a table of length 4, the size a frequency sketch resets back down to.
const MinLgLength = 2

// Map is an open-addressed hash map from K to int64 counters, with a
// per-slot probe-distance byte enabling Robin-Hood deletion during purge.
type Map[K comparable] struct {
	lgLength int
	keys     []K
	values   []int64
	states   []byte
	numActive int
	hasher   hashfn.Hasher[K]
}

// New constructs a Map with the given initial size (a power of two, >= 4)
// and key hasher.
func New[K comparable](initialSize int, hasher hashfn.Hasher[K]) (*Map[K], error) {
	lg, err := exactLog2(initialSize)
	if err != nil {
		return nil, err
	}
	if lg < MinLgLength {
		lg = MinLgLength
	}
	length := 1 << lg
	return &Map[K]{
		lgLength: lg,
		keys:     make([]K, length),
		values:   make([]int64, length),
		states:   make([]byte, length),
		hasher:   hasher,
	}, nil
}

func exactLog2(n int) (int, error) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, sketcherr.New(sketcherr.Domain, "rhashmap.New", "size must be a power of two")
	}
	lg := 0
	for n > 1 {
		n >>= 1
		lg++
	}
	return lg, nil
}

// Length returns the physical size of the backing arrays (a power of two).
func (m *Map[K]) Length() int { return 1 << m.lgLength }

// LgLength returns log2(Length()).
func (m *Map[K]) LgLength() int { return m.lgLength }

// Capacity returns floor(LoadFactor * Length()), the maximum number of
// active keys the table should hold before a purge or resize.
func (m *Map[K]) Capacity() int {
	return int(LoadFactor * float64(m.Length()))
}

// NumActive returns the number of non-empty slots.
func (m *Map[K]) NumActive() int { return m.numActive }

// idealSlot re-mixes the caller-supplied hash through a second, fixed
// 64-bit mixer before masking it down to a slot index. The caller's Hasher
// is free to be a thin pass-through over a numeric key (so two keys that
// differ only in their low bits would otherwise land in adjacent slots);
// re-mixing decorrelates the slot index from the raw key value regardless
// of which Hasher a caller plugs in.
func (m *Map[K]) idealSlot(key K) int {
	h := m.hasher.Hash(key)
	mixed := hashfn.Metro64.Hash(h)
	return int(mixed) & (m.Length() - 1)
}

// probeDistance returns how many slots past the ideal slot index i is,
// wrapping around the table.
func (m *Map[K]) probeDistance(ideal, i int) int {
	length := m.Length()
	if i >= ideal {
		return i - ideal
	}
	return length - ideal + i
}

// ProbeDistance returns how many probes past its ideal slot the occupant of
// slot i sits at. Exported for the invariant check in tests; -1 if slot i is
// empty.
func (m *Map[K]) ProbeDistance(i int) int {
	if m.states[i] == 0 {
		return -1
	}
	return m.probeDistance(m.idealSlot(m.keys[i]), i)
}

// State returns the raw probe-distance-plus-one byte stored at slot i.
func (m *Map[K]) State(i int) byte { return m.states[i] }

// Get returns the stored value for key, or 0 if absent.
func (m *Map[K]) Get(key K) int64 {
	length := m.Length()
	ideal := m.idealSlot(key)
	for probe := 0; probe < length; probe++ {
		i := (ideal + probe) & (length - 1)
		if m.states[i] == 0 {
			return 0
		}
		if m.keys[i] == key {
			return m.values[i]
		}
	}
	return 0
}

// Adjust adds delta to key's stored value, inserting a new (key, delta)
// entry if key is not yet present. delta must be > 0.
func (m *Map[K]) Adjust(key K, delta int64) {
	length := m.Length()
	ideal := m.idealSlot(key)
	for probe := 0; probe < length; probe++ {
		i := (ideal + probe) & (length - 1)
		if m.states[i] == 0 {
			m.keys[i] = key
			m.values[i] = delta
			m.states[i] = byte(probe + 1)
			m.numActive++
			return
		}
		if m.keys[i] == key {
			m.values[i] += delta
			return
		}
	}
	// Table full with no matching key and no empty slot: callers must
	// resize before this can happen (adjust is only called after the
	// ItemsSketch state machine has ensured headroom).
}

// Iterator yields active (key, value) pairs in arbitrary slot order. It is
// only safe against a Map that isn't mutated during iteration.
type Iterator[K comparable] struct {
	m *Map[K]
	i int
}

func (m *Map[K]) Iterator() *Iterator[K] { return &Iterator[K]{m: m, i: -1} }

func (it *Iterator[K]) Next() bool {
	it.i++
	for it.i < len(it.m.states) && it.m.states[it.i] == 0 {
		it.i++
	}
	return it.i < len(it.m.states)
}

func (it *Iterator[K]) Key() K     { return it.m.keys[it.i] }
func (it *Iterator[K]) Value() int64 { return it.m.values[it.i] }

// ActiveKeys and ActiveValues materialize all active entries, used by the
// frequency sketch's serializer.
func (m *Map[K]) ActiveKeys() []K {
	out := make([]K, 0, m.numActive)
	it := m.Iterator()
	for it.Next() {
		out = append(out, it.Key())
	}
	return out
}

func (m *Map[K]) ActiveValues() []int64 {
	out := make([]int64, 0, m.numActive)
	it := m.Iterator()
	for it.Next() {
		out = append(out, it.Value())
	}
	return out
}

// deleteSlot removes the entry at slot i and performs the Robin-Hood
// backward shift: while the next slot is occupied and displaced more than
// one probe from its ideal slot, move it back one slot and decrement its
// recorded probe distance. This preserves the invariant that every active
// slot's state byte equals 1 + its probe distance.
func (m *Map[K]) deleteSlot(i int) {
	length := m.Length()
	var zeroK K
	m.keys[i] = zeroK
	m.values[i] = 0
	m.states[i] = 0
	m.numActive--

	j := i
	for {
		next := (j + 1) & (length - 1)
		if m.states[next] <= 1 {
			break
		}
		m.keys[j] = m.keys[next]
		m.values[j] = m.values[next]
		m.states[j] = m.states[next] - 1
		m.keys[next] = zeroK
		m.values[next] = 0
		m.states[next] = 0
		j = next
	}
}

// Purge samples min(sampleSize, NumActive()) active values uniformly without
// replacement (the owning sketch caps sampleSize at 256), computes their approximate median, subtracts it from every
// active value, deletes every entry that becomes non-positive, and returns
// the median (the subtracted delta), which the owning sketch folds into its
// running offset.
func (m *Map[K]) Purge(sampleSize int, rng sketchrand.UniformRng) int64 {
	if sampleSize > m.numActive {
		sampleSize = m.numActive
	}
	if sampleSize <= 0 {
		return 0
	}

	activeSlots := make([]int, 0, m.numActive)
	for i, s := range m.states {
		if s != 0 {
			activeSlots = append(activeSlots, i)
		}
	}
	// Fisher-Yates partial shuffle to draw sampleSize indices without
	// replacement, uniformly.
	for k := 0; k < sampleSize; k++ {
		j := k + rng.IntN(len(activeSlots)-k)
		activeSlots[k], activeSlots[j] = activeSlots[j], activeSlots[k]
	}
	sample := make([]int64, sampleSize)
	for k := 0; k < sampleSize; k++ {
		sample[k] = m.values[activeSlots[k]]
	}
	sort.Slice(sample, func(a, b int) bool { return sample[a] < sample[b] })
	median := sample[sampleSize/2]

	length := m.Length()
	for i := range m.values {
		if m.states[i] != 0 {
			m.values[i] -= median
		}
	}
	// Scan starting just past an empty slot (one always exists, since
	// numActive <= 0.75*length). A probe chain never crosses an empty slot,
	// so deleteSlot's backward shifts can only move entries into positions
	// the scan has not passed yet, and one pass suffices even when a chain
	// wraps around the end of the table.
	start := 0
	for i, s := range m.states {
		if s == 0 {
			start = i + 1
			break
		}
	}
	for n := 0; n < length; n++ {
		i := (start + n) & (length - 1)
		for m.states[i] != 0 && m.values[i] <= 0 {
			m.deleteSlot(i)
		}
	}
	return median
}

// Resize reallocates the table to newLength, which must be a power of two
// no smaller than the current length, and reinserts every active entry at
// its new ideal slot. NumActive and every stored value are preserved.
func (m *Map[K]) Resize(newLength int) error {
	lg, err := exactLog2(newLength)
	if err != nil {
		return sketcherr.Wrap(sketcherr.Domain, "rhashmap.Map.Resize", "newLength must be a power of two", err)
	}
	if newLength < m.Length() {
		return sketcherr.New(sketcherr.Domain, "rhashmap.Map.Resize", "newLength must be >= current length")
	}

	oldKeys, oldValues, oldStates := m.keys, m.values, m.states
	m.lgLength = lg
	m.keys = make([]K, newLength)
	m.values = make([]int64, newLength)
	m.states = make([]byte, newLength)
	m.numActive = 0

	for i, s := range oldStates {
		if s == 0 {
			continue
		}
		m.insertFresh(oldKeys[i], oldValues[i])
	}
	return nil
}

// insertFresh places a (key, value) pair into an empty-at-its-ideal-slot
// region of the table during resize/rebuild, where key is known not to
// already be present.
func (m *Map[K]) insertFresh(key K, value int64) {
	length := m.Length()
	ideal := m.idealSlot(key)
	for probe := 0; probe < length; probe++ {
		i := (ideal + probe) & (length - 1)
		if m.states[i] == 0 {
			m.keys[i] = key
			m.values[i] = value
			m.states[i] = byte(probe + 1)
			m.numActive++
			return
		}
	}
}

// Reset clears every slot back to empty without changing the table size.
func (m *Map[K]) Reset() {
	var zeroK K
	for i := range m.states {
		m.keys[i] = zeroK
		m.values[i] = 0
		m.states[i] = 0
	}
	m.numActive = 0
}
