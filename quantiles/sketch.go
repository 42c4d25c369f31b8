// Package quantiles implements a compact-levels quantiles sketch in the
// Greenwald-Khanna/MRL lineage: a base buffer of unsorted recent values
// backed by a tower of levels, each holding exactly k sorted values, merged
// upward by carry propagation whenever the base buffer fills — the same
// process addition uses to merge a carry digit into higher place values.
//
// Grounded on original_source's com/yahoo/sketches/quantiles/HeapUnion.java
// for the merge dispatch table and mergeInto's carry-propagation walk. The
// base buffer and every level are internal/buffer.SortedBuffer[float64]
// instances rather than one flat combinedBuffer array: Java's single-array
// layout exists to support memory-mapped off-heap sketches, a concern this
// module doesn't carry, so each level owns its own backing slice.
package quantiles

import (
	"math"

	"sketchcore.dev/internal/buffer"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// MinK and MaxK bound the accuracy parameter k.
const (
	MinK = 2
	MaxK = 32768
)

// Sketch answers approximate rank/quantile/CDF/PMF queries over a numeric
// stream in O(k log(n/k)) space.
//
// Single-writer, multi-reader: Update/Merge must not run concurrently with
// each other or with queries.
type Sketch struct {
	k          int
	n          int64
	bitPattern uint64
	minValue   float64
	maxValue   float64
	baseBuffer *buffer.SortedBuffer[float64]
	levels     []*buffer.SortedBuffer[float64]
	rng        sketchrand.UniformRng
}

// New constructs an empty Sketch with accuracy parameter k (a power of two
// in [MinK, MaxK]; approximate rank error ε ≈ 1.65/k) and a pluggable
// uniform source for the random evens/odds tie-break during compaction.
func New(k int, rng sketchrand.UniformRng) (*Sketch, error) {
	if err := validateK(k); err != nil {
		return nil, err
	}
	return &Sketch{
		k:          k,
		minValue:   math.Inf(1),
		maxValue:   math.Inf(-1),
		baseBuffer: buffer.New[float64](2*k, 2*k, false),
		rng:        rng,
	}, nil
}

func validateK(k int) error {
	if k < MinK || k > MaxK || k&(k-1) != 0 {
		return sketcherr.New(sketcherr.Domain, "quantiles.New", "k must be a power of two in [2, 32768]")
	}
	return nil
}

// K returns the sketch's accuracy parameter.
func (s *Sketch) K() int { return s.k }

// N returns the total number of values ever inserted.
func (s *Sketch) N() int64 { return s.n }

// BitPattern returns the bitmask of occupied levels. Invariant: always
// equals N() / (2*K()).
func (s *Sketch) BitPattern() uint64 { return s.bitPattern }

// MinValue and MaxValue return the running extrema. On an empty sketch they
// read +Inf and -Inf respectively, matching the original library's no-data
// sentinel (there being no observed value to report).
func (s *Sketch) MinValue() float64 { return s.minValue }
func (s *Sketch) MaxValue() float64 { return s.maxValue }

// IsEmpty reports whether the sketch has received zero updates.
func (s *Sketch) IsEmpty() bool { return s.n == 0 }

// Update folds one more observation into the sketch.
func (s *Sketch) Update(x float64) error {
	if x < s.minValue {
		s.minValue = x
	}
	if x > s.maxValue {
		s.maxValue = x
	}
	s.baseBuffer.Append(x)
	s.n++

	if s.baseBuffer.Len() != 2*s.k {
		return nil
	}
	s.baseBuffer.Sort()
	coinFlip := s.rng.IntN(2) == 1
	half, err := s.baseBuffer.GetEvensOrOdds(0, 2*s.k, coinFlip)
	if err != nil {
		return sketcherr.Wrap(sketcherr.State, "quantiles.Sketch.Update", "failed to halve the full base buffer", err)
	}
	if err := s.propagateCarry(0, half); err != nil {
		return err
	}
	s.baseBuffer.TrimLength(0)
	return nil
}

// ensureLevels grows the levels slice so index `level` is addressable.
func (s *Sketch) ensureLevels(level int) {
	for len(s.levels) <= level {
		s.levels = append(s.levels, nil)
	}
}

// propagateCarry walks a carry of exactly k sorted values up the level
// tower starting at level, merging with and clearing any already-occupied
// level it passes through (exactly as binary addition propagates a carry
// digit), until it lands in an empty level.
func (s *Sketch) propagateCarry(level int, carry *buffer.SortedBuffer[float64]) error {
	for {
		s.ensureLevels(level)
		if s.bitPattern&(1<<uint(level)) == 0 {
			s.levels[level] = carry
			s.bitPattern |= 1 << uint(level)
			return nil
		}
		merged := s.levels[level].Clone()
		if err := merged.MergeSortIn(carry); err != nil {
			return sketcherr.Wrap(sketcherr.State, "quantiles.Sketch.propagateCarry", "failed to merge carry into occupied level", err)
		}
		s.levels[level] = nil
		s.bitPattern &^= 1 << uint(level)

		coinFlip := s.rng.IntN(2) == 1
		next, err := merged.GetEvensOrOdds(0, merged.Len(), coinFlip)
		if err != nil {
			return sketcherr.Wrap(sketcherr.State, "quantiles.Sketch.propagateCarry", "failed to halve a merged level", err)
		}
		carry = next
		level++
	}
}

// Reset returns the sketch to its empty, zero-n state with k unchanged.
func (s *Sketch) Reset() {
	s.n = 0
	s.bitPattern = 0
	s.minValue = math.Inf(1)
	s.maxValue = math.Inf(-1)
	s.baseBuffer = buffer.New[float64](2*s.k, 2*s.k, false)
	s.levels = nil
}

// Clone returns an independent deep copy, so a caller receiving a sketch
// back from a merge operation holds no internal handle into the original.
func (s *Sketch) Clone() *Sketch {
	levels := make([]*buffer.SortedBuffer[float64], len(s.levels))
	for i, lvl := range s.levels {
		if lvl != nil {
			levels[i] = lvl.Clone()
		}
	}
	return &Sketch{
		k:          s.k,
		n:          s.n,
		bitPattern: s.bitPattern,
		minValue:   s.minValue,
		maxValue:   s.maxValue,
		baseBuffer: s.baseBuffer.Clone(),
		levels:     levels,
		rng:        s.rng,
	}
}

// weightedItem pairs a retained value with the stream weight it represents:
// 1 for a base-buffer item, 2^(level+1) for an item retained at that level
// (each level holds k items standing in for the 2k*2^level stream values
// that were folded into it, so per-item weight doubles once per promotion
// starting from the base buffer's halving into level 0).
type weightedItem struct {
	value  float64
	weight int64
}

// retainedItems gathers every value the sketch currently holds, weighted,
// unsorted.
func (s *Sketch) retainedItems() []weightedItem {
	out := make([]weightedItem, 0, s.baseBuffer.Len())
	for _, v := range s.baseBuffer.Items() {
		out = append(out, weightedItem{value: v, weight: 1})
	}
	for lvl, buf := range s.levels {
		if buf == nil {
			continue
		}
		weight := int64(1) << uint(lvl+1)
		for _, v := range buf.Items() {
			out = append(out, weightedItem{value: v, weight: weight})
		}
	}
	return out
}
