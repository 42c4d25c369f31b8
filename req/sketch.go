package req

import (
	"math"

	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// Sketch answers approximate rank/quantile queries with a relative error
// bound (tighter near one end of the rank range than the other, per the hra
// flag) instead of quantiles.Sketch's uniform additive error.
//
// Single-writer, multi-reader: Update/Merge must not run concurrently with
// each other or with queries.
type Sketch struct {
	k          int
	hra        bool
	n          int64
	minValue   float64
	maxValue   float64
	compactors []*Compactor
	rng        sketchrand.UniformRng
}

// NewSketch constructs an empty Sketch with section size k (even, >= MinK)
// and the hra (high-rank-accuracy) flag, which biases the compaction
// tie-break at the current top-of-stack compactor toward retaining larger
// values, tightening the error near rank 1 at the cost of rank 0.
//
// Every compactor in the stack uses a fixed capacity of 2*k items: this
// module trades the reference algorithm's per-height capacity schedule
// (which grows roughly by sqrt(2) per height to hold total memory to
// O(k*log(n/k)) while tightening the bound as the stream grows) for a flat
// schedule.
func NewSketch(k int, hra bool, rng sketchrand.UniformRng) (*Sketch, error) {
	if k < MinK || k%2 != 0 {
		return nil, sketcherr.New(sketcherr.Domain, "req.NewSketch", "k must be even and at least 4")
	}
	return &Sketch{
		k:        k,
		hra:      hra,
		minValue: math.Inf(1),
		maxValue: math.Inf(-1),
		rng:      rng,
	}, nil
}

// K returns the sketch's section size.
func (s *Sketch) K() int { return s.k }

// HRA reports whether the sketch is biased for high-rank accuracy.
func (s *Sketch) HRA() bool { return s.hra }

// N returns the total number of values ever inserted.
func (s *Sketch) N() int64 { return s.n }

// MinValue and MaxValue return the running extrema. On an empty sketch they
// read +Inf and -Inf respectively.
func (s *Sketch) MinValue() float64 { return s.minValue }
func (s *Sketch) MaxValue() float64 { return s.maxValue }

// IsEmpty reports whether the sketch has received zero updates.
func (s *Sketch) IsEmpty() bool { return s.n == 0 }

// RetainedItems returns how many items the sketch currently holds across
// every compactor.
func (s *Sketch) RetainedItems() int {
	total := 0
	for _, c := range s.compactors {
		total += c.Len()
	}
	return total
}

func (s *Sketch) capacityForHeight(h int) int { return 2 * s.k }

func (s *Sketch) ensureCompactor(h int) {
	for len(s.compactors) <= h {
		lvl := len(s.compactors)
		s.compactors = append(s.compactors, newCompactor(lvl, s.capacityForHeight(lvl)))
	}
}

// Update folds one more observation into the sketch.
func (s *Sketch) Update(x float64) error {
	if x < s.minValue {
		s.minValue = x
	}
	if x > s.maxValue {
		s.maxValue = x
	}
	s.n++
	s.ensureCompactor(0)
	s.compactors[0].buf.Append(x)
	return s.cascadeCompact(0)
}

// cascadeCompact compacts height h and every subsequent height that fills
// as a result, pushing survivors upward until every compactor in the stack
// is back under capacity.
func (s *Sketch) cascadeCompact(h int) error {
	for h < len(s.compactors) && s.compactors[h].Len() >= s.compactors[h].capacity {
		preferTop := s.hra && h == len(s.compactors)-1
		survivors, err := s.compactors[h].compact(s.rng, preferTop)
		if err != nil {
			return err
		}
		s.ensureCompactor(h + 1)
		for _, v := range survivors {
			s.compactors[h+1].buf.Append(v)
		}
		h++
	}
	return nil
}

// RawItems returns every retained item across every compactor, unsorted,
// mirroring ReqSketch.getRetainedItems's role feeding ReqAuxiliary.
func (s *Sketch) RawItems() []float64 {
	out := make([]float64, 0, s.RetainedItems())
	for _, c := range s.compactors {
		out = append(out, c.buf.Items()...)
	}
	return out
}

// Reset returns the sketch to its empty, zero-n state with k and hra
// unchanged.
func (s *Sketch) Reset() {
	s.n = 0
	s.minValue = math.Inf(1)
	s.maxValue = math.Inf(-1)
	s.compactors = nil
}

// Clone returns an independent deep copy.
func (s *Sketch) Clone() *Sketch {
	compactors := make([]*Compactor, len(s.compactors))
	for i, c := range s.compactors {
		compactors[i] = c.clone()
	}
	return &Sketch{
		k:          s.k,
		hra:        s.hra,
		n:          s.n,
		minValue:   s.minValue,
		maxValue:   s.maxValue,
		compactors: compactors,
		rng:        s.rng,
	}
}

// Merge folds other's retained items into s, compactor by compactor: each
// height's items are absorbed directly into s's compactor at the same
// height (preserving their stream weight) rather than replayed through
// Update, then the stack is cascade-compacted from height 0 up. other must
// share s's k; merging sketches built with different k (unlike
// quantiles.Union's explicit down-sampling dispatch) is not supported.
func (s *Sketch) Merge(other *Sketch) error {
	const op = "req.Sketch.Merge"
	if other.IsEmpty() {
		return nil
	}
	if s.k != other.k {
		return sketcherr.New(sketcherr.Domain, op, "merge requires equal k")
	}
	if s.n == 0 {
		s.hra = other.hra
	}

	for h, c := range other.compactors {
		if c.Len() == 0 {
			continue
		}
		s.ensureCompactor(h)
		for _, v := range c.Items() {
			s.compactors[h].buf.Append(v)
		}
	}
	for h := range s.compactors {
		if err := s.cascadeCompact(h); err != nil {
			return err
		}
	}

	s.n += other.n
	if other.maxValue > s.maxValue {
		s.maxValue = other.maxValue
	}
	if other.minValue < s.minValue {
		s.minValue = other.minValue
	}
	return nil
}
