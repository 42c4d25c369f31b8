package req

import (
	"math"
	"sort"

	"sketchcore.dev/sketcherr"
)

// Criteria selects which side of a normalized-rank boundary GetQuantile
// resolves to, mirroring org.apache.datasketches.Criteria's INCLUSIVE vs
// EXCLUSIVE search used by ReqAuxiliary.getQuantile.
type Criteria int

const (
	// Exclusive resolves to the largest index i with normRanks[i] < r.
	Exclusive Criteria = iota
	// Inclusive resolves to the largest index i with normRanks[i] <= r.
	Inclusive
)

// Auxiliary is the materialized, globally sorted view of a Sketch's
// retained items used to answer quantile and rank queries: the concatenation
// of every compactor's buffer, carrying each item's lgWeight along, with a
// running normalized rank computed over the total weight N.
//
// Grounded on original_source's ReqAuxiliary.buildAuxTable, simplified from
// its in-place weight-aware merge-sort-in to a single sort over a flat
// weighted-item slice: both produce the same globally sorted, weight-ranked
// table, and this module doesn't carry the off-heap memory-layout
// constraints that motivated the original's in-place approach.
type Auxiliary struct {
	items     []float64
	lgWeights []int
	normRanks []float64
}

// BuildAuxiliary materializes the auxiliary table for the sketch's current
// state. Errors with State if the sketch is empty.
func BuildAuxiliary(s *Sketch) (*Auxiliary, error) {
	if s.n == 0 {
		return nil, sketcherr.New(sketcherr.State, "req.BuildAuxiliary", "sketch is empty")
	}

	type entry struct {
		value    float64
		lgWeight int
	}
	var entries []entry
	for _, c := range s.compactors {
		for _, v := range c.Items() {
			entries = append(entries, entry{value: v, lgWeight: c.lgWeight})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

	aux := &Auxiliary{
		items:     make([]float64, len(entries)),
		lgWeights: make([]int, len(entries)),
		normRanks: make([]float64, len(entries)),
	}
	var sum float64
	for i, e := range entries {
		aux.items[i] = e.value
		aux.lgWeights[i] = e.lgWeight
		sum += math.Ldexp(1, e.lgWeight)
		aux.normRanks[i] = sum / float64(s.n)
	}
	return aux, nil
}

// Len returns the number of entries in the auxiliary table.
func (a *Auxiliary) Len() int { return len(a.items) }

// Item, LgWeight, and NormRank return the i-th entry's fields, in ascending
// item order.
func (a *Auxiliary) Item(i int) float64  { return a.items[i] }
func (a *Auxiliary) LgWeight(i int) int  { return a.lgWeights[i] }
func (a *Auxiliary) NormRank(i int) float64 { return a.normRanks[i] }

// GetQuantile returns the item at the largest index i satisfying
// normRanks[i] < rank (Exclusive) or normRanks[i] <= rank (Inclusive).
// Returns NaN if rank is out of [0, 1] or no index satisfies the criterion.
func (a *Auxiliary) GetQuantile(rank float64, criterion Criteria) float64 {
	if rank < 0 || rank > 1 || len(a.items) == 0 {
		return math.NaN()
	}
	best := -1
	for i, r := range a.normRanks {
		ok := r < rank
		if criterion == Inclusive {
			ok = r <= rank
		}
		if ok {
			best = i
		} else {
			break
		}
	}
	if best == -1 {
		return math.NaN()
	}
	return a.items[best]
}

// GetRank returns the normalized rank of value: the normRank of the
// largest-indexed item <= value, or 0 if value is below every retained
// item.
func (a *Auxiliary) GetRank(value float64) float64 {
	if len(a.items) == 0 {
		return 0
	}
	idx := sort.Search(len(a.items), func(i int) bool { return a.items[i] > value })
	if idx == 0 {
		return 0
	}
	return a.normRanks[idx-1]
}
