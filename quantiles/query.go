package quantiles

import (
	"math"
	"sort"

	"sketchcore.dev/sketcherr"
)

// Rank returns the fraction of inserted values <= x, in [0, 1]. Returns a
// State error on an empty sketch.
func (s *Sketch) Rank(x float64) (float64, error) {
	if s.n == 0 {
		return 0, sketcherr.New(sketcherr.State, "quantiles.Sketch.Rank", "sketch is empty")
	}
	var weight int64
	for _, item := range s.retainedItems() {
		if item.value <= x {
			weight += item.weight
		}
	}
	return float64(weight) / float64(s.n), nil
}

// Quantile returns the value at normalized rank (0, 1]: the smallest
// retained value whose cumulative weight/N first reaches rank. Returns NaN,
// rather than an error, if rank is outside (0, 1] or the sketch is empty.
func (s *Sketch) Quantile(rank float64) float64 {
	if s.n == 0 || rank <= 0 || rank > 1 {
		return math.NaN()
	}
	if rank == 1 {
		return s.maxValue
	}
	items := s.sortedRetainedItems()
	target := rank * float64(s.n)
	var cum int64
	for _, item := range items {
		cum += item.weight
		if float64(cum) >= target {
			return item.value
		}
	}
	return items[len(items)-1].value
}

func (s *Sketch) sortedRetainedItems() []weightedItem {
	items := s.retainedItems()
	sort.Slice(items, func(i, j int) bool { return items[i].value < items[j].value })
	return items
}

// CDF computes the cumulative distribution evaluated at each of the given
// monotonically increasing split points, returning one more entry than
// splitPoints: cdf[i] is the fraction of values <= splitPoints[i], and the
// final entry is always 1 (every retained value is <= +Inf).
func (s *Sketch) CDF(splitPoints []float64) ([]float64, error) {
	if s.n == 0 {
		return nil, sketcherr.New(sketcherr.State, "quantiles.Sketch.CDF", "sketch is empty")
	}
	if err := checkSplitPoints(splitPoints); err != nil {
		return nil, err
	}
	items := s.sortedRetainedItems()
	out := make([]float64, len(splitPoints)+1)
	var cum int64
	idx := 0
	for i, sp := range splitPoints {
		for idx < len(items) && items[idx].value <= sp {
			cum += items[idx].weight
			idx++
		}
		out[i] = float64(cum) / float64(s.n)
	}
	out[len(splitPoints)] = 1
	return out, nil
}

// PMF computes the probability mass in each bucket delimited by the given
// monotonically increasing split points: len(splitPoints)+1 buckets, the
// last holding every value greater than the largest split point.
func (s *Sketch) PMF(splitPoints []float64) ([]float64, error) {
	cdf, err := s.CDF(splitPoints)
	if err != nil {
		return nil, err
	}
	pmf := make([]float64, len(cdf))
	prev := 0.0
	for i, c := range cdf {
		pmf[i] = c - prev
		prev = c
	}
	return pmf, nil
}

func checkSplitPoints(splitPoints []float64) error {
	for i := 1; i < len(splitPoints); i++ {
		if splitPoints[i] <= splitPoints[i-1] {
			return sketcherr.New(sketcherr.Domain, "quantiles.checkSplitPoints", "split points must be strictly increasing")
		}
	}
	return nil
}
