// Package req implements the relative-error quantiles sketch: a stack of
// Compactors, each wrapping an internal/buffer.SortedBuffer, that
// probabilistically halve sorted runs and promote the survivors to the next
// height up, in analogy with a tournament bracket rather than the
// carry-propagation tower quantiles.Sketch uses.
//
// Grounded on original_source's org/apache/datasketches/req/FloatBuffer.java
// for the buffer semantics (already generalized into internal/buffer) and
// ReqAuxiliary.java for the merge-sort-in/normRanks construction; ReqSketch
// and ReqCompactor themselves aren't present in original_source/, so the
// compaction schedule below (a flat 2*k capacity at every height) is this
// package's own simplification of the reference algorithm's per-height
// growth schedule.
package req

import (
	"sketchcore.dev/internal/buffer"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// MinK is the smallest section size a Sketch accepts.
const MinK = 4

// compactorDelta is the growth step passed to each compactor's backing
// SortedBuffer. Update never grows a compactor past 2*k; Merge can push one
// past it (by up to the other sketch's items at that height) until the
// following cascade compaction runs.
const compactorDelta = 4

// Compactor holds the retained items at one height of the stack. Height h
// represents stream weight 2^h: every item in a height-h compactor stands in
// for 2^h original stream observations.
type Compactor struct {
	buf      *buffer.SortedBuffer[float64]
	lgWeight int
	capacity int
}

func newCompactor(lgWeight, capacity int) *Compactor {
	return &Compactor{
		buf:      buffer.New[float64](capacity, compactorDelta, false),
		lgWeight: lgWeight,
		capacity: capacity,
	}
}

// LgWeight returns log2 of the stream weight every item in this compactor
// represents.
func (c *Compactor) LgWeight() int { return c.lgWeight }

// Len returns the number of items currently retained at this height.
func (c *Compactor) Len() int { return c.buf.Len() }

// Items returns a copy of the retained items, in ascending sorted order.
func (c *Compactor) Items() []float64 {
	c.buf.Sort()
	return c.buf.Items()
}

func (c *Compactor) clone() *Compactor {
	return &Compactor{buf: c.buf.Clone(), lgWeight: c.lgWeight, capacity: c.capacity}
}

// compact sorts the section and drops every other item, coin-flip tie
// broken unless preferTop biases the draw toward keeping the larger half
// (the high-rank-accuracy bias, applied only at the current top-of-stack
// compactor). It returns the survivors. When the compactor holds an odd
// number of items (possible after a Merge), the largest item stays behind
// so the halved range is even; otherwise the compactor is left empty.
func (c *Compactor) compact(rng sketchrand.UniformRng, preferTop bool) ([]float64, error) {
	c.buf.Sort()
	n := c.buf.Len()
	even := n - n%2
	keepOdds := rng.IntN(2) == 1
	if preferTop {
		keepOdds = true
	}
	survivors, err := c.buf.GetEvensOrOdds(0, even, keepOdds)
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.State, "req.Compactor.compact", "failed to halve a full section", err)
	}
	if even < n {
		top := c.buf.GetItem(even)
		c.buf.TrimLength(0)
		c.buf.Append(top)
	} else {
		c.buf.TrimLength(0)
	}
	return survivors.Items(), nil
}
