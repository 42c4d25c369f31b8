package quantiles

import (
	"sketchcore.dev/internal/buffer"
	"sketchcore.dev/sketcherr"
)

func wrapSorted(items []float64) *buffer.SortedBuffer[float64] {
	return buffer.Wrap(items, true, false)
}

// Union is a thin merge-policy state container: an optional inner sketch
// (the "gadget") plus the dispatch logic for combining another sketch into
// it. This replaces the reference library's delegating-subclass
// Union/Composition wrappers with a plain struct rather than an inheritance
// chain.
type Union struct {
	gadget *Sketch
}

// NewUnion returns an empty Union with no inner sketch.
func NewUnion() *Union { return &Union{} }

// Update folds sketchIn into the union's running result.
func (u *Union) Update(sketchIn *Sketch) error {
	merged, err := updateLogic(u.gadget, sketchIn)
	if err != nil {
		return err
	}
	u.gadget = merged
	return nil
}

// Result returns a deep copy of the union's current state. Errors with
// State if the union has never been updated.
func (u *Union) Result() (*Sketch, error) {
	if u.gadget == nil {
		return nil, sketcherr.New(sketcherr.State, "quantiles.Union.Result", "union has not been updated")
	}
	return u.gadget.Clone(), nil
}

// ResultAndReset returns the union's current state directly (no copy) and
// resets the union to empty. The caller now owns the only handle to it.
func (u *Union) ResultAndReset() (*Sketch, error) {
	if u.gadget == nil {
		return nil, sketcherr.New(sketcherr.State, "quantiles.Union.ResultAndReset", "union has not been updated")
	}
	out := u.gadget
	u.gadget = nil
	return out, nil
}

// Reset discards the union's inner sketch.
func (u *Union) Reset() { u.gadget = nil }

// updateLogic dispatches on the null/empty/valid status of both operands, a
// direct port of HeapUnion.updateLogic's 4x4 case table: nil stands in for
// the Java null gadget (an un-updated Union), and Sketch.IsEmpty() stands in
// for a constructed-but-unfed sketch.
func updateLogic(myQS, other *Sketch) (*Sketch, error) {
	sw1 := 0
	switch {
	case myQS == nil:
		sw1 = 0
	case myQS.IsEmpty():
		sw1 = 4
	default:
		sw1 = 8
	}
	switch {
	case other == nil:
		sw1 |= 0
	case other.IsEmpty():
		sw1 |= 1
	default:
		sw1 |= 2
	}

	const (
		outNull  = 0
		outNoop  = 1
		outCopy  = 2
		outMerge = 3
	)
	var outCase int
	switch sw1 {
	case 0:
		outCase = outNull
	case 1, 2:
		outCase = outCopy
	case 4, 5:
		outCase = outNoop
	case 6:
		outCase = outMerge
	case 8, 9:
		outCase = outNoop
	case 10:
		outCase = outMerge
	}

	switch outCase {
	case outNull:
		return nil, nil
	case outNoop:
		return myQS, nil
	case outCopy:
		return other.Clone(), nil
	}

	// must merge
	if myQS.k <= other.k {
		if err := mergeInto(other, myQS); err != nil {
			return nil, err
		}
		return myQS, nil
	}
	myNew := other.Clone()
	if err := mergeInto(myQS, myNew); err != nil {
		return nil, err
	}
	return myNew, nil
}

// mergeInto merges source into target, which may have a smaller k (subject
// to the ratio being a power of two). source is not modified.
func mergeInto(source, target *Sketch) error {
	if source.k != target.k {
		return downSamplingMergeInto(source, target)
	}

	nFinal := target.n + source.n
	for _, x := range source.baseBuffer.Items() {
		if err := target.Update(x); err != nil {
			return err
		}
	}

	bp := source.bitPattern
	for lvl := 0; bp != 0; lvl, bp = lvl+1, bp>>1 {
		if bp&1 == 0 {
			continue
		}
		carry := source.levels[lvl].Clone()
		if err := target.propagateCarry(lvl, carry); err != nil {
			return err
		}
	}

	target.n = nFinal
	if source.maxValue > target.maxValue {
		target.maxValue = source.maxValue
	}
	if source.minValue < target.minValue {
		target.minValue = source.minValue
	}
	return nil
}

// downSamplingMergeInto merges a larger-k source into a smaller-k target.
// Each occupied source level lvl is stride-sampled (a random starting
// offset in [0, ratio), then every ratio-th sorted item) down to exactly
// target.k items and carried in at level lvl+lg(ratio): the sampled run's
// 2*target.k*2^(lvl+lgRatio) stream weight at that height equals the
// source level's 2*source.k*2^lvl, so N, the bit-pattern invariant, and
// the extrema are all preserved exactly.
func downSamplingMergeInto(source, target *Sketch) error {
	const op = "quantiles.downSamplingMergeInto"
	if source.k < target.k || source.k%target.k != 0 {
		return sketcherr.New(sketcherr.Domain, op, "source k must be an integer multiple of target k")
	}
	ratio := source.k / target.k
	if ratio&(ratio-1) != 0 {
		return sketcherr.New(sketcherr.Domain, op, "k ratio must be a power of two")
	}
	lgRatio := 0
	for r := ratio; r > 1; r >>= 1 {
		lgRatio++
	}

	nFinal := target.n + source.n

	for _, x := range source.baseBuffer.Items() {
		if err := target.Update(x); err != nil {
			return err
		}
	}

	bp := source.bitPattern
	for lvl := 0; bp != 0; lvl, bp = lvl+1, bp>>1 {
		if bp&1 == 0 {
			continue
		}
		items := source.levels[lvl].Items()
		offset := target.rng.IntN(ratio)
		sampled := strideSample(items, ratio, offset)
		carry := wrapSorted(sampled)
		if err := target.propagateCarry(lvl+lgRatio, carry); err != nil {
			return err
		}
	}

	target.n = nFinal
	if source.maxValue > target.maxValue {
		target.maxValue = source.maxValue
	}
	if source.minValue < target.minValue {
		target.minValue = source.minValue
	}
	return nil
}

func strideSample(items []float64, stride, offset int) []float64 {
	out := make([]float64, 0, len(items)/stride+1)
	for i := offset; i < len(items); i += stride {
		out = append(out, items[i])
	}
	return out
}
