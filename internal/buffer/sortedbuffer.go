// Package buffer implements SortedBuffer, a growable array of primitive
// numeric values with an optional "space at bottom" orientation, used as
// the level storage for both the quantiles sketch and the relative-error
// quantiles compactor stack.
//
// Grounded bit-for-bit on org/apache/datasketches/req/FloatBuffer.java from
// original_source/, generalized from float32 to any ordered numeric type.
package buffer

import (
	"sort"

	"sketchcore.dev/sketcherr"
)

// Numeric is the set of primitive numeric types a SortedBuffer may hold.
type Numeric interface {
	~float64 | ~float32 | ~int64 | ~int32 | ~uint64
}

// SortedBuffer is a growable array of T with an active region that is
// either at the top (spaceAtBottom=false) or bottom (spaceAtBottom=true) of
// the backing array. Public offsets are always relative to the active
// region; callers never need to know the orientation.
type SortedBuffer[T Numeric] struct {
	arr           []T
	count         int
	capacity      int
	delta         int
	sorted        bool
	spaceAtBottom bool
}

// New constructs an empty SortedBuffer with the given initial capacity and
// growth delta.
func New[T Numeric](capacity, delta int, spaceAtBottom bool) *SortedBuffer[T] {
	return &SortedBuffer[T]{
		arr:           make([]T, capacity),
		capacity:      capacity,
		delta:         delta,
		sorted:        true,
		spaceAtBottom: spaceAtBottom,
	}
}

// Wrap adopts arr directly as the backing array (no copy) and sorts it.
// isSorted lets the caller assert the array is already sorted to skip the
// redundant check-then-sort.
func Wrap[T Numeric](arr []T, isSorted, spaceAtBottom bool) *SortedBuffer[T] {
	b := &SortedBuffer[T]{
		arr:           arr,
		count:         len(arr),
		capacity:      len(arr),
		sorted:        isSorted,
		spaceAtBottom: spaceAtBottom,
	}
	b.Sort()
	return b
}

// Clone returns an independent deep copy.
func (b *SortedBuffer[T]) Clone() *SortedBuffer[T] {
	out := &SortedBuffer[T]{
		arr:           append([]T(nil), b.arr...),
		count:         b.count,
		capacity:      b.capacity,
		delta:         b.delta,
		sorted:        b.sorted,
		spaceAtBottom: b.spaceAtBottom,
	}
	return out
}

// Len reports the number of active items.
func (b *SortedBuffer[T]) Len() int { return b.count }

// Capacity reports the current backing capacity.
func (b *SortedBuffer[T]) Capacity() int { return b.capacity }

// IsEmpty reports whether Len() == 0.
func (b *SortedBuffer[T]) IsEmpty() bool { return b.count == 0 }

// IsSorted reports whether the active region is known sorted.
func (b *SortedBuffer[T]) IsSorted() bool { return b.sorted }

// activeStart is the index of the first active element in the backing
// array, regardless of orientation.
func (b *SortedBuffer[T]) activeStart() int {
	if b.spaceAtBottom {
		return b.capacity - b.count
	}
	return 0
}

// Append adds item to the active region, growing the backing array by delta
// if it's full. Appending clears the sorted flag unless the buffer was
// empty, since a single item is trivially sorted but a second item's
// position relative to the existing order is unknown.
func (b *SortedBuffer[T]) Append(item T) {
	b.ensureSpace(1)
	index := b.count
	if b.spaceAtBottom {
		index = b.capacity - b.count - 1
	}
	b.arr[index] = item
	b.count++
	b.sorted = b.count == 1
}

// EnsureCapacity grows the backing array to at least newCapacity, preserving
// the active region's contents and orientation. It never shrinks.
func (b *SortedBuffer[T]) EnsureCapacity(newCapacity int) {
	if newCapacity <= b.capacity {
		return
	}
	out := make([]T, newCapacity)
	srcPos := 0
	destPos := 0
	if b.spaceAtBottom {
		srcPos = b.capacity - b.count
		destPos = newCapacity - b.count
	}
	copy(out[destPos:destPos+b.count], b.arr[srcPos:srcPos+b.count])
	b.arr = out
	b.capacity = newCapacity
}

func (b *SortedBuffer[T]) ensureSpace(space int) {
	if b.count+space > b.capacity {
		b.EnsureCapacity(b.count + space + b.delta)
	}
}

// Sort sorts the active region in place; a no-op if already sorted.
func (b *SortedBuffer[T]) Sort() {
	if b.sorted {
		return
	}
	start := b.activeStart()
	region := b.arr[start : start+b.count]
	sort.Slice(region, func(i, j int) bool { return region[i] < region[j] })
	b.sorted = true
}

// GetItem returns the item at the given offset within the active region.
func (b *SortedBuffer[T]) GetItem(offset int) T {
	return b.arr[b.activeStart()+offset]
}

// Items returns a copy of the active region, in order.
func (b *SortedBuffer[T]) Items() []T {
	start := b.activeStart()
	out := make([]T, b.count)
	copy(out, b.arr[start:start+b.count])
	return out
}

// GetCountLtOrEq sorts lazily, then returns the number of active elements
// strictly less than value (lteq=false) or less-than-or-equal to value
// (lteq=true).
func (b *SortedBuffer[T]) GetCountLtOrEq(value T, lteq bool) int {
	b.Sort()
	start := b.activeStart()
	region := b.arr[start : start+b.count]
	var idx int
	if lteq {
		idx = sort.Search(len(region), func(i int) bool { return region[i] > value })
	} else {
		idx = sort.Search(len(region), func(i int) bool { return region[i] >= value })
	}
	return idx
}

// MergeSortIn merges the already-sorted other buffer into this already-
// sorted buffer, growing capacity as needed. Both buffers must be sorted.
func (b *SortedBuffer[T]) MergeSortIn(other *SortedBuffer[T]) error {
	if !b.sorted || !other.sorted {
		return sketcherr.New(sketcherr.Domain, "buffer.SortedBuffer.MergeSortIn", "both buffers must be sorted")
	}
	inLen := other.count
	b.ensureSpace(inLen)
	totLen := b.count + inLen
	otherStart := other.activeStart()

	if b.spaceAtBottom {
		tgtStart := b.capacity - totLen
		i := b.capacity - b.count
		j := otherStart
		jEnd := otherStart + other.count
		for k := tgtStart; k < b.capacity; k++ {
			switch {
			case i < b.capacity && j < jEnd:
				if b.arr[i] <= other.arr[j] {
					b.arr[k] = b.arr[i]
					i++
				} else {
					b.arr[k] = other.arr[j]
					j++
				}
			case i < b.capacity:
				b.arr[k] = b.arr[i]
				i++
			case j < jEnd:
				b.arr[k] = other.arr[j]
				j++
			default:
			}
		}
	} else {
		i := b.count - 1
		j := inLen - 1
		for k := totLen; k > 0; {
			k--
			switch {
			case i >= 0 && j >= 0:
				if b.arr[i] >= other.arr[otherStart+j] {
					b.arr[k] = b.arr[i]
					i--
				} else {
					b.arr[k] = other.arr[otherStart+j]
					j--
				}
			case i >= 0:
				b.arr[k] = b.arr[i]
				i--
			case j >= 0:
				b.arr[k] = other.arr[otherStart+j]
				j--
			default:
			}
		}
	}
	b.count = totLen
	b.sorted = true
	return nil
}

// GetEvensOrOdds sorts [start, end) within the active region, then returns a
// new sorted buffer holding every other element: the odds if odds is true,
// otherwise the evens. end-start must be even.
func (b *SortedBuffer[T]) GetEvensOrOdds(start, end int, odds bool) (*SortedBuffer[T], error) {
	if (end-start)%2 != 0 {
		return nil, sketcherr.New(sketcherr.Domain, "buffer.SortedBuffer.GetEvensOrOdds", "input range size must be even")
	}
	base := b.activeStart()
	region := b.arr[base+start : base+end]
	sort.Slice(region, func(i, j int) bool { return region[i] < region[j] })

	rng := end - start
	off := 0
	if odds {
		off = 1
	}
	out := make([]T, rng/2)
	for i, j := off, 0; i < len(region); i, j = i+2, j+1 {
		out[j] = region[i]
	}
	return Wrap(out, true, b.spaceAtBottom), nil
}

// TrimCapacity shrinks the backing array to exactly Len() items.
func (b *SortedBuffer[T]) TrimCapacity() {
	if b.count >= b.capacity {
		return
	}
	out := make([]T, b.count)
	start := b.activeStart()
	copy(out, b.arr[start:start+b.count])
	b.arr = out
	b.capacity = b.count
}

// TrimLength reduces the logical length to newLength. A no-op if
// newLength >= Len(). The freed slots are not cleared.
func (b *SortedBuffer[T]) TrimLength(newLength int) {
	if newLength < b.count {
		b.count = newLength
	}
}
