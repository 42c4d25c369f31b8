// Package frequency implements ItemsSketch, a Misra-Gries/SpaceSaving-lineage
// frequent-items sketch: a stream-update state machine layered over an
// internal/rhashmap.Map that grows, then purges by approximate median, to
// stay within a bounded number of tracked distinct items while bounding the
// error on every estimate it returns.
//
// Grounded on original_source's com/yahoo/sketches/frequencies/
// FrequentItemsSketch.java for the update/merge state machine and on
// PreambleUtil.java for the wire format.
package frequency

import (
	"sort"

	"sketchcore.dev/hashfn"
	"sketchcore.dev/internal/rhashmap"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// LgMinMapSize is the smallest allowed lg(maxMapSize): a map of length 4.
const LgMinMapSize = 2

// SampleSize caps how many active values Purge draws to estimate the
// median.
const SampleSize = 256

// ItemsSketch tracks approximate counts of frequent items over a stream of
// (item, count) updates, in bounded memory. The zero value is not usable;
// construct with New.
//
// Single-writer, multi-reader: Update/Merge/Purge-triggering calls must not
// run concurrently with each other or with queries.
type ItemsSketch[T comparable] struct {
	lgMaxMapSize int
	mergeError   int64
	offset       int64
	streamLength int64
	hashMap      *rhashmap.Map[T]
	hasher       hashfn.Hasher[T]
	rng          sketchrand.UniformRng
}

// New constructs an empty ItemsSketch bounded to at most maxMapSize active
// items (a power of two, >= 4). hasher supplies the pluggable 64-bit hash
// the backing ReversePurgeHashMap needs; rng supplies the pluggable uniform
// source Purge needs to sample a median.
func New[T comparable](maxMapSize int, hasher hashfn.Hasher[T], rng sketchrand.UniformRng) (*ItemsSketch[T], error) {
	lg, err := exactLog2(maxMapSize)
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.Domain, "frequency.New", "maxMapSize must be a power of two", err)
	}
	if lg < LgMinMapSize {
		return nil, sketcherr.New(sketcherr.Domain, "frequency.New", "maxMapSize must be at least 4")
	}
	hashMap, err := rhashmap.New[T](1<<LgMinMapSize, hasher)
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.Domain, "frequency.New", "failed to allocate backing map", err)
	}
	return &ItemsSketch[T]{
		lgMaxMapSize: lg,
		hashMap:      hashMap,
		hasher:       hasher,
		rng:          rng,
	}, nil
}

func exactLog2(n int) (int, error) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, sketcherr.New(sketcherr.Domain, "frequency.exactLog2", "value must be a positive power of two")
	}
	lg := 0
	for n > 1 {
		n >>= 1
		lg++
	}
	return lg, nil
}

// Update folds count additional observations of item into the sketch.
// count == 0 is a defined no-op, not an error; count < 0 is a Domain error.
// Every item value, including T's zero value, is tracked like any other.
func (s *ItemsSketch[T]) Update(item T, count int64) error {
	if count == 0 {
		return nil
	}
	if count < 0 {
		return sketcherr.New(sketcherr.Domain, "frequency.ItemsSketch.Update", "count must be non-negative")
	}

	s.streamLength += count
	s.hashMap.Adjust(item, count)

	length := s.hashMap.Length()
	if length < (1<<s.lgMaxMapSize) && s.hashMap.NumActive() >= s.hashMap.Capacity() {
		if err := s.hashMap.Resize(length * 2); err != nil {
			return sketcherr.Wrap(sketcherr.State, "frequency.ItemsSketch.Update", "failed to grow backing map", err)
		}
		return nil
	}
	if s.hashMap.NumActive()+1 > s.hashMap.Capacity() {
		sample := SampleSize
		if s.hashMap.NumActive() < sample {
			sample = s.hashMap.NumActive()
		}
		s.offset += s.hashMap.Purge(sample, s.rng)
		if s.hashMap.NumActive() > s.hashMap.Capacity() {
			return sketcherr.New(sketcherr.State, "frequency.ItemsSketch.Update", "purge failed to bring active items back under capacity")
		}
	}
	return nil
}

// MaximumError is the width a caller should expect between an estimate and
// the true count: Offset() + MergeErrorBound().
func (s *ItemsSketch[T]) MaximumError() int64 { return s.offset + s.mergeError }

// Offset returns the accumulated purge-median bookkeeping term.
func (s *ItemsSketch[T]) Offset() int64 { return s.offset }

// MergeErrorBound returns the accumulated error inherited from merges.
func (s *ItemsSketch[T]) MergeErrorBound() int64 { return s.mergeError }

// StreamLength returns the total count of all updates ever folded in,
// including those for items no longer tracked.
func (s *ItemsSketch[T]) StreamLength() int64 { return s.streamLength }

// IsEmpty reports whether the sketch currently tracks zero active items.
func (s *ItemsSketch[T]) IsEmpty() bool { return s.hashMap.NumActive() == 0 }

// NumActiveItems returns how many distinct items are currently tracked.
func (s *ItemsSketch[T]) NumActiveItems() int { return s.hashMap.NumActive() }

// Estimate returns the best guess at item's true count: 0 if the item isn't
// currently tracked, else its stored count plus Offset().
func (s *ItemsSketch[T]) Estimate(item T) int64 {
	v := s.hashMap.Get(item)
	if v <= 0 {
		return 0
	}
	return v + s.offset
}

// UpperBound returns an upper bound on item's true count, valid whether or
// not the item is currently tracked.
func (s *ItemsSketch[T]) UpperBound(item T) int64 {
	return s.hashMap.Get(item) + s.offset + s.mergeError
}

// LowerBound returns a lower bound on item's true count, never negative.
func (s *ItemsSketch[T]) LowerBound(item T) int64 {
	lb := s.hashMap.Get(item) - s.mergeError
	if lb < 0 {
		return 0
	}
	return lb
}

// Reset returns the sketch to a minimal-length, empty map, discarding all
// tracked items and bookkeeping.
func (s *ItemsSketch[T]) Reset() {
	hashMap, _ := rhashmap.New[T](1<<LgMinMapSize, s.hasher)
	s.hashMap = hashMap
	s.offset = 0
	s.mergeError = 0
	s.streamLength = 0
}

// Merge folds other's active items into s, update by update, and widens
// s's mergeError bound by other's maximum error. The final StreamLength is
// restored to self's pre-merge length plus other's full stream length
// (which can exceed the sum of the counts actually re-applied, since other
// may itself have purged items along the way).
func (s *ItemsSketch[T]) Merge(other *ItemsSketch[T]) error {
	s.mergeError += other.MaximumError()
	streamLengthBefore := s.streamLength

	it := other.hashMap.Iterator()
	for it.Next() {
		if err := s.Update(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	s.streamLength = streamLengthBefore + other.streamLength
	return nil
}

// ErrorType selects which side of the error bound FrequentItems filters on.
type ErrorType int

const (
	// NoFalseNegatives keeps every item whose true count could plausibly
	// reach maximumError, at the cost of possibly including items below it.
	NoFalseNegatives ErrorType = iota
	// NoFalsePositives keeps only items provably at or above maximumError,
	// at the cost of possibly omitting items that do reach it.
	NoFalsePositives
)

// Row is a single frequent-item result row.
type Row[T comparable] struct {
	Item       T
	Estimate   int64
	UpperBound int64
	LowerBound int64
}

// FrequentItems enumerates active items filtered by errType against
// maximumError, sorted by Estimate descending.
//
// The original Java Row.compareTo compared this.est against itself, an
// always-false comparison that left sort order undefined; this compares
// against the other row's estimate, as the code was clearly meant to.
func (s *ItemsSketch[T]) FrequentItems(errType ErrorType, maximumError int64) []Row[T] {
	var rows []Row[T]
	it := s.hashMap.Iterator()
	for it.Next() {
		item, count := it.Key(), it.Value()
		row := Row[T]{
			Item:       item,
			Estimate:   count + s.offset,
			UpperBound: count + s.offset + s.mergeError,
			LowerBound: lowerBoundOf(count, s.mergeError),
		}
		keep := false
		switch errType {
		case NoFalseNegatives:
			keep = row.UpperBound >= maximumError
		case NoFalsePositives:
			keep = row.LowerBound >= maximumError
		}
		if keep {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Estimate > rows[j].Estimate })
	return rows
}

func lowerBoundOf(count, mergeError int64) int64 {
	lb := count - mergeError
	if lb < 0 {
		return 0
	}
	return lb
}

// TopItems returns the n items with the largest estimate, descending, using
// NoFalseNegatives at maximumError 0 (i.e. no filtering) as the base set.
func (s *ItemsSketch[T]) TopItems(n int) []Row[T] {
	rows := s.FrequentItems(NoFalseNegatives, 0)
	if n < len(rows) {
		rows = rows[:n]
	}
	return rows
}

// DebugString renders a human-readable summary of the sketch's bookkeeping
// fields, mirroring PreambleUtil.preambleToString's diagnostic role: it has
// no effect on sketch behavior.
func (s *ItemsSketch[T]) DebugString() string {
	return fmtDebug(s.lgMaxMapSize, s.hashMap.LgLength(), s.hashMap.NumActive(), s.streamLength, s.offset, s.mergeError)
}
