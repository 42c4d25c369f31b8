package quantiles

import (
	"encoding/binary"
	"math"

	"sketchcore.dev/internal/buffer"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// Wire-format constants, following the frequency family's first-eight-bytes
// shape (preambleLongs, serVer, familyID, flags) with this package's own
// stable family ID and field layout beyond that header.
const (
	quantilesFamilyID = 11
	quantilesSerVer    = 1
	quantilesEmptyFlag = 0x04

	qPreambleLongsEmpty     = 1
	qPreambleLongsPopulated = 4
	qHeaderBytesEmpty       = qPreambleLongsEmpty * 8
	qHeaderBytesPopulated   = qPreambleLongsPopulated * 8
)

// ToBytes serializes the sketch. An empty sketch serializes to exactly 8
// bytes, matching the FrequentItems preamble's empty-case shape.
func (s *Sketch) ToBytes() []byte {
	if s.IsEmpty() {
		b := make([]byte, qHeaderBytesEmpty)
		b[0] = qPreambleLongsEmpty
		b[1] = quantilesSerVer
		b[2] = quantilesFamilyID
		binary.LittleEndian.PutUint16(b[4:6], uint16(s.k))
		b[6] = quantilesEmptyFlag
		return b
	}

	header := make([]byte, qHeaderBytesPopulated)
	header[0] = qPreambleLongsPopulated
	header[1] = quantilesSerVer
	header[2] = quantilesFamilyID
	binary.LittleEndian.PutUint16(header[4:6], uint16(s.k))
	header[6] = 0
	binary.LittleEndian.PutUint64(header[8:16], uint64(s.n))
	binary.LittleEndian.PutUint64(header[16:24], math.Float64bits(s.minValue))
	binary.LittleEndian.PutUint64(header[24:32], math.Float64bits(s.maxValue))

	out := header
	out = appendInt32(out, int32(s.baseBuffer.Len()))
	out = appendFloat64s(out, s.baseBuffer.Items())
	out = appendUint64(out, s.bitPattern)
	for lvl := 0; lvl < len(s.levels); lvl++ {
		if s.bitPattern&(1<<uint(lvl)) == 0 {
			continue
		}
		out = appendFloat64s(out, s.levels[lvl].Items())
	}
	return out
}

func appendInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}

func appendUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func appendFloat64s(dst []byte, vs []float64) []byte {
	for _, v := range vs {
		dst = appendUint64(dst, math.Float64bits(v))
	}
	return dst
}

// CopyBytes writes the sketch's serialization into dst without growing it,
// returning the number of bytes written. Returns a Capacity error, rather
// than allocating, if dst is too small to hold the serialization.
func (s *Sketch) CopyBytes(dst []byte) (int, error) {
	b := s.ToBytes()
	if len(dst) < len(b) {
		return 0, sketcherr.New(sketcherr.Capacity, "quantiles.Sketch.CopyBytes", "dst too small for serialization")
	}
	copy(dst, b)
	return len(b), nil
}

// FromBytes reconstructs a sketch previously serialized with ToBytes,
// validating the preamble structurally rather than panicking on malformed
// input.
func FromBytes(b []byte, rng sketchrand.UniformRng) (*Sketch, error) {
	const op = "quantiles.FromBytes"
	if len(b) < qHeaderBytesEmpty {
		return nil, sketcherr.New(sketcherr.Corruption, op, "input shorter than the minimum preamble")
	}
	preambleLongs := int(b[0])
	if preambleLongs != qPreambleLongsEmpty && preambleLongs != qPreambleLongsPopulated {
		return nil, sketcherr.New(sketcherr.Corruption, op, "preambleLongs must be 1 or 4")
	}
	if b[1] != quantilesSerVer {
		return nil, sketcherr.New(sketcherr.Corruption, op, "unsupported serialization version")
	}
	if b[2] != quantilesFamilyID {
		return nil, sketcherr.New(sketcherr.Corruption, op, "unexpected family id")
	}
	k := int(binary.LittleEndian.Uint16(b[4:6]))
	if err := validateK(k); err != nil {
		return nil, sketcherr.Wrap(sketcherr.Corruption, op, "invalid k in preamble", err)
	}
	empty := b[6]&quantilesEmptyFlag != 0
	if empty != (preambleLongs == qPreambleLongsEmpty) {
		return nil, sketcherr.New(sketcherr.Corruption, op, "EMPTY flag disagrees with preambleLongs")
	}

	s := &Sketch{
		k:          k,
		minValue:   math.Inf(1),
		maxValue:   math.Inf(-1),
		baseBuffer: buffer.New[float64](2*k, 2*k, false),
		rng:        rng,
	}
	if empty {
		return s, nil
	}

	if len(b) < qHeaderBytesPopulated {
		return nil, sketcherr.New(sketcherr.Corruption, op, "input shorter than the populated preamble")
	}
	s.n = int64(binary.LittleEndian.Uint64(b[8:16]))
	s.minValue = math.Float64frombits(binary.LittleEndian.Uint64(b[16:24]))
	s.maxValue = math.Float64frombits(binary.LittleEndian.Uint64(b[24:32]))

	pos := qHeaderBytesPopulated
	if len(b)-pos < 4 {
		return nil, sketcherr.New(sketcherr.Corruption, op, "truncated base buffer count")
	}
	baseCount := int(int32(binary.LittleEndian.Uint32(b[pos : pos+4])))
	pos += 4
	baseItems, n, err := readFloat64s(b[pos:], baseCount)
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.Corruption, op, "truncated base buffer", err)
	}
	pos += n
	for _, v := range baseItems {
		s.baseBuffer.Append(v)
	}

	if len(b)-pos < 8 {
		return nil, sketcherr.New(sketcherr.Corruption, op, "truncated bit pattern")
	}
	s.bitPattern = binary.LittleEndian.Uint64(b[pos : pos+8])
	pos += 8

	bp := s.bitPattern
	for lvl := 0; bp != 0; lvl, bp = lvl+1, bp>>1 {
		s.ensureLevels(lvl)
		if bp&1 == 0 {
			continue
		}
		items, n, err := readFloat64s(b[pos:], k)
		if err != nil {
			return nil, sketcherr.Wrap(sketcherr.Corruption, op, "truncated level data", err)
		}
		pos += n
		s.levels[lvl] = buffer.Wrap(items, true, false)
	}
	return s, nil
}

func readFloat64s(b []byte, count int) ([]float64, int, error) {
	need := count * 8
	if len(b) < need {
		return nil, 0, sketcherr.New(sketcherr.Corruption, "quantiles.readFloat64s", "payload too short for declared count")
	}
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8 : i*8+8]))
	}
	return out, need, nil
}
