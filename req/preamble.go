package req

import (
	"encoding/binary"
	"math"

	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// Wire-format constants for the relative-error quantiles family, following
// the same first-eight-bytes shape (preambleLongs, serVer, familyID, flags)
// the frequency and quantiles families use, with its own stable family ID
// and flag layout.
const (
	reqFamilyID = 16
	reqSerVer   = 1
	reqHRAFlag  = 0x08
	reqEmptyFlag = 0x04

	reqPreambleLongsEmpty     = 1
	reqPreambleLongsPopulated = 4
	reqHeaderBytesEmpty       = reqPreambleLongsEmpty * 8
	reqHeaderBytesPopulated   = reqPreambleLongsPopulated * 8
)

// ToBytes serializes the sketch. An empty sketch serializes to exactly 8
// bytes, matching the other families' empty-case shape.
func (s *Sketch) ToBytes() []byte {
	if s.IsEmpty() {
		b := make([]byte, reqHeaderBytesEmpty)
		b[0] = reqPreambleLongsEmpty
		b[1] = reqSerVer
		b[2] = reqFamilyID
		binary.LittleEndian.PutUint16(b[4:6], uint16(s.k))
		b[6] = reqEmptyFlag
		if s.hra {
			b[6] |= reqHRAFlag
		}
		return b
	}

	header := make([]byte, reqHeaderBytesPopulated)
	header[0] = reqPreambleLongsPopulated
	header[1] = reqSerVer
	header[2] = reqFamilyID
	binary.LittleEndian.PutUint16(header[4:6], uint16(s.k))
	header[6] = 0
	if s.hra {
		header[6] |= reqHRAFlag
	}
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(s.compactors)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(s.n))
	binary.LittleEndian.PutUint64(header[24:32], math.Float64bits(s.minValue))

	out := header
	out = appendFloat64(out, s.maxValue)
	for _, c := range s.compactors {
		out = appendInt32(out, int32(c.Len()))
		for _, v := range c.Items() {
			out = appendFloat64(out, v)
		}
	}
	return out
}

func appendInt32(dst []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(dst, buf[:]...)
}

func appendFloat64(dst []byte, v float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return append(dst, buf[:]...)
}

// CopyBytes writes the sketch's serialization into dst without growing it,
// returning the number of bytes written. Returns a Capacity error, rather
// than allocating, if dst is too small to hold the serialization.
func (s *Sketch) CopyBytes(dst []byte) (int, error) {
	b := s.ToBytes()
	if len(dst) < len(b) {
		return 0, sketcherr.New(sketcherr.Capacity, "req.Sketch.CopyBytes", "dst too small for serialization")
	}
	copy(dst, b)
	return len(b), nil
}

// FromBytes reconstructs a sketch previously serialized with ToBytes,
// validating the preamble structurally rather than panicking on malformed
// input.
func FromBytes(b []byte, rng sketchrand.UniformRng) (*Sketch, error) {
	const op = "req.FromBytes"
	if len(b) < reqHeaderBytesEmpty {
		return nil, sketcherr.New(sketcherr.Corruption, op, "input shorter than the minimum preamble")
	}
	preambleLongs := int(b[0])
	if preambleLongs != reqPreambleLongsEmpty && preambleLongs != reqPreambleLongsPopulated {
		return nil, sketcherr.New(sketcherr.Corruption, op, "preambleLongs must be 1 or 4")
	}
	if b[1] != reqSerVer {
		return nil, sketcherr.New(sketcherr.Corruption, op, "unsupported serialization version")
	}
	if b[2] != reqFamilyID {
		return nil, sketcherr.New(sketcherr.Corruption, op, "unexpected family id")
	}
	k := int(binary.LittleEndian.Uint16(b[4:6]))
	if k < MinK || k%2 != 0 {
		return nil, sketcherr.New(sketcherr.Corruption, op, "invalid k in preamble")
	}
	empty := b[6]&reqEmptyFlag != 0
	if empty != (preambleLongs == reqPreambleLongsEmpty) {
		return nil, sketcherr.New(sketcherr.Corruption, op, "EMPTY flag disagrees with preambleLongs")
	}
	hra := b[6]&reqHRAFlag != 0

	s := &Sketch{k: k, hra: hra, minValue: math.Inf(1), maxValue: math.Inf(-1), rng: rng}
	if empty {
		return s, nil
	}

	if len(b) < reqHeaderBytesPopulated {
		return nil, sketcherr.New(sketcherr.Corruption, op, "input shorter than the populated preamble")
	}
	numCompactors := int(binary.LittleEndian.Uint32(b[8:12]))
	s.n = int64(binary.LittleEndian.Uint64(b[16:24]))
	s.minValue = math.Float64frombits(binary.LittleEndian.Uint64(b[24:32]))

	pos := reqHeaderBytesPopulated
	maxValue, n, err := readFloat64(b[pos:])
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.Corruption, op, "truncated max value", err)
	}
	s.maxValue = maxValue
	pos += n

	for h := 0; h < numCompactors; h++ {
		if len(b)-pos < 4 {
			return nil, sketcherr.New(sketcherr.Corruption, op, "truncated compactor item count")
		}
		count := int(int32(binary.LittleEndian.Uint32(b[pos : pos+4])))
		pos += 4
		s.ensureCompactor(h)
		for i := 0; i < count; i++ {
			v, n, err := readFloat64(b[pos:])
			if err != nil {
				return nil, sketcherr.Wrap(sketcherr.Corruption, op, "truncated compactor item", err)
			}
			s.compactors[h].buf.Append(v)
			pos += n
		}
	}
	return s, nil
}

func readFloat64(b []byte) (float64, int, error) {
	if len(b) < 8 {
		return 0, 0, sketcherr.New(sketcherr.Corruption, "req.readFloat64", "payload too short for a float64")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:8])), 8, nil
}
