package frequency

import (
	"encoding/binary"

	"sketchcore.dev/hashfn"
	"sketchcore.dev/internal/rhashmap"
	"sketchcore.dev/sketcherr"
	"sketchcore.dev/sketchrand"
)

// Wire-format constants, grounded bit-for-bit on original_source's
// PreambleUtil.java.
const (
	familyID      = 10 // FREQUENCY
	serVersion    = 1
	emptyFlagMask = 0x04

	preambleLongsEmpty     = 1
	preambleLongsPopulated = 5
	headerBytesEmpty       = preambleLongsEmpty * 8
	headerBytesPopulated   = preambleLongsPopulated * 8
)

// ToBytes serializes the sketch using ser to encode the active items. An
// empty sketch serializes to exactly 8 bytes.
func (s *ItemsSketch[T]) ToBytes(ser Serializer[T]) []byte {
	if s.IsEmpty() {
		b := make([]byte, headerBytesEmpty)
		b[0] = preambleLongsEmpty
		b[1] = serVersion
		b[2] = familyID
		b[3] = byte(s.lgMaxMapSize)
		b[4] = byte(s.hashMap.LgLength())
		b[5] = emptyFlagMask
		b[6] = ser.TypeByte()
		return b
	}

	keys := s.hashMap.ActiveKeys()
	values := s.hashMap.ActiveValues()

	header := make([]byte, headerBytesPopulated)
	header[0] = preambleLongsPopulated
	header[1] = serVersion
	header[2] = familyID
	header[3] = byte(s.lgMaxMapSize)
	header[4] = byte(s.hashMap.LgLength())
	header[5] = 0
	header[6] = ser.TypeByte()
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(keys)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(s.streamLength))
	binary.LittleEndian.PutUint64(header[24:32], uint64(s.offset))
	binary.LittleEndian.PutUint64(header[32:40], uint64(s.mergeError))

	out := header
	for _, v := range values {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		out = append(out, buf[:]...)
	}
	out = ser.Encode(out, keys)
	return out
}

// CopyBytes writes the sketch's serialization into dst without growing it,
// returning the number of bytes written. Returns a Capacity error, rather
// than allocating, if dst is too small to hold the serialization.
func (s *ItemsSketch[T]) CopyBytes(dst []byte, ser Serializer[T]) (int, error) {
	b := s.ToBytes(ser)
	if len(dst) < len(b) {
		return 0, sketcherr.New(sketcherr.Capacity, "frequency.ItemsSketch.CopyBytes", "dst too small for serialization")
	}
	copy(dst, b)
	return len(b), nil
}

// FromBytes reconstructs a sketch previously serialized with ToBytes. It
// validates the preamble structurally, returning a Corruption error rather
// than panicking on malformed input.
func FromBytes[T comparable](b []byte, ser Serializer[T], hasher hashfn.Hasher[T], rng sketchrand.UniformRng) (*ItemsSketch[T], error) {
	const op = "frequency.FromBytes"
	if len(b) < headerBytesEmpty {
		return nil, sketcherr.New(sketcherr.Corruption, op, "input shorter than the minimum preamble")
	}
	preambleLongs := int(b[0])
	if preambleLongs != preambleLongsEmpty && preambleLongs != preambleLongsPopulated {
		return nil, sketcherr.New(sketcherr.Corruption, op, "preambleLongs must be 1 or 5")
	}
	if b[1] != serVersion {
		return nil, sketcherr.New(sketcherr.Corruption, op, "unsupported serialization version")
	}
	if b[2] != familyID {
		return nil, sketcherr.New(sketcherr.Corruption, op, "unexpected family id")
	}
	lgMaxMapSize := int(b[3])
	lgCurMapSize := int(b[4])
	empty := b[5]&emptyFlagMask != 0
	if empty != (preambleLongs == preambleLongsEmpty) {
		return nil, sketcherr.New(sketcherr.Corruption, op, "EMPTY flag disagrees with preambleLongs")
	}
	if b[6] != ser.TypeByte() {
		return nil, sketcherr.New(sketcherr.Corruption, op, "item serializer type byte mismatch")
	}

	hashMap, err := rhashmap.New[T](1<<lgCurMapSize, hasher)
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.Corruption, op, "failed to allocate backing map", err)
	}
	sk := &ItemsSketch[T]{
		lgMaxMapSize: lgMaxMapSize,
		hashMap:      hashMap,
		hasher:       hasher,
		rng:          rng,
	}
	if empty {
		return sk, nil
	}

	if len(b) < headerBytesPopulated {
		return nil, sketcherr.New(sketcherr.Corruption, op, "input shorter than the populated preamble")
	}
	activeItems := int(binary.LittleEndian.Uint32(b[8:12]))
	sk.streamLength = int64(binary.LittleEndian.Uint64(b[16:24]))
	sk.offset = int64(binary.LittleEndian.Uint64(b[24:32]))
	sk.mergeError = int64(binary.LittleEndian.Uint64(b[32:40]))

	payload := b[headerBytesPopulated:]
	countsLen := activeItems * 8
	if len(payload) < countsLen {
		return nil, sketcherr.New(sketcherr.Corruption, op, "payload too short for declared activeItems")
	}
	counts := make([]int64, activeItems)
	for i := 0; i < activeItems; i++ {
		counts[i] = int64(binary.LittleEndian.Uint64(payload[i*8 : i*8+8]))
	}
	items, _, err := ser.Decode(payload[countsLen:], activeItems)
	if err != nil {
		return nil, sketcherr.Wrap(sketcherr.Corruption, op, "failed to decode items", err)
	}

	for i, item := range items {
		sk.hashMap.Adjust(item, counts[i])
	}
	return sk, nil
}
