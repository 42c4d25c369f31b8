// Package hashfn supplies the pluggable 64-bit hash capability sketch
// packages take a Hasher[T] at construction instead of hard-coding one.
package hashfn

import (
	"github.com/cespare/xxhash/v2"
	metro "github.com/dgryski/go-metro"
)

// Hasher maps a value of type T to a 64-bit digest. Implementations must be
// deterministic: the same item always hashes to the same value within a
// process run, since ReversePurgeHashMap's probe-distance invariant depends
// on it.
type Hasher[T any] interface {
	Hash(item T) uint64
}

// stringHasher hashes string keys with xxhash.
type stringHasher struct{}

func (stringHasher) Hash(item string) uint64 { return xxhash.Sum64String(item) }

// XXHashString is the default Hasher[string].
var XXHashString Hasher[string] = stringHasher{}

// bytesHasher hashes []byte keys with xxhash.
type bytesHasher struct{}

func (bytesHasher) Hash(item []byte) uint64 { return xxhash.Sum64(item) }

// XXHashBytes is the default Hasher[[]byte].
var XXHashBytes Hasher[[]byte] = bytesHasher{}

// metroUint64Hasher mixes an already-numeric key through MetroHash64, the
// hash axiomhq/hyperloglog uses for its own 64-bit inputs.
type metroUint64Hasher struct{}

func (metroUint64Hasher) Hash(item uint64) uint64 {
	var buf [8]byte
	buf[0] = byte(item)
	buf[1] = byte(item >> 8)
	buf[2] = byte(item >> 16)
	buf[3] = byte(item >> 24)
	buf[4] = byte(item >> 32)
	buf[5] = byte(item >> 40)
	buf[6] = byte(item >> 48)
	buf[7] = byte(item >> 56)
	return metro.Hash64(buf[:], 0)
}

// Metro64 is a Hasher[uint64]. rhashmap.Map uses it internally to re-mix a
// caller's Hasher output before masking it down to a slot index, so it is
// also available directly to callers who want the same mixer for their own
// uint64 keys.
var Metro64 Hasher[uint64] = metroUint64Hasher{}
