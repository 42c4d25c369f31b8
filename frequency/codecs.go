package frequency

import (
	"encoding/binary"

	"sketchcore.dev/sketcherr"
)

var errShortPayload = sketcherr.New(sketcherr.Corruption, "frequency.Codec.Decode", "payload too short for declared item count")

// Int64Codec serializes int64 items as fixed-width little-endian values.
// TypeByte 1 distinguishes it on the wire from StringCodec.
type Int64Codec struct{}

func (Int64Codec) TypeByte() byte { return 1 }

func (Int64Codec) Encode(dst []byte, items []int64) []byte {
	for _, v := range items {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		dst = append(dst, buf[:]...)
	}
	return dst
}

func (Int64Codec) Decode(b []byte, n int) ([]int64, int, error) {
	need := n * 8
	if len(b) < need {
		return nil, 0, errShortPayload
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8 : i*8+8]))
	}
	return out, need, nil
}

// StringCodec serializes string items as a little-endian uint32 length
// prefix followed by UTF-8 bytes. TypeByte 2 distinguishes it on the wire.
type StringCodec struct{}

func (StringCodec) TypeByte() byte { return 2 }

func (StringCodec) Encode(dst []byte, items []string) []byte {
	for _, s := range items {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		dst = append(dst, lenBuf[:]...)
		dst = append(dst, s...)
	}
	return dst
}

func (StringCodec) Decode(b []byte, n int) ([]string, int, error) {
	out := make([]string, n)
	pos := 0
	for i := 0; i < n; i++ {
		if len(b)-pos < 4 {
			return nil, 0, errShortPayload
		}
		l := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		pos += 4
		if len(b)-pos < l {
			return nil, 0, errShortPayload
		}
		out[i] = string(b[pos : pos+l])
		pos += l
	}
	return out, pos, nil
}
