package embed

import (
	"encoding/binary"
	"math"
)

// ToBytes serializes vec as little-endian IEEE-754 float32s, the wire and
// storage representation used by the chunk table and the export format.
func ToBytes(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// FromBytes is the inverse of ToBytes. Trailing bytes that don't form a
// complete float32 are ignored.
func FromBytes(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
