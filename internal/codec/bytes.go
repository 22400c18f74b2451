package codec

import (
	"encoding/binary"
	"math"
)

// weightsToBytes concatenates every weight array as little-endian 4-byte
// floats in manifest order, with no gaps. The result length is always an
// exact multiple of 4.
func weightsToBytes(weights [][]float64) []byte {
	var total int
	for _, w := range weights {
		total += len(w)
	}
	out := make([]byte, total*4)
	i := 0
	for _, w := range weights {
		for _, v := range w {
			binary.LittleEndian.PutUint32(out[i:i+4], math.Float32bits(float32(v)))
			i += 4
		}
	}
	return out
}

// bytesToFloats reinterprets b as little-endian 4-byte floats. When the
// length is not a multiple of 4 the buffer is zero-padded up to the next
// multiple before decoding.
func bytesToFloats(b []byte) []float64 {
	if rem := len(b) % 4; rem != 0 {
		padded := make([]byte, len(b)+4-rem)
		copy(padded, b)
		b = padded
	}
	out := make([]float64, len(b)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4])))
	}
	return out
}
