package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector packs a vector as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. dims is the stored
// dimensionality and must agree with the blob length.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob)%4 != 0 || len(blob)/4 != dims {
		return nil, fmt.Errorf("corrupt vector: %d bytes for %d dims", len(blob), dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
