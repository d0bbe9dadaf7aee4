package observation

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the exact bit pattern of an encoded vector. Two vectors
// share a fingerprint only if every component is bit-identical, which makes it
// a cheap determinism check for seeded rollouts.
func Fingerprint(vec []float32) uint64 {
	buf := make([]byte, 0, len(vec)*4)
	for _, v := range vec {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return xxhash.Sum64(buf)
}

// FingerprintAll folds the fingerprints of several vectors, in order.
func FingerprintAll(vecs [][]float32) uint64 {
	d := xxhash.New()
	var word [8]byte
	for _, v := range vecs {
		binary.LittleEndian.PutUint64(word[:], Fingerprint(v))
		_, _ = d.Write(word[:])
	}
	return d.Sum64()
}
