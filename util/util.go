package util

import (
	"math/rand"

	"github.com/fogleman/ease"
)

// RandomRange returns a uniformly distributed value in [min, max).
func RandomRange(rng *rand.Rand, min float64, max float64) float64 {
	return rng.Float64()*(max-min) + min
}

// GenerateLut builds a symmetric ease-in-out curve of the given length that
// rises from 0 towards 1 and falls back to 0.
func GenerateLut(length int) []float64 {
	lut := make([]float64, length)
	if length < 2 {
		return lut
	}
	increment := 1.0 / float64(length/2)
	for i, j := 0, length-1; i < length/2; i, j = i+1, j-1 {
		value := ease.InOutQuad(float64(i) * increment)
		lut[i] = value
		lut[j] = value
	}
	return lut
}

// LutCache memoizes GenerateLut by length. The returned slices are shared
// and must not be modified.
type LutCache map[int][]float64

// Get returns the LUT of the given length, generating it on first use.
func (c LutCache) Get(length int) []float64 {
	if lut, ok := c[length]; ok {
		return lut
	}
	lut := GenerateLut(length)
	c[length] = lut
	return lut
}

// Sample returns the LUT value at progress p in [0, 1].
func Sample(lut []float64, p float64) float64 {
	if len(lut) == 0 {
		return 0
	}
	i := int(p * float64(len(lut)-1))
	if i < 0 {
		i = 0
	} else if i >= len(lut) {
		i = len(lut) - 1
	}
	return lut[i]
}
