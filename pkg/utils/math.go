package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax writes the softmax of x into out (may alias x). Uses the max-shift
// form so large logits do not overflow.
func Softmax(x, out []float64) {
	max := floats.Max(x)
	var sum float64
	for i, v := range x {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

// Argmax returns the index of the largest value in x, or -1 if x is empty.
func Argmax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
