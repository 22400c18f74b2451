package utils

import (
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	x := []float64{1, 2, 3}
	out := make([]float64, 3)
	Softmax(x, out)
	var sum float64
	for _, v := range out {
		if v <= 0 || v >= 1 {
			t.Errorf("probability out of range: %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", sum)
	}
	if !(out[2] > out[1] && out[1] > out[0]) {
		t.Errorf("softmax not monotone: %v", out)
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	out := make([]float64, 2)
	Softmax([]float64{1000, 1001}, out)
	if math.IsNaN(out[0]) || math.IsNaN(out[1]) {
		t.Fatalf("overflow: %v", out)
	}
}

func TestArgmax(t *testing.T) {
	if got := Argmax([]float64{0.1, 0.7, 0.2}); got != 1 {
		t.Errorf("Argmax = %d, want 1", got)
	}
	if got := Argmax(nil); got != -1 {
		t.Errorf("Argmax(nil) = %d, want -1", got)
	}
}
