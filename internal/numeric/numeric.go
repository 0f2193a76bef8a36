// Package numeric holds the small float64 kernels shared by the autograd
// ops and the sampler.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax normalizes x in place. The max is subtracted first so large
// logits do not overflow.
func Softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	max := floats.Max(x)
	sum := 0.0
	for i := range x {
		x[i] = math.Exp(x[i] - max)
		sum += x[i]
	}
	floats.Scale(1/sum, x)
}

// LogSumExp returns log(sum(exp(x))) without overflow.
func LogSumExp(x []float64) float64 {
	if len(x) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(x)
}

// ArgMax returns the index of the largest non-NaN value, or 0 if every
// value is NaN.
func ArgMax(x []float64) int {
	if len(x) == 0 {
		panic("numeric: ArgMax of empty slice")
	}
	idx := -1
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if idx < 0 || v > x[idx] {
			idx = i
		}
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// CountInvalid returns how many entries are NaN and how many are ±Inf.
func CountInvalid(x []float64) (nan, inf int) {
	for _, v := range x {
		switch {
		case math.IsNaN(v):
			nan++
		case math.IsInf(v, 0):
			inf++
		}
	}
	return nan, inf
}

// Entropy of a probability distribution, in nats.
func Entropy(p []float64) float64 {
	h := 0.0
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v)
		}
	}
	return h
}
