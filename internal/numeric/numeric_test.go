package numeric

import (
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	testCases := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{
			name:     "simple",
			input:    []float64{1, 2, 3},
			expected: []float64{0.09003057, 0.24472847, 0.66524096},
		},
		{
			name:     "negative",
			input:    []float64{-1, -2, -3},
			expected: []float64{0.66524096, 0.24472847, 0.09003057},
		},
		{
			name:     "zero",
			input:    []float64{0, 0, 0},
			expected: []float64{0.33333333, 0.33333333, 0.33333333},
		},
		{
			name:     "single",
			input:    []float64{42},
			expected: []float64{1},
		},
		{
			name:     "large",
			input:    []float64{1000, 1000},
			expected: []float64{0.5, 0.5},
		},
		{
			name:     "empty",
			input:    []float64{},
			expected: []float64{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := make([]float64, len(tc.input))
			copy(input, tc.input)
			Softmax(input)
			if len(input) != len(tc.expected) {
				t.Fatalf("expected length %d, got %d", len(tc.expected), len(input))
			}
			for i := range input {
				if math.Abs(input[i]-tc.expected[i]) > 1e-8 {
					t.Errorf("expected %v, got %v", tc.expected, input)
					break
				}
			}
		})
	}
}

func TestLogSumExp(t *testing.T) {
	x := []float64{1, 2, 3}
	want := math.Log(math.Exp(1) + math.Exp(2) + math.Exp(3))
	if got := LogSumExp(x); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := LogSumExp([]float64{800, 800}); math.Abs(got-(800+math.Ln2)) > 1e-9 {
		t.Errorf("overflowed: %v", got)
	}
	if got := LogSumExp(nil); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf for empty input, got %v", got)
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want int
	}{
		{"simple", []float64{1.0, 5.0, 2.0, 0.5}, 1},
		{"first of ties", []float64{3, 3, 1}, 0},
		{"skips nan", []float64{math.NaN(), -1, -2}, 1},
		{"all nan", []float64{math.NaN(), math.NaN()}, 0},
		{"negative", []float64{-5, -3, -4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArgMax(tt.in); got != tt.want {
				t.Errorf("ArgMax(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCountInvalid(t *testing.T) {
	nan, inf := CountInvalid([]float64{1, math.NaN(), math.Inf(1), math.Inf(-1), 0})
	if nan != 1 || inf != 2 {
		t.Errorf("expected 1 NaN and 2 Inf, got %d and %d", nan, inf)
	}
}

func TestEntropy(t *testing.T) {
	if got := Entropy([]float64{1, 0, 0}); got != 0 {
		t.Errorf("one-hot entropy should be 0, got %v", got)
	}
	if got := Entropy([]float64{0.5, 0.5}); math.Abs(got-math.Ln2) > 1e-12 {
		t.Errorf("expected ln 2, got %v", got)
	}
}
