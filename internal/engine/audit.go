package engine

import (
	"math"

	"github.com/23skdu/longbow-seq2seq/internal/numeric"
)

// LogitAudit summarizes one logit vector.
type LogitAudit struct {
	Max    float64
	Min    float64
	Mean   float64
	RMS    float64
	NumNaN int
	NumInf int

	// IsFlat is set when the spread is too small for sampling to prefer
	// any character.
	IsFlat bool
}

// AuditLogits inspects raw logits for flatness or invalid values.
func AuditLogits(logits []float64) LogitAudit {
	var a LogitAudit
	if len(logits) == 0 {
		return a
	}
	a.NumNaN, a.NumInf = numeric.CountInvalid(logits)

	var sum, sumSq float64
	a.Min, a.Max = math.Inf(1), math.Inf(-1)
	n := 0
	for _, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		a.Min = math.Min(a.Min, v)
		a.Max = math.Max(a.Max, v)
		sum += v
		sumSq += v * v
		n++
	}
	if n == 0 {
		a.Min, a.Max = 0, 0
		return a
	}
	a.Mean = sum / float64(n)
	a.RMS = math.Sqrt(sumSq / float64(n))
	a.IsFlat = a.Max-a.Min < 1e-6
	return a
}
