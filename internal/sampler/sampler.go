package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/23skdu/longbow-seq2seq/internal/metrics"
	"github.com/23skdu/longbow-seq2seq/internal/numeric"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrInvalidLogits = errors.New("logits contain NaN or Inf")

type Config struct {
	Seed int64 // 0 = time based
}

// Sampler draws one index from temperature-scaled logits.
type Sampler struct {
	Config Config
	src    rand.Source
}

func New(cfg Config) *Sampler {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Sampler{
		Config: cfg,
		src:    rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15),
	}
}

// SampleWithTemperature converts logits to probabilities proportional to
// exp(logit/temperature) and draws one index from that categorical
// distribution. A temperature of zero or less picks the argmax, and so does
// a temperature small enough to underflow every non-maximal probability.
func (s *Sampler) SampleWithTemperature(logits []float64, temperature float64) (int, error) {
	if len(logits) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidLogits)
	}
	if nan, inf := numeric.CountInvalid(logits); nan > 0 || inf > 0 {
		metrics.RecordNumericalInstability("logits", nan, inf)
		return 0, fmt.Errorf("%w: %d NaN, %d Inf", ErrInvalidLogits, nan, inf)
	}
	if temperature <= 0 {
		metrics.RecordSampling(0, 1)
		return numeric.ArgMax(logits), nil
	}

	// Shift before scaling so every value is <= 0: a tiny temperature can
	// only push a logit to -Inf, never to +Inf.
	top := floats.Max(logits)
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = (v - top) / temperature
	}
	numeric.Softmax(probs)
	if nan, inf := numeric.CountInvalid(probs); nan > 0 || inf > 0 {
		metrics.RecordSampling(temperature, 1)
		return numeric.ArgMax(logits), nil
	}
	metrics.RecordSampling(temperature, probs[numeric.ArgMax(probs)])

	dist := distuv.NewCategorical(probs, s.src)
	return int(dist.Rand()), nil
}
