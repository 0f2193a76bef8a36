package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"github.com/23skdu/longbow-seq2seq/internal/config"
	"github.com/23skdu/longbow-seq2seq/internal/logger"
	"github.com/23skdu/longbow-seq2seq/internal/metrics"
	"github.com/23skdu/longbow-seq2seq/internal/optim"
	"github.com/23skdu/longbow-seq2seq/internal/sampler"
	"github.com/23skdu/longbow-seq2seq/internal/seq2seq"
	"github.com/23skdu/longbow-seq2seq/internal/tokenizer"
)

var (
	ErrEmptySequence = errors.New("empty sequence")
	ErrInvalidLength = errors.New("invalid max length")
)

// Session owns one model and its optimizer state. Sessions share nothing,
// so several can be trained side by side.
type Session struct {
	Config  config.Config
	Codec   *tokenizer.Codec
	Model   *seq2seq.Model
	Optim   *optim.Adam
	Sampler *sampler.Sampler

	params []*autograd.Node
	log    *logger.Logger
}

func NewSession(cfg config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Attention = cfg.GetAttention()
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	src := rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)+1)
	model, err := seq2seq.NewModel(cfg, tokenizer.VocabSize, src)
	if err != nil {
		return nil, err
	}
	params := model.Parameters()
	metrics.RecordParameterCount(autograd.CountParams(params))

	s := &Session{
		Config:  cfg,
		Codec:   tokenizer.New(),
		Model:   model,
		Optim:   optim.NewAdam(params, cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Eps, cfg.WeightDecay),
		Sampler: sampler.New(sampler.Config{Seed: cfg.Seed}),
		params:  params,
		log:     logger.Log.With("component", "session"),
	}
	s.log.Debug("Session created",
		"hidden", cfg.HiddenSize,
		"layers", cfg.Layers,
		"attention", string(cfg.Attention),
		"params", autograd.CountParams(params),
		"seed", cfg.Seed,
		"greedy", cfg.IsGreedy())
	return s, nil
}

// Parameters returns every trainable tensor, encoder first.
func (s *Session) Parameters() []*autograd.Node {
	return s.params
}

// TrainStep runs one teacher-forced update on a single pair and returns the
// loss averaged over the target length (EOS included).
func (s *Session) TrainStep(src, tgt string) (float64, error) {
	if src == "" || tgt == "" {
		metrics.RecordValidationError("train_step", "empty_sequence")
		return 0, fmt.Errorf("%w: source %q, target %q", ErrEmptySequence, src, tgt)
	}
	start := time.Now()

	srcIDs, err := s.Codec.Encode(src, false)
	if err != nil {
		return 0, fmt.Errorf("encode source: %w", err)
	}
	tgtIDs, err := s.Codec.Encode(tgt, true)
	if err != nil {
		return 0, fmt.Errorf("encode target: %w", err)
	}

	tape := autograd.NewTape()
	loss, err := s.teacherForced(tape, srcIDs, tgtIDs)
	if err != nil {
		return 0, err
	}

	s.Optim.ZeroGrad()
	if err := tape.Backward(loss); err != nil {
		return 0, err
	}

	var norm float64
	var clipped bool
	if s.Config.ClipNorm > 0 {
		norm, clipped = optim.ClipGradNorm(s.params, s.Config.ClipNorm)
	} else {
		norm = optim.GradNorm(s.params)
	}
	metrics.RecordGradientNorm(norm, clipped)

	s.Optim.Step()

	avg := loss.Scalar() / float64(len(tgtIDs))
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		nan, inf := 0, 0
		if math.IsNaN(avg) {
			nan = 1
		} else {
			inf = 1
		}
		metrics.RecordNumericalInstability("loss", nan, inf)
		s.log.Warn("Non-finite training loss", "loss", avg, "grad_norm", norm, "step", s.Optim.Steps())
	}
	metrics.RecordTrainStep(avg, len(tgtIDs), time.Since(start))
	return avg, nil
}

// teacherForced sums the cross-entropy of every target position. The
// decoder is fed SOS first, then the true previous target token.
func (s *Session) teacherForced(tape *autograd.Tape, srcIDs, tgtIDs []int) (*autograd.Node, error) {
	enc, hidden, err := s.Model.Encoder.Encode(tape, srcIDs, s.Model.Encoder.InitHidden())
	if err != nil {
		return nil, err
	}
	context := s.Model.Decoder.InitContext()

	var loss *autograd.Node
	for c, target := range tgtIDs {
		input := tokenizer.SOS
		if c > 0 {
			input = tgtIDs[c-1]
		}
		res, err := s.Model.Decoder.Step(tape, input, context, hidden, enc)
		if err != nil {
			return nil, fmt.Errorf("decode step %d: %w", c, err)
		}
		step := tape.CrossEntropy(res.Logits, target)
		if loss == nil {
			loss = step
		} else {
			loss = tape.Add(loss, step)
		}
		context, hidden = res.Context, res.Hidden
	}
	return loss, nil
}
