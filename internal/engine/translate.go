package engine

import (
	"fmt"
	"time"

	"github.com/23skdu/longbow-seq2seq/internal/metrics"
	"github.com/23skdu/longbow-seq2seq/internal/numeric"
	"github.com/23skdu/longbow-seq2seq/internal/tokenizer"
)

// Translation is a generated string with the attention row of every step,
// including the step that sampled EOS.
type Translation struct {
	Source    string
	Output    string
	Attention [][]float64
}

// Translate samples up to maxLength characters for src. Lower temperatures
// approach greedy decoding; zero is exactly greedy.
func (s *Session) Translate(src string, maxLength int, temperature float64) (string, error) {
	t, err := s.translate(src, maxLength, temperature, false)
	if err != nil {
		return "", err
	}
	return t.Output, nil
}

func (s *Session) TranslateWithAttention(src string, maxLength int, temperature float64) (Translation, error) {
	return s.translate(src, maxLength, temperature, true)
}

func (s *Session) translate(src string, maxLength int, temperature float64, keepAttention bool) (Translation, error) {
	tr := Translation{Source: src}
	if src == "" {
		metrics.RecordValidationError("translate", "empty_sequence")
		return tr, fmt.Errorf("%w: source", ErrEmptySequence)
	}
	if maxLength < 0 {
		metrics.RecordValidationError("translate", "invalid_length")
		return tr, fmt.Errorf("%w: %d", ErrInvalidLength, maxLength)
	}
	start := time.Now()

	ids, err := s.Codec.Encode(src, false)
	if err != nil {
		return tr, fmt.Errorf("encode source: %w", err)
	}
	metrics.RecordSourceLength(len(ids))

	// nil tape: inference records nothing
	enc, hidden, err := s.Model.Encoder.Encode(nil, ids, s.Model.Encoder.InitHidden())
	if err != nil {
		return tr, err
	}
	context := s.Model.Decoder.InitContext()

	out := make([]byte, 0, maxLength)
	input := tokenizer.SOS
	reason := "max_length"
	for len(out) < maxLength {
		res, err := s.Model.Decoder.Step(nil, input, context, hidden, enc)
		if err != nil {
			return tr, fmt.Errorf("decode step %d: %w", len(out), err)
		}
		if keepAttention {
			tr.Attention = append(tr.Attention, append([]float64(nil), res.Attention.Value...))
		}
		metrics.RecordAttentionEntropy(numeric.Entropy(res.Attention.Value))

		// SOS is the last index and never a legal output.
		next, err := s.Sampler.SampleWithTemperature(res.Logits.Value[:tokenizer.SOS], temperature)
		if err != nil {
			return tr, fmt.Errorf("decode step %d: %w", len(out), err)
		}
		if next == tokenizer.EOS {
			reason = "eos"
			break
		}
		ch, err := s.Codec.Decode(next)
		if err != nil {
			return tr, err
		}
		out = append(out, ch)
		input, context, hidden = next, res.Context, res.Hidden
	}

	tr.Output = string(out)
	metrics.RecordTranslation(len(out), reason, time.Since(start))
	return tr, nil
}
