package engine

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/config"
	"github.com/23skdu/longbow-seq2seq/internal/seq2seq"
)

// ProbeStep holds the shapes produced by one decode step.
type ProbeStep struct {
	Logits    int
	Hidden    [2]int // layers x hidden
	Attention int
	Audit     LogitAudit
}

// ProbeReport describes a forward pass through a throwaway model.
type ProbeReport struct {
	EncoderOutputs [2]int // positions x hidden
	Steps          []ProbeStep
	Attention      [][]float64
}

// Probe builds a 10-symbol, width-10, two-layer model with general
// attention and runs it over [1 2 3] with teacher forcing. It checks the
// plumbing without touching any session.
func Probe(seed uint64) (ProbeReport, error) {
	const size, layers = 10, 2
	tokens := []int{1, 2, 3}

	cfg := config.Default()
	cfg.HiddenSize = size
	cfg.Layers = layers
	cfg.Attention = config.AttentionGeneral
	m, err := seq2seq.NewModel(cfg, size, rand.NewPCG(seed, seed+1))
	if err != nil {
		return ProbeReport{}, err
	}

	enc, hidden, err := m.Encoder.Encode(nil, tokens, m.Encoder.InitHidden())
	if err != nil {
		return ProbeReport{}, err
	}
	rep := ProbeReport{EncoderOutputs: [2]int{len(enc), size}}

	context := m.Decoder.InitContext()
	for _, tok := range tokens {
		res, err := m.Decoder.Step(nil, tok, context, hidden, enc)
		if err != nil {
			return rep, err
		}
		rep.Steps = append(rep.Steps, ProbeStep{
			Logits:    res.Logits.Len(),
			Hidden:    [2]int{len(res.Hidden), res.Hidden[0].Len()},
			Attention: res.Attention.Len(),
			Audit:     AuditLogits(res.Logits.Value),
		})
		rep.Attention = append(rep.Attention, append([]float64(nil), res.Attention.Value...))
		context, hidden = res.Context, res.Hidden
	}
	return rep, nil
}

// Print writes the report in the same order the probe ran.
func (r ProbeReport) Print(w io.Writer) {
	fmt.Fprintf(w, "encoder outputs: %dx%d\n", r.EncoderOutputs[0], r.EncoderOutputs[1])
	for i, s := range r.Steps {
		fmt.Fprintf(w, "step %d: logits %d, hidden %dx%d, attention %d, logit range [%.4f, %.4f]\n",
			i, s.Logits, s.Hidden[0], s.Hidden[1], s.Attention, s.Audit.Min, s.Audit.Max)
	}
	for i, row := range r.Attention {
		fmt.Fprintf(w, "attention %d: %.4f\n", i, row)
	}
}
