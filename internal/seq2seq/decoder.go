package seq2seq

import (
	"fmt"
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"github.com/23skdu/longbow-seq2seq/internal/config"
	"gonum.org/v1/gonum/stat/distuv"
)

// Decoder is a GRU conditioned on the previous context vector, with
// attention over the encoder outputs.
type Decoder struct {
	Embedding *autograd.Node
	RNN       *GRU
	Attn      *Attention
	Out       *autograd.Node
	OutBias   *autograd.Node

	VocabSize  int
	HiddenSize int
}

// StepResult is everything one decode step produces.
type StepResult struct {
	Logits    *autograd.Node   // pre-softmax scores over the vocabulary
	Context   *autograd.Node   // attention-weighted encoder outputs
	Hidden    []*autograd.Node // new state, one per layer
	Attention *autograd.Node   // weights over source positions
}

func NewDecoder(method config.AttentionMethod, hidden, vocab, layers int, src rand.Source) (*Decoder, error) {
	attn, err := NewAttention(method, hidden, src)
	if err != nil {
		return nil, err
	}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	sample := uniform(2*hidden, src)
	return &Decoder{
		Embedding:  autograd.NewParam(vocab, hidden, normal.Rand),
		RNN:        NewGRU(2*hidden, hidden, layers, src),
		Attn:       attn,
		Out:        autograd.NewParam(vocab, 2*hidden, sample),
		OutBias:    autograd.NewParam(vocab, 1, sample),
		VocabSize:  vocab,
		HiddenSize: hidden,
	}, nil
}

// InitContext is the zero context fed to the first step.
func (d *Decoder) InitContext() *autograd.Node {
	return autograd.Zeros(d.HiddenSize)
}

// Step runs one decode step:
//  1. embed input
//  2. GRU over [embedding; prevContext] from prevHidden
//  3. score the new top-layer state against every encoder output
//  4. softmax the scores into attention weights
//  5. context = weighted sum of encoder outputs
//  6. logits = Out·[hidden; context] + bias
func (d *Decoder) Step(tape *autograd.Tape, input int, prevContext *autograd.Node, prevHidden []*autograd.Node, enc []*autograd.Node) (StepResult, error) {
	if len(enc) == 0 {
		return StepResult{}, ErrEmptyEncoderOutputs
	}
	if input < 0 || input >= d.VocabSize {
		return StepResult{}, fmt.Errorf("%w: %d", ErrTokenOutOfRange, input)
	}
	if len(prevHidden) != len(d.RNN.Cells) {
		return StepResult{}, fmt.Errorf("%w: got %d, want %d", ErrHiddenLayers, len(prevHidden), len(d.RNN.Cells))
	}

	embedded := tape.Row(d.Embedding, input)
	hidden := d.RNN.Step(tape, tape.Concat(embedded, prevContext), prevHidden)
	top := hidden[len(hidden)-1]

	weights, err := d.Attn.Weights(tape, top, enc)
	if err != nil {
		return StepResult{}, err
	}
	context := tape.WeightedSum(weights, enc)
	logits := tape.Linear(d.Out, d.OutBias, tape.Concat(top, context))

	return StepResult{
		Logits:    logits,
		Context:   context,
		Hidden:    hidden,
		Attention: weights,
	}, nil
}

func (d *Decoder) Parameters() []*autograd.Node {
	params := []*autograd.Node{d.Embedding}
	params = append(params, d.RNN.Parameters()...)
	params = append(params, d.Attn.Parameters()...)
	return append(params, d.Out, d.OutBias)
}
