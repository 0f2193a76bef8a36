package seq2seq

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrTokenOutOfRange = errors.New("token index out of range")
	ErrHiddenLayers    = errors.New("hidden state layer count mismatch")
)

// Encoder embeds source tokens and runs them through a GRU one position at
// a time.
type Encoder struct {
	Embedding *autograd.Node
	RNN       *GRU

	VocabSize  int
	HiddenSize int
}

func NewEncoder(vocab, hidden, layers int, src rand.Source) *Encoder {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return &Encoder{
		Embedding:  autograd.NewParam(vocab, hidden, normal.Rand),
		RNN:        NewGRU(hidden, hidden, layers, src),
		VocabSize:  vocab,
		HiddenSize: hidden,
	}
}

// InitHidden returns the zero start state, one vector per layer.
func (e *Encoder) InitHidden() []*autograd.Node {
	return e.RNN.InitHidden()
}

// Encode returns the top-layer hidden state at every position and the final
// state of every layer. An empty sequence yields no outputs and returns h0
// unchanged as the final state.
func (e *Encoder) Encode(tape *autograd.Tape, tokens []int, h0 []*autograd.Node) ([]*autograd.Node, []*autograd.Node, error) {
	if len(h0) != len(e.RNN.Cells) {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrHiddenLayers, len(h0), len(e.RNN.Cells))
	}
	outputs := make([]*autograd.Node, 0, len(tokens))
	hidden := h0
	for pos, tok := range tokens {
		if tok < 0 || tok >= e.VocabSize {
			return nil, nil, fmt.Errorf("%w: %d at position %d", ErrTokenOutOfRange, tok, pos)
		}
		x := tape.Row(e.Embedding, tok)
		hidden = e.RNN.Step(tape, x, hidden)
		outputs = append(outputs, hidden[len(hidden)-1])
	}
	return outputs, hidden, nil
}

func (e *Encoder) Parameters() []*autograd.Node {
	return append([]*autograd.Node{e.Embedding}, e.RNN.Parameters()...)
}
