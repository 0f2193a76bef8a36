package seq2seq

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"github.com/23skdu/longbow-seq2seq/internal/config"
)

var (
	ErrEmptyEncoderOutputs = errors.New("attention over empty encoder outputs")
	ErrUnknownAttention    = errors.New("unknown attention method")
)

// Attention scores a decoder state against every encoder output.
//
//	dot:     score_i = h · e_i
//	general: score_i = (W·h + b) · e_i
//	concat:  score_i = v · tanh(W·[h; e_i] + b)
type Attention struct {
	Method config.AttentionMethod
	W      *autograd.Node
	B      *autograd.Node
	V      *autograd.Node
}

func NewAttention(method config.AttentionMethod, hidden int, src rand.Source) (*Attention, error) {
	a := &Attention{Method: method}
	switch method {
	case config.AttentionDot:
	case config.AttentionGeneral:
		sample := uniform(hidden, src)
		a.W = autograd.NewParam(hidden, hidden, sample)
		a.B = autograd.NewParam(hidden, 1, sample)
	case config.AttentionConcat:
		sample := uniform(2*hidden, src)
		a.W = autograd.NewParam(hidden, 2*hidden, sample)
		a.B = autograd.NewParam(hidden, 1, sample)
		a.V = autograd.NewParam(hidden, 1, uniform(hidden, src))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttention, method)
	}
	return a, nil
}

// Weights returns softmax-normalized alignment weights, one per encoder
// output.
func (a *Attention) Weights(tape *autograd.Tape, h *autograd.Node, enc []*autograd.Node) (*autograd.Node, error) {
	if len(enc) == 0 {
		return nil, ErrEmptyEncoderOutputs
	}
	scores := make([]*autograd.Node, len(enc))
	switch a.Method {
	case config.AttentionDot:
		for i, e := range enc {
			scores[i] = tape.Dot(h, e)
		}
	case config.AttentionGeneral:
		q := tape.Linear(a.W, a.B, h)
		for i, e := range enc {
			scores[i] = tape.Dot(q, e)
		}
	case config.AttentionConcat:
		for i, e := range enc {
			energy := tape.Tanh(tape.Linear(a.W, a.B, tape.Concat(h, e)))
			scores[i] = tape.Dot(a.V, energy)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttention, a.Method)
	}
	return tape.Softmax(tape.Stack(scores)), nil
}

func (a *Attention) Parameters() []*autograd.Node {
	var params []*autograd.Node
	for _, p := range []*autograd.Node{a.W, a.B, a.V} {
		if p != nil {
			params = append(params, p)
		}
	}
	return params
}
