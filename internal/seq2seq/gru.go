package seq2seq

import (
	"math"
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"gonum.org/v1/gonum/stat/distuv"
)

// uniform returns a sampler over U(-1/sqrt(fanIn), 1/sqrt(fanIn)).
func uniform(fanIn int, src rand.Source) func() float64 {
	bound := 1 / math.Sqrt(float64(fanIn))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	return dist.Rand
}

// GRUCell is one gated recurrent unit with separate input and hidden
// projections per gate (reset r, update z, candidate n):
//
//	r  = σ(Wir·x + bir + Whr·h + bhr)
//	z  = σ(Wiz·x + biz + Whz·h + bhz)
//	n  = tanh(Win·x + bin + r ⊙ (Whn·h + bhn))
//	h' = (1-z) ⊙ n + z ⊙ h
type GRUCell struct {
	Wir, Whr, Bir, Bhr *autograd.Node
	Wiz, Whz, Biz, Bhz *autograd.Node
	Win, Whn, Bin, Bhn *autograd.Node

	InputSize  int
	HiddenSize int
}

func NewGRUCell(input, hidden int, src rand.Source) *GRUCell {
	sample := uniform(hidden, src)
	p := func(rows, cols int) *autograd.Node { return autograd.NewParam(rows, cols, sample) }
	return &GRUCell{
		Wir: p(hidden, input), Whr: p(hidden, hidden), Bir: p(hidden, 1), Bhr: p(hidden, 1),
		Wiz: p(hidden, input), Whz: p(hidden, hidden), Biz: p(hidden, 1), Bhz: p(hidden, 1),
		Win: p(hidden, input), Whn: p(hidden, hidden), Bin: p(hidden, 1), Bhn: p(hidden, 1),

		InputSize:  input,
		HiddenSize: hidden,
	}
}

func (c *GRUCell) Step(tape *autograd.Tape, x, h *autograd.Node) *autograd.Node {
	r := tape.Sigmoid(tape.Add(tape.Linear(c.Wir, c.Bir, x), tape.Linear(c.Whr, c.Bhr, h)))
	z := tape.Sigmoid(tape.Add(tape.Linear(c.Wiz, c.Biz, x), tape.Linear(c.Whz, c.Bhz, h)))
	n := tape.Tanh(tape.Add(tape.Linear(c.Win, c.Bin, x), tape.Mul(r, tape.Linear(c.Whn, c.Bhn, h))))
	return tape.Blend(z, n, h)
}

func (c *GRUCell) Parameters() []*autograd.Node {
	return []*autograd.Node{
		c.Wir, c.Whr, c.Bir, c.Bhr,
		c.Wiz, c.Whz, c.Biz, c.Bhz,
		c.Win, c.Whn, c.Bin, c.Bhn,
	}
}

// GRU stacks cells; layer l>0 reads the new hidden state of layer l-1.
type GRU struct {
	Cells []*GRUCell
}

func NewGRU(input, hidden, layers int, src rand.Source) *GRU {
	g := &GRU{Cells: make([]*GRUCell, layers)}
	for l := range g.Cells {
		in := hidden
		if l == 0 {
			in = input
		}
		g.Cells[l] = NewGRUCell(in, hidden, src)
	}
	return g
}

// Step advances every layer by one position and returns the new states.
func (g *GRU) Step(tape *autograd.Tape, x *autograd.Node, hs []*autograd.Node) []*autograd.Node {
	next := make([]*autograd.Node, len(g.Cells))
	in := x
	for l, cell := range g.Cells {
		next[l] = cell.Step(tape, in, hs[l])
		in = next[l]
	}
	return next
}

// InitHidden returns one zero vector per layer.
func (g *GRU) InitHidden() []*autograd.Node {
	hs := make([]*autograd.Node, len(g.Cells))
	for l, cell := range g.Cells {
		hs[l] = autograd.Zeros(cell.HiddenSize)
	}
	return hs
}

func (g *GRU) Parameters() []*autograd.Node {
	var params []*autograd.Node
	for _, cell := range g.Cells {
		params = append(params, cell.Parameters()...)
	}
	return params
}
