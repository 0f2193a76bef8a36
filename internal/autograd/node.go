// Package autograd is a small reverse-mode automatic differentiation
// engine over dense float64 vectors and matrices.
//
// Every op computes its forward value immediately and, when given a
// non-nil *Tape, records a closure that pushes the output gradient back to
// its inputs. Tape.Backward replays those closures newest first. Passing a
// nil tape runs the same op in inference mode.
package autograd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Node is a value in the computation together with the gradient of the
// loss with respect to it. Matrices are row-major; vectors have Cols == 1.
type Node struct {
	Value []float64
	Grad  []float64
	Rows  int
	Cols  int
}

func newNode(rows, cols int) *Node {
	return &Node{
		Value: make([]float64, rows*cols),
		Grad:  make([]float64, rows*cols),
		Rows:  rows,
		Cols:  cols,
	}
}

// NewParam allocates a trainable rows×cols matrix filled by sample.
func NewParam(rows, cols int, sample func() float64) *Node {
	n := newNode(rows, cols)
	if sample != nil {
		for i := range n.Value {
			n.Value[i] = sample()
		}
	}
	return n
}

// NewVector wraps values (without copying) as a column vector.
func NewVector(values []float64) *Node {
	return &Node{
		Value: values,
		Grad:  make([]float64, len(values)),
		Rows:  len(values),
		Cols:  1,
	}
}

// Zeros returns a zero column vector of length n.
func Zeros(n int) *Node {
	return newNode(n, 1)
}

func (n *Node) Len() int {
	return len(n.Value)
}

// Scalar returns the only element of a 1×1 node.
func (n *Node) Scalar() float64 {
	if len(n.Value) != 1 {
		panic(fmt.Sprintf("autograd: Scalar on node of size %d", len(n.Value)))
	}
	return n.Value[0]
}

func (n *Node) ZeroGrad() {
	clear(n.Grad)
}

func (n *Node) matrix() *mat.Dense {
	return mat.NewDense(n.Rows, n.Cols, n.Value)
}

func (n *Node) gradMatrix() *mat.Dense {
	return mat.NewDense(n.Rows, n.Cols, n.Grad)
}

func (n *Node) vec() *mat.VecDense {
	return mat.NewVecDense(len(n.Value), n.Value)
}

func (n *Node) gradVec() *mat.VecDense {
	return mat.NewVecDense(len(n.Grad), n.Grad)
}

// CountParams sums the number of scalars across params.
func CountParams(params []*Node) int {
	total := 0
	for _, p := range params {
		total += p.Len()
	}
	return total
}
