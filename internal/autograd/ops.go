package autograd

import (
	"fmt"
	"math"

	"github.com/23skdu/longbow-seq2seq/internal/numeric"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func sameLen(op string, a, b *Node) {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("autograd: %s size mismatch %d != %d", op, a.Len(), b.Len()))
	}
}

// Row looks up row idx of table as a vector (embedding lookup).
func (t *Tape) Row(table *Node, idx int) *Node {
	if idx < 0 || idx >= table.Rows {
		panic(fmt.Sprintf("autograd: Row index %d out of range [0, %d)", idx, table.Rows))
	}
	c := table.Cols
	out := newNode(c, 1)
	copy(out.Value, table.Value[idx*c:(idx+1)*c])
	t.record(func() {
		floats.Add(table.Grad[idx*c:(idx+1)*c], out.Grad)
	})
	return out
}

// MatVec computes w·x.
func (t *Tape) MatVec(w, x *Node) *Node {
	return t.affine(w, nil, x)
}

// Linear computes w·x + b.
func (t *Tape) Linear(w, b, x *Node) *Node {
	return t.affine(w, b, x)
}

func (t *Tape) affine(w, b, x *Node) *Node {
	if w.Cols != x.Len() {
		panic(fmt.Sprintf("autograd: MatVec %dx%d by %d", w.Rows, w.Cols, x.Len()))
	}
	out := newNode(w.Rows, 1)
	out.vec().MulVec(w.matrix(), x.vec())
	if b != nil {
		sameLen("Linear bias", out, b)
		floats.Add(out.Value, b.Value)
	}
	t.record(func() {
		g := out.gradVec()
		gw := w.gradMatrix()
		gw.RankOne(gw, 1, g, x.vec())

		var gx mat.VecDense
		gx.MulVec(w.matrix().T(), g)
		floats.Add(x.Grad, gx.RawVector().Data)

		if b != nil {
			floats.Add(b.Grad, out.Grad)
		}
	})
	return out
}

func (t *Tape) Add(a, b *Node) *Node {
	sameLen("Add", a, b)
	out := newNode(a.Rows, a.Cols)
	floats.AddTo(out.Value, a.Value, b.Value)
	t.record(func() {
		floats.Add(a.Grad, out.Grad)
		floats.Add(b.Grad, out.Grad)
	})
	return out
}

// Mul is the elementwise product.
func (t *Tape) Mul(a, b *Node) *Node {
	sameLen("Mul", a, b)
	out := newNode(a.Rows, a.Cols)
	floats.MulTo(out.Value, a.Value, b.Value)
	t.record(func() {
		for i, g := range out.Grad {
			a.Grad[i] += g * b.Value[i]
			b.Grad[i] += g * a.Value[i]
		}
	})
	return out
}

func (t *Tape) Sigmoid(x *Node) *Node {
	out := newNode(x.Rows, x.Cols)
	for i, v := range x.Value {
		out.Value[i] = 1 / (1 + math.Exp(-v))
	}
	t.record(func() {
		for i, g := range out.Grad {
			y := out.Value[i]
			x.Grad[i] += g * y * (1 - y)
		}
	})
	return out
}

func (t *Tape) Tanh(x *Node) *Node {
	out := newNode(x.Rows, x.Cols)
	for i, v := range x.Value {
		out.Value[i] = math.Tanh(v)
	}
	t.record(func() {
		for i, g := range out.Grad {
			y := out.Value[i]
			x.Grad[i] += g * (1 - y*y)
		}
	})
	return out
}

// Blend computes (1-z)⊙a + z⊙b, the GRU state interpolation.
func (t *Tape) Blend(z, a, b *Node) *Node {
	sameLen("Blend", z, a)
	sameLen("Blend", z, b)
	out := newNode(a.Rows, a.Cols)
	for i := range out.Value {
		out.Value[i] = (1-z.Value[i])*a.Value[i] + z.Value[i]*b.Value[i]
	}
	t.record(func() {
		for i, g := range out.Grad {
			z.Grad[i] += g * (b.Value[i] - a.Value[i])
			a.Grad[i] += g * (1 - z.Value[i])
			b.Grad[i] += g * z.Value[i]
		}
	})
	return out
}

// Concat stacks a on top of b.
func (t *Tape) Concat(a, b *Node) *Node {
	na := a.Len()
	out := newNode(na+b.Len(), 1)
	copy(out.Value, a.Value)
	copy(out.Value[na:], b.Value)
	t.record(func() {
		floats.Add(a.Grad, out.Grad[:na])
		floats.Add(b.Grad, out.Grad[na:])
	})
	return out
}

// Dot returns the scalar a·b.
func (t *Tape) Dot(a, b *Node) *Node {
	sameLen("Dot", a, b)
	out := newNode(1, 1)
	out.Value[0] = floats.Dot(a.Value, b.Value)
	t.record(func() {
		g := out.Grad[0]
		floats.AddScaled(a.Grad, g, b.Value)
		floats.AddScaled(b.Grad, g, a.Value)
	})
	return out
}

// Stack gathers scalar nodes into one vector.
func (t *Tape) Stack(scalars []*Node) *Node {
	out := newNode(len(scalars), 1)
	for i, s := range scalars {
		out.Value[i] = s.Scalar()
	}
	t.record(func() {
		for i, s := range scalars {
			s.Grad[0] += out.Grad[i]
		}
	})
	return out
}

func (t *Tape) Softmax(x *Node) *Node {
	out := newNode(x.Rows, x.Cols)
	copy(out.Value, x.Value)
	numeric.Softmax(out.Value)
	t.record(func() {
		dot := floats.Dot(out.Grad, out.Value)
		for i, y := range out.Value {
			x.Grad[i] += y * (out.Grad[i] - dot)
		}
	})
	return out
}

// WeightedSum returns Σ w[i]·vs[i].
func (t *Tape) WeightedSum(w *Node, vs []*Node) *Node {
	if len(vs) == 0 || w.Len() != len(vs) {
		panic(fmt.Sprintf("autograd: WeightedSum of %d weights over %d vectors", w.Len(), len(vs)))
	}
	out := newNode(vs[0].Len(), 1)
	for i, v := range vs {
		sameLen("WeightedSum", out, v)
		floats.AddScaled(out.Value, w.Value[i], v.Value)
	}
	t.record(func() {
		for i, v := range vs {
			w.Grad[i] += floats.Dot(out.Grad, v.Value)
			floats.AddScaled(v.Grad, w.Value[i], out.Grad)
		}
	})
	return out
}

// CrossEntropy is -log softmax(logits)[target] as a scalar node.
func (t *Tape) CrossEntropy(logits *Node, target int) *Node {
	if target < 0 || target >= logits.Len() {
		panic(fmt.Sprintf("autograd: CrossEntropy target %d out of range [0, %d)", target, logits.Len()))
	}
	out := newNode(1, 1)
	out.Value[0] = numeric.LogSumExp(logits.Value) - logits.Value[target]
	t.record(func() {
		probs := make([]float64, logits.Len())
		copy(probs, logits.Value)
		numeric.Softmax(probs)
		probs[target] -= 1
		floats.AddScaled(logits.Grad, out.Grad[0], probs)
	})
	return out
}
