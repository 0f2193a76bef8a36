package optim

import (
	"math"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"gonum.org/v1/gonum/floats"
)

// Adam keeps first and second moment estimates per parameter and applies
// bias-corrected updates in place:
//
//	p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p)
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	params []*autograd.Node
	m      [][]float64
	v      [][]float64
	t      int
}

func NewAdam(params []*autograd.Node, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	a := &Adam{
		LR:          lr,
		Beta1:       beta1,
		Beta2:       beta2,
		Eps:         eps,
		WeightDecay: weightDecay,
		params:      params,
		m:           make([][]float64, len(params)),
		v:           make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, p.Len())
		a.v[i] = make([]float64, p.Len())
	}
	return a
}

// Steps is the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.t
}

func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one update to every parameter from its accumulated gradient.
func (a *Adam) Step() {
	a.t++
	c1 := 1.0 / (1.0 - math.Pow(a.Beta1, float64(a.t)))
	c2 := 1.0 / (1.0 - math.Pow(a.Beta2, float64(a.t)))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			mhat := m[j] * c1
			vhat := v[j] * c2
			update := mhat/(math.Sqrt(vhat)+a.Eps) + a.WeightDecay*p.Value[j]
			p.Value[j] -= a.LR * update
		}
	}
}

// GradNorm is the global L2 norm over all parameter gradients.
func GradNorm(params []*autograd.Node) float64 {
	sum := 0.0
	for _, p := range params {
		n := floats.Norm(p.Grad, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales gradients so their global norm is at most maxNorm.
// It returns the norm before clipping and whether rescaling happened.
// maxNorm <= 0 leaves gradients untouched.
func ClipGradNorm(params []*autograd.Node, maxNorm float64) (float64, bool) {
	norm := GradNorm(params)
	if maxNorm <= 0 || norm <= maxNorm || norm == 0 {
		return norm, false
	}
	scale := maxNorm / norm
	for _, p := range params {
		floats.Scale(scale, p.Grad)
	}
	return norm, true
}
