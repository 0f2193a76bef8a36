package autograd

import (
	"errors"
	"fmt"
)

var (
	ErrNotScalar = errors.New("autograd: backward needs a scalar loss")
	ErrNoTape    = errors.New("autograd: backward on a nil tape")
)

// Tape records backward closures in forward order.
type Tape struct {
	backward []func()
}

func NewTape() *Tape {
	return &Tape{}
}

func (t *Tape) record(fn func()) {
	if t == nil {
		return
	}
	t.backward = append(t.backward, fn)
}

// Recording reports whether ops on t build a graph.
func (t *Tape) Recording() bool {
	return t != nil
}

// Len is the number of recorded ops.
func (t *Tape) Len() int {
	if t == nil {
		return 0
	}
	return len(t.backward)
}

// Backward seeds d(loss)/d(loss) = 1 and propagates to every node that
// contributed to loss. Gradients accumulate into Node.Grad, so parameters
// must be zeroed by the caller between steps. The tape is emptied.
func (t *Tape) Backward(loss *Node) error {
	if !t.Recording() {
		return ErrNoTape
	}
	if loss.Len() != 1 {
		return fmt.Errorf("%w: got %d elements", ErrNotScalar, loss.Len())
	}
	loss.Grad[0] += 1
	for i := len(t.backward) - 1; i >= 0; i-- {
		t.backward[i]()
	}
	t.backward = nil
	return nil
}
