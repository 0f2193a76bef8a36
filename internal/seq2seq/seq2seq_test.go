package seq2seq

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"github.com/23skdu/longbow-seq2seq/internal/config"
)

var methods = []config.AttentionMethod{
	config.AttentionDot,
	config.AttentionGeneral,
	config.AttentionConcat,
}

func smallModel(t *testing.T, method config.AttentionMethod, hidden, vocab, layers int) *Model {
	t.Helper()
	cfg := config.Default()
	cfg.HiddenSize = hidden
	cfg.Layers = layers
	cfg.Attention = method
	m, err := NewModel(cfg, vocab, rand.NewPCG(7, 11))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

func TestEncoderShapes(t *testing.T) {
	m := smallModel(t, config.AttentionGeneral, 6, 10, 2)

	outputs, final, err := m.Encoder.Encode(nil, []int{1, 2, 3, 4}, m.Encoder.InitHidden())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(outputs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(outputs))
	}
	for i, o := range outputs {
		if o.Len() != 6 {
			t.Errorf("output %d has width %d", i, o.Len())
		}
	}
	if len(final) != 2 {
		t.Fatalf("expected 2 layers of final state, got %d", len(final))
	}
	if final[1] != outputs[3] {
		t.Error("last output should be the top layer's final state")
	}
}

func TestEncoderEmptySequence(t *testing.T) {
	m := smallModel(t, config.AttentionGeneral, 4, 10, 1)
	h0 := m.Encoder.InitHidden()
	outputs, final, err := m.Encoder.Encode(nil, nil, h0)
	if err != nil {
		t.Fatalf("empty sequence should be legal: %v", err)
	}
	if len(outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(outputs))
	}
	if final[0] != h0[0] {
		t.Error("final state of empty sequence should be h0")
	}
}

func TestEncoderErrors(t *testing.T) {
	m := smallModel(t, config.AttentionGeneral, 4, 10, 1)
	if _, _, err := m.Encoder.Encode(nil, []int{3, 10}, m.Encoder.InitHidden()); !errors.Is(err, ErrTokenOutOfRange) {
		t.Errorf("expected ErrTokenOutOfRange, got %v", err)
	}
	if _, _, err := m.Encoder.Encode(nil, []int{3}, nil); !errors.Is(err, ErrHiddenLayers) {
		t.Errorf("expected ErrHiddenLayers, got %v", err)
	}
}

func TestEncoderIsSequential(t *testing.T) {
	// Order matters: reversing the input changes the final state.
	m := smallModel(t, config.AttentionGeneral, 5, 10, 1)
	_, a, _ := m.Encoder.Encode(nil, []int{1, 2, 3}, m.Encoder.InitHidden())
	_, b, _ := m.Encoder.Encode(nil, []int{3, 2, 1}, m.Encoder.InitHidden())
	same := true
	for i := range a[0].Value {
		if a[0].Value[i] != b[0].Value[i] {
			same = false
		}
	}
	if same {
		t.Error("encoder final state should depend on order")
	}
}

func TestAttentionWeightsDistribution(t *testing.T) {
	for _, method := range methods {
		t.Run(string(method), func(t *testing.T) {
			m := smallModel(t, method, 8, 12, 1)
			enc, hidden, err := m.Encoder.Encode(nil, []int{1, 5, 7, 2, 9}, m.Encoder.InitHidden())
			if err != nil {
				t.Fatal(err)
			}
			ctx := m.Decoder.InitContext()
			input := 11
			for step := 0; step < 4; step++ {
				res, err := m.Decoder.Step(nil, input, ctx, hidden, enc)
				if err != nil {
					t.Fatalf("Step: %v", err)
				}
				if res.Attention.Len() != len(enc) {
					t.Fatalf("expected %d weights, got %d", len(enc), res.Attention.Len())
				}
				sum := 0.0
				for _, w := range res.Attention.Value {
					if w < 0 || w > 1 {
						t.Errorf("weight %v outside [0, 1]", w)
					}
					sum += w
				}
				if math.Abs(sum-1) > 1e-9 {
					t.Errorf("step %d: weights sum to %v", step, sum)
				}
				ctx, hidden, input = res.Context, res.Hidden, step+1
			}
		})
	}
}

func TestAttentionSinglePosition(t *testing.T) {
	for _, method := range methods {
		t.Run(string(method), func(t *testing.T) {
			m := smallModel(t, method, 6, 12, 1)
			enc, hidden, err := m.Encoder.Encode(nil, []int{4}, m.Encoder.InitHidden())
			if err != nil {
				t.Fatal(err)
			}
			ctx := m.Decoder.InitContext()
			for step := 0; step < 3; step++ {
				res, err := m.Decoder.Step(nil, step, ctx, hidden, enc)
				if err != nil {
					t.Fatal(err)
				}
				if res.Attention.Value[0] != 1.0 {
					t.Errorf("step %d: expected weight 1.0, got %v", step, res.Attention.Value[0])
				}
				for i, v := range res.Context.Value {
					if math.Abs(v-enc[0].Value[i]) > 1e-12 {
						t.Fatalf("context should equal the only encoder output")
					}
				}
				ctx, hidden = res.Context, res.Hidden
			}
		})
	}
}

func TestDecoderStepShapes(t *testing.T) {
	m := smallModel(t, config.AttentionGeneral, 6, 12, 2)
	enc, hidden, _ := m.Encoder.Encode(nil, []int{1, 2}, m.Encoder.InitHidden())
	res, err := m.Decoder.Step(nil, 3, m.Decoder.InitContext(), hidden, enc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Logits.Len() != 12 {
		t.Errorf("expected 12 logits, got %d", res.Logits.Len())
	}
	if res.Context.Len() != 6 {
		t.Errorf("expected context width 6, got %d", res.Context.Len())
	}
	if len(res.Hidden) != 2 || res.Hidden[1].Len() != 6 {
		t.Errorf("unexpected hidden shape")
	}
}

func TestDecoderStepErrors(t *testing.T) {
	m := smallModel(t, config.AttentionGeneral, 4, 8, 1)
	enc, hidden, _ := m.Encoder.Encode(nil, []int{1}, m.Encoder.InitHidden())
	ctx := m.Decoder.InitContext()

	if _, err := m.Decoder.Step(nil, 1, ctx, hidden, nil); !errors.Is(err, ErrEmptyEncoderOutputs) {
		t.Errorf("expected ErrEmptyEncoderOutputs, got %v", err)
	}
	if _, err := m.Decoder.Step(nil, 8, ctx, hidden, enc); !errors.Is(err, ErrTokenOutOfRange) {
		t.Errorf("expected ErrTokenOutOfRange, got %v", err)
	}
	if _, err := m.Decoder.Step(nil, 1, ctx, nil, enc); !errors.Is(err, ErrHiddenLayers) {
		t.Errorf("expected ErrHiddenLayers, got %v", err)
	}
}

func TestUnknownAttentionMethod(t *testing.T) {
	if _, err := NewAttention("location", 4, rand.NewPCG(1, 1)); !errors.Is(err, ErrUnknownAttention) {
		t.Errorf("expected ErrUnknownAttention, got %v", err)
	}

	a := &Attention{Method: "location"}
	h := autograd.NewVector([]float64{0.1, 0.2})
	enc := []*autograd.Node{autograd.NewVector([]float64{0.3, 0.4})}
	w, err := a.Weights(nil, h, enc)
	if !errors.Is(err, ErrUnknownAttention) {
		t.Errorf("Weights: expected ErrUnknownAttention, got %v", err)
	}
	if w != nil {
		t.Error("Weights should return no node on error")
	}
}

func TestParameterCounts(t *testing.T) {
	const h, v = 4, 10
	gru := func(in int) int { return 3 * (h*in + h*h + 2*h) }
	tests := []struct {
		method config.AttentionMethod
		attn   int
	}{
		{config.AttentionDot, 0},
		{config.AttentionGeneral, h*h + h},
		{config.AttentionConcat, h*2*h + h + h},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			m := smallModel(t, tt.method, h, v, 1)
			want := v*h + gru(h) + // encoder
				v*h + gru(2*h) + tt.attn + v*2*h + v // decoder
			if got := autograd.CountParams(m.Parameters()); got != want {
				t.Errorf("expected %d parameters, got %d", want, got)
			}
		})
	}
}

// sequenceLoss is the teacher-forced loss of one pair on a tiny model.
func sequenceLoss(m *Model, tape *autograd.Tape, src, tgt []int, sos int) *autograd.Node {
	enc, hidden, err := m.Encoder.Encode(tape, src, m.Encoder.InitHidden())
	if err != nil {
		panic(err)
	}
	ctx := m.Decoder.InitContext()
	var loss *autograd.Node
	for c := range tgt {
		input := sos
		if c > 0 {
			input = tgt[c-1]
		}
		res, err := m.Decoder.Step(tape, input, ctx, hidden, enc)
		if err != nil {
			panic(err)
		}
		l := tape.CrossEntropy(res.Logits, tgt[c])
		if loss == nil {
			loss = l
		} else {
			loss = tape.Add(loss, l)
		}
		ctx, hidden = res.Context, res.Hidden
	}
	return loss
}

func TestEndToEndGradients(t *testing.T) {
	for _, method := range methods {
		t.Run(string(method), func(t *testing.T) {
			m := smallModel(t, method, 3, 6, 2)
			src, tgt := []int{1, 2, 3}, []int{2, 0, 4}
			params := m.Parameters()

			for _, p := range params {
				p.ZeroGrad()
			}
			tape := autograd.NewTape()
			if err := tape.Backward(sequenceLoss(m, tape, src, tgt, 5)); err != nil {
				t.Fatal(err)
			}

			const eps = 1e-5
			for pi, p := range params {
				for i := range p.Value {
					orig := p.Value[i]
					p.Value[i] = orig + eps
					plus := sequenceLoss(m, nil, src, tgt, 5).Scalar()
					p.Value[i] = orig - eps
					minus := sequenceLoss(m, nil, src, tgt, 5).Scalar()
					p.Value[i] = orig

					numeric := (plus - minus) / (2 * eps)
					tol := 1e-6 + 1e-4*math.Max(math.Abs(numeric), math.Abs(p.Grad[i]))
					if math.Abs(numeric-p.Grad[i]) > tol {
						t.Fatalf("param %d elem %d: analytic %.8f numeric %.8f", pi, i, p.Grad[i], numeric)
					}
				}
			}
		})
	}
}
