package seq2seq

import (
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/autograd"
	"github.com/23skdu/longbow-seq2seq/internal/config"
)

// Model pairs an encoder with its attention decoder. Both share the hidden
// width so the encoder's final state can seed the decoder directly.
type Model struct {
	Encoder *Encoder
	Decoder *Decoder
}

func NewModel(cfg config.Config, vocab int, src rand.Source) (*Model, error) {
	enc := NewEncoder(vocab, cfg.HiddenSize, cfg.Layers, src)
	dec, err := NewDecoder(cfg.GetAttention(), cfg.HiddenSize, vocab, cfg.Layers, src)
	if err != nil {
		return nil, err
	}
	return &Model{Encoder: enc, Decoder: dec}, nil
}

// Parameters lists encoder then decoder parameters; the optimizer updates
// them jointly.
func (m *Model) Parameters() []*autograd.Node {
	return append(m.Encoder.Parameters(), m.Decoder.Parameters()...)
}
