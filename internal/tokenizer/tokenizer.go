package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/23skdu/longbow-seq2seq/internal/metrics"
)

const (
	// NumChars is the size of the character range (ASCII).
	NumChars = 128
	// EOS ends every training target and stops translation.
	EOS = NumChars
	// SOS is fed to the decoder as its first input. It is never rendered.
	SOS = NumChars + 1
	// VocabSize counts characters plus both markers.
	VocabSize = NumChars + 2
)

var (
	ErrOutOfVocabulary = errors.New("character outside vocabulary")
	ErrNotDecodable    = errors.New("index is not a character")
)

// Codec maps ASCII characters to their code points and back.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

// Encode returns the index of every character in s, optionally followed by
// EOS. Any rune at or above NumChars is rejected rather than wrapped.
func (c *Codec) Encode(s string, appendEOS bool) ([]int, error) {
	n := len(s)
	if appendEOS {
		n++
	}
	ids := make([]int, 0, n)
	for pos, r := range s {
		if r < 0 || r >= NumChars {
			metrics.RecordValidationError("encode", "out_of_vocabulary")
			return nil, fmt.Errorf("%w: %q at byte %d", ErrOutOfVocabulary, r, pos)
		}
		ids = append(ids, int(r))
	}
	if appendEOS {
		ids = append(ids, EOS)
	}
	metrics.RecordTokenizerEncode(len(ids))
	return ids, nil
}

// Decode returns the character for id. EOS, SOS and anything outside the
// character range fail.
func (c *Codec) Decode(id int) (byte, error) {
	if id < 0 || id >= NumChars {
		metrics.RecordValidationError("decode", "not_a_character")
		return 0, fmt.Errorf("%w: %d", ErrNotDecodable, id)
	}
	return byte(id), nil
}

func (c *Codec) DecodeAll(ids []int) (string, error) {
	var sb strings.Builder
	sb.Grow(len(ids))
	for _, id := range ids {
		ch, err := c.Decode(id)
		if err != nil {
			return "", err
		}
		sb.WriteByte(ch)
	}
	return sb.String(), nil
}

// Validate reports whether every character of s is encodable.
func (c *Codec) Validate(s string) error {
	for pos, r := range s {
		if r >= NumChars {
			return fmt.Errorf("%w: %q at byte %d", ErrOutOfVocabulary, r, pos)
		}
	}
	return nil
}
