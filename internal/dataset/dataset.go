package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/23skdu/longbow-seq2seq/internal/metrics"
	"github.com/23skdu/longbow-seq2seq/internal/tokenizer"
)

var ErrInvalidPair = errors.New("invalid pair")

// Pair is one training example.
type Pair struct {
	Source string
	Target string
}

// Supplier yields the batches of one epoch. Order may differ between
// epochs but must be reproducible for a given epoch.
type Supplier interface {
	Len() int
	Batches(epoch int) [][]Pair
}

// Validate rejects empty strings and characters outside the vocabulary.
func (p Pair) Validate() error {
	if p.Source == "" || p.Target == "" {
		return fmt.Errorf("%w: empty source or target", ErrInvalidPair)
	}
	codec := tokenizer.New()
	if err := codec.Validate(p.Source); err != nil {
		return fmt.Errorf("%w: source: %w", ErrInvalidPair, err)
	}
	if err := codec.Validate(p.Target); err != nil {
		return fmt.Errorf("%w: target: %w", ErrInvalidPair, err)
	}
	return nil
}

// Memory serves pairs held in memory, reshuffled every epoch.
type Memory struct {
	pairs     []Pair
	batchSize int
	seed      uint64
}

func NewMemory(pairs []Pair, batchSize int, seed int64) (*Memory, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch_size: %d (must be positive)", batchSize)
	}
	for i, p := range pairs {
		if err := p.Validate(); err != nil {
			metrics.RecordValidationError("dataset", "invalid_pair")
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
	}
	metrics.RecordDatasetPairs(len(pairs))
	return &Memory{
		pairs:     append([]Pair(nil), pairs...),
		batchSize: batchSize,
		seed:      uint64(seed),
	}, nil
}

func (m *Memory) Len() int {
	return len(m.pairs)
}

// Batches shuffles a copy of the pairs with a generator keyed on the seed
// and epoch, then cuts it into batches. The last batch may be short.
func (m *Memory) Batches(epoch int) [][]Pair {
	shuffled := append([]Pair(nil), m.pairs...)
	rng := rand.New(rand.NewPCG(m.seed, uint64(epoch)))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	batches := make([][]Pair, 0, (len(shuffled)+m.batchSize-1)/m.batchSize)
	for start := 0; start < len(shuffled); start += m.batchSize {
		end := min(start+m.batchSize, len(shuffled))
		batches = append(batches, shuffled[start:end])
	}
	return batches
}

// Demo is a small built-in corpus: each word maps to its reverse, which
// attention can learn by aligning to mirrored positions.
func Demo() []Pair {
	words := []string{
		"hello", "world", "attention", "encoder", "decoder",
		"sequence", "gradient", "longbow", "arrow", "quarrel",
		"thisissungkim.iloveyou.", "pytorch", "golang", "tensor", "sample",
	}
	pairs := make([]Pair, len(words))
	for i, w := range words {
		pairs[i] = Pair{Source: w, Target: reverse(w)}
	}
	return pairs
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
