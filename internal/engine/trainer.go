package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/23skdu/longbow-seq2seq/internal/dataset"
	"github.com/23skdu/longbow-seq2seq/internal/logger"
	"github.com/23skdu/longbow-seq2seq/internal/metrics"
)

var ErrNoData = errors.New("supplier has no pairs")

// Observer is told about every step and finished epoch.
type Observer interface {
	RecordStep(loss float64, duration time.Duration)
	RecordEpoch(epoch int)
}

// Trainer runs epochs of single-pair updates over a supplier and reports
// progress after every batch.
type Trainer struct {
	Session  *Session
	Out      io.Writer
	Observer Observer // optional

	log *logger.Logger
}

func NewTrainer(s *Session, out io.Writer) *Trainer {
	if out == nil {
		out = io.Discard
	}
	return &Trainer{
		Session: s,
		Out:     out,
		log:     logger.Log.With("component", "trainer"),
	}
}

// Run trains for Config.Epochs epochs. Cancellation is checked between
// examples; an example that has started always finishes.
func (t *Trainer) Run(ctx context.Context, data dataset.Supplier) error {
	if data.Len() == 0 {
		return ErrNoData
	}
	cfg := t.Session.Config
	t.log.Info("Training started", "epochs", cfg.Epochs, "pairs", data.Len(), "batch_size", cfg.BatchSize)
	start := time.Now()

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		for i, batch := range data.Batches(epoch) {
			if len(batch) == 0 {
				continue
			}
			var loss float64
			for _, p := range batch {
				if err := ctx.Err(); err != nil {
					t.log.Warn("Training interrupted", "epoch", epoch, "batch", i, "error", err)
					return err
				}
				stepStart := time.Now()
				l, err := t.Session.TrainStep(p.Source, p.Target)
				if err != nil {
					return fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
				}
				if t.Observer != nil {
					t.Observer.RecordStep(l, time.Since(stepStart))
				}
				loss = l
			}
			if err := t.report(epoch, cfg.Epochs, loss, batch[0].Source); err != nil {
				return err
			}
		}
		metrics.RecordEpoch(epoch)
		if t.Observer != nil {
			t.Observer.RecordEpoch(epoch)
		}
		t.log.Debug("Epoch finished", "epoch", epoch, "steps", t.Session.Optim.Steps())
	}

	t.log.Info("Training finished", "steps", t.Session.Optim.Steps(), "duration", time.Since(start).String())
	return nil
}

// report prints the last loss of the batch, then a sample translation of
// the batch's first source and one of the fixed default seed.
func (t *Trainer) report(epoch, epochs int, loss float64, src string) error {
	cfg := t.Session.Config
	fmt.Fprintf(t.Out, "[(%d %d%%) %.4f]\n", epoch, epoch*100/epochs, loss)
	for _, s := range []string{src, cfg.DefaultSeed} {
		if s == "" {
			continue
		}
		out, err := t.Session.Translate(s, cfg.MaxLength, cfg.Temperature)
		if err != nil {
			return fmt.Errorf("translate %q: %w", s, err)
		}
		fmt.Fprintf(t.Out, "%s -> %s\n\n", s, out)
	}
	return nil
}
