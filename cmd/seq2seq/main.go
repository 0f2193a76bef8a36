package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/longbow-seq2seq/internal/config"
	"github.com/23skdu/longbow-seq2seq/internal/dataset"
	"github.com/23skdu/longbow-seq2seq/internal/engine"
	"github.com/23skdu/longbow-seq2seq/internal/logger"
	"github.com/23skdu/longbow-seq2seq/internal/monitoring"
)

var defaults = config.Default()

var (
	dataPath      = flag.String("data", "", "Path to a source<TAB>target file (built-in demo corpus if empty)")
	epochs        = flag.Int("epochs", defaults.Epochs, "Number of training epochs")
	batchSize     = flag.Int("batch", defaults.BatchSize, "Pairs per progress report")
	learningRate  = flag.Float64("lr", defaults.LearningRate, "Adam learning rate")
	hiddenSize    = flag.Int("hidden", defaults.HiddenSize, "Hidden size of encoder and decoder")
	layers        = flag.Int("layers", defaults.Layers, "Number of GRU layers")
	attention     = flag.String("attention", string(defaults.Attention), "Attention scoring: dot, general or concat")
	maxLength     = flag.Int("max-len", defaults.MaxLength, "Maximum characters per translation")
	temperature   = flag.Float64("temperature", defaults.Temperature, "Sampling temperature (0 = greedy)")
	seed          = flag.Int64("seed", defaults.Seed, "Random seed (0 = time based)")
	clipNorm      = flag.Float64("clip", defaults.ClipNorm, "Clip gradient L2 norm (0 = off)")
	logLevel      = flag.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	logFormat     = flag.String("log-format", defaults.LogFormat, "Log format: console or json")
	metricsAddr   = flag.String("metrics", defaults.MetricsAddr, "Address to serve /metrics, /health and /status (empty = off)")
	probe         = flag.Bool("probe", false, "Run a shape check on a tiny model and exit")
	showAttention = flag.String("show-attention", "", "After training, print the attention matrix for this source")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	if err := run(); err != nil {
		logger.Log.Error("seq2seq failed", "error", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred shutdown always happens.
func run() error {
	if *probe {
		rep, err := engine.Probe(uint64(*seed))
		if err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		rep.Print(os.Stdout)
		return nil
	}

	cfg := defaults
	cfg.Epochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.LearningRate = *learningRate
	cfg.HiddenSize = *hiddenSize
	cfg.Layers = *layers
	cfg.Attention = config.AttentionMethod(*attention)
	cfg.MaxLength = *maxLength
	cfg.Temperature = *temperature
	cfg.Seed = *seed
	cfg.ClipNorm = *clipNorm
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat
	cfg.MetricsAddr = *metricsAddr

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		return err
	}

	pairs := dataset.Demo()
	if *dataPath != "" {
		var err error
		if pairs, err = dataset.LoadTSV(*dataPath); err != nil {
			return fmt.Errorf("load dataset %s: %w", *dataPath, err)
		}
	}

	session, err := engine.NewSession(cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	data, err := dataset.NewMemory(pairs, cfg.BatchSize, session.Config.Seed)
	if err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}

	// Start Metrics Server
	monitor := monitoring.NewHealthMonitor()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := monitor.Start(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("Metrics server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := monitor.Stop(ctx); err != nil {
				logger.Log.Warn("Metrics server shutdown", "error", err)
			}
		}()
	}

	// Signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Log.Info("Interrupt received, finishing current example")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Printf("Training for %d epochs...\n", cfg.Epochs)
	trainer := engine.NewTrainer(session, os.Stdout)
	trainer.Observer = monitor
	if err := trainer.Run(ctx, data); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("training: %w", err)
	}

	if *showAttention != "" {
		tr, err := session.TranslateWithAttention(*showAttention, cfg.MaxLength, cfg.Temperature)
		if err != nil {
			return fmt.Errorf("translate %q: %w", *showAttention, err)
		}
		printAttention(tr)
	}
	return nil
}

// printAttention prints one row per generated character, one column per
// source character.
func printAttention(tr engine.Translation) {
	fmt.Printf("%s -> %s\n", tr.Source, tr.Output)
	fmt.Print("   ")
	for i := 0; i < len(tr.Source); i++ {
		fmt.Printf("    %c", tr.Source[i])
	}
	fmt.Println()
	for r, row := range tr.Attention {
		label := byte('$') // EOS step
		if r < len(tr.Output) {
			label = tr.Output[r]
		}
		fmt.Printf("%c: ", label)
		for _, w := range row {
			fmt.Printf(" %.2f", w)
		}
		fmt.Println()
	}
}
