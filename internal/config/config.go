package config

import (
	"fmt"
	"strings"
)

type AttentionMethod string

const (
	AttentionDot     AttentionMethod = "dot"
	AttentionGeneral AttentionMethod = "general"
	AttentionConcat  AttentionMethod = "concat"
)

type Config struct {
	HiddenSize int
	Layers     int
	Attention  AttentionMethod

	LearningRate float64
	Beta1        float64
	Beta2        float64
	Eps          float64
	WeightDecay  float64
	ClipNorm     float64 // 0 disables clipping

	Epochs    int
	BatchSize int

	MaxLength   int
	Temperature float64
	DefaultSeed string

	// Seed drives weight init, shuffling and sampling. 0 means time based.
	Seed int64

	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

func (c *Config) Validate() error {
	if c.HiddenSize <= 0 {
		return fmt.Errorf("invalid hidden_size: %d (must be positive)", c.HiddenSize)
	}
	if c.Layers <= 0 {
		return fmt.Errorf("invalid layers: %d (must be positive)", c.Layers)
	}
	switch c.GetAttention() {
	case AttentionDot, AttentionGeneral, AttentionConcat:
	default:
		return fmt.Errorf("invalid attention: %q (want dot, general or concat)", c.Attention)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("invalid learning_rate: %g (must be positive)", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("invalid beta1: %g (must be in [0, 1))", c.Beta1)
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("invalid beta2: %g (must be in [0, 1))", c.Beta2)
	}
	if c.Eps <= 0 {
		return fmt.Errorf("invalid eps: %g (must be positive)", c.Eps)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("invalid weight_decay: %g (must be non-negative)", c.WeightDecay)
	}
	if c.ClipNorm < 0 {
		return fmt.Errorf("invalid clip_norm: %g (must be non-negative)", c.ClipNorm)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("invalid epochs: %d (must be positive)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d (must be positive)", c.BatchSize)
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("invalid max_length: %d (must be positive)", c.MaxLength)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("invalid temperature: %g (must be non-negative)", c.Temperature)
	}
	return nil
}

// GetAttention normalizes the configured scoring method.
func (c *Config) GetAttention() AttentionMethod {
	return AttentionMethod(strings.ToLower(strings.TrimSpace(string(c.Attention))))
}

// IsGreedy reports whether translation always picks the top character.
func (c *Config) IsGreedy() bool {
	return c.Temperature == 0
}

func Default() Config {
	return Config{
		HiddenSize: 128,
		Layers:     1,
		Attention:  AttentionGeneral,

		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Eps:          1e-8,

		Epochs:    100,
		BatchSize: 32,

		MaxLength:   100,
		Temperature: 0.9,
		DefaultSeed: "thisissungkim.iloveyou.",

		LogLevel:    "info",
		LogFormat:   "console",
		MetricsAddr: ":9090",
	}
}
