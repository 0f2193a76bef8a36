package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TrainStepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seq2seq_train_steps_total",
		Help: "The total number of optimizer steps taken",
	})

	TrainTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seq2seq_train_tokens_total",
		Help: "The total number of target tokens trained on",
	})

	TrainLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seq2seq_train_loss",
		Help: "Average per-token loss of the most recent training step",
	})

	TrainStepDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "seq2seq_train_step_duration_seconds",
		Help: "Duration of one training step (forward, backward, update)",
	})

	TrainEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seq2seq_train_epoch",
		Help: "Current training epoch",
	})

	GradientNorm = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seq2seq_gradient_norm",
		Help:    "Global L2 norm of the gradients before the update",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 50, 100, 1000},
	})

	GradientClipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seq2seq_gradient_clipped_total",
		Help: "Count of steps whose gradients were rescaled by clipping",
	})

	ParameterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seq2seq_parameters",
		Help: "Number of trainable scalars in the model",
	})

	TranslateTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seq2seq_translate_tokens_total",
		Help: "The total number of characters generated",
	})

	TranslateDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "seq2seq_translate_duration_seconds",
		Help: "Duration of translation calls",
	})

	TranslateStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seq2seq_translate_stops_total",
		Help: "How translations ended",
	}, []string{"reason"})

	SourceLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seq2seq_source_length_chars",
		Help:    "Distribution of encoded source lengths",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})

	AttentionEntropy = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seq2seq_attention_entropy",
		Help:    "Entropy of attention weights per decode step",
		Buckets: []float64{0, 0.1, 0.5, 1.0, 1.5, 2.0, 3.0, 4.0, 5.0},
	})

	SamplingTemperature = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seq2seq_sampling_temperature",
		Help:    "Temperature values used in sampling",
		Buckets: []float64{0, 0.1, 0.3, 0.5, 0.7, 0.9, 1.0, 1.5, 2.0},
	})

	SamplingTopTokenProbability = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seq2seq_sampling_top_token_probability",
		Help:    "Probability mass on top token after temperature scaling",
		Buckets: []float64{0, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1.0},
	})

	NumericalInstability = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seq2seq_numerical_instability_total",
		Help: "Total number of NaN/Inf values detected",
	}, []string{"tensor", "type"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seq2seq_validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})

	TokenizerEncodeLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seq2seq_tokenizer_encode_length",
		Help:    "Length of encoded token sequences",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})

	DatasetPairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seq2seq_dataset_pairs",
		Help: "Number of (source, target) pairs loaded",
	})
)

// RecordTrainStep records one optimizer step over a target of the given length.
func RecordTrainStep(avgLoss float64, targetLen int, duration time.Duration) {
	TrainStepsTotal.Inc()
	TrainTokensTotal.Add(float64(targetLen))
	TrainLoss.Set(avgLoss)
	TrainStepDuration.Observe(duration.Seconds())
}

func RecordEpoch(epoch int) {
	TrainEpoch.Set(float64(epoch))
}

// RecordGradientNorm records the pre-update gradient norm and whether it was clipped
func RecordGradientNorm(norm float64, clipped bool) {
	GradientNorm.Observe(norm)
	if clipped {
		GradientClipped.Inc()
	}
}

func RecordParameterCount(n int) {
	ParameterCount.Set(float64(n))
}

// RecordTranslation records a finished translation and why it stopped
// ("eos" or "max_length").
func RecordTranslation(chars int, reason string, duration time.Duration) {
	TranslateTokensTotal.Add(float64(chars))
	TranslateStops.WithLabelValues(reason).Inc()
	TranslateDuration.Observe(duration.Seconds())
}

func RecordSourceLength(n int) {
	SourceLength.Observe(float64(n))
}

func RecordAttentionEntropy(entropy float64) {
	AttentionEntropy.Observe(entropy)
}

// RecordSampling records temperature and the top token probability of one draw
func RecordSampling(temperature, topProb float64) {
	SamplingTemperature.Observe(temperature)
	SamplingTopTokenProbability.Observe(topProb)
}

func RecordNumericalInstability(name string, nanCount, infCount int) {
	if nanCount > 0 {
		NumericalInstability.WithLabelValues(name, "nan").Add(float64(nanCount))
	}
	if infCount > 0 {
		NumericalInstability.WithLabelValues(name, "inf").Add(float64(infCount))
	}
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordTokenizerEncode records tokenizer encoding metrics
func RecordTokenizerEncode(length int) {
	TokenizerEncodeLength.Observe(float64(length))
}

func RecordDatasetPairs(n int) {
	DatasetPairs.Set(float64(n))
}
