package analysis

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
	"github.com/cwbudde/algo-stackpg/periodogram/significance"
	"github.com/cwbudde/algo-stackpg/periodogram/stack"
)

// ErrInvalidConfig reports a configuration that fails validation.
var ErrInvalidConfig = errors.New("analysis: invalid configuration")

// DefaultThresholdFAP is the FAP level reported as Report.Threshold.
const DefaultThresholdFAP = 0.01

// Config holds every tunable of a run. It is passed by value and never
// shared between analyzers.
type Config struct {
	Operation stack.Operation

	// Grid derivation, see grid.Build.
	Oversampling   float64
	NyquistFactor  float64
	MinFrequency   float64
	MaxFrequency   float64
	MaxFrequencies int
	Spacing        grid.Spacing

	Normalization lombscargle.Normalization
	Method        lombscargle.Method

	FAPMethod           significance.Method
	BootstrapIterations int
	BootstrapMinPoints  int
	Seed                uint64
	// ThresholdFAP is the level converted to Report.Threshold.
	ThresholdFAP float64
	// IndividualSignificance also assesses and extracts peaks of every
	// single-dataset periodogram.
	IndividualSignificance bool

	PeakMinSeparation float64
	PeakMaxFAP        float64
	PeakLimit         int

	// DatasetWeights maps series labels to additive weights.
	DatasetWeights  map[string]float64
	Epsilon         float64
	Scaling         stack.Scaling
	NormalizeOutput bool

	// Workers bounds concurrent periodogram evaluations and bootstrap
	// iterations.
	Workers int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns additive stacking of variance-normalized
// periodograms with a 1000-fold bootstrap.
func DefaultConfig() Config {
	return Config{
		Operation:           stack.Additive,
		Oversampling:        grid.DefaultOversampling,
		NyquistFactor:       1,
		Spacing:             grid.Linear,
		Normalization:       lombscargle.NormVariance,
		Method:              lombscargle.MethodDirect,
		FAPMethod:           significance.MethodBootstrap,
		BootstrapIterations: significance.DefaultIterations,
		BootstrapMinPoints:  significance.DefaultMinPoints,
		Seed:                1,
		ThresholdFAP:        DefaultThresholdFAP,
		PeakMaxFAP:          1,
		Epsilon:             stack.DefaultEpsilon,
		Workers:             runtime.GOMAXPROCS(0),
	}
}

// NewConfig applies opts to DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithOperation sets the combination rule.
func WithOperation(op stack.Operation) Option {
	return func(cfg *Config) { cfg.Operation = op }
}

// WithOversampling sets the grid oversampling factor.
func WithOversampling(factor float64) Option {
	return func(cfg *Config) { cfg.Oversampling = factor }
}

// WithNyquistFactor scales the pseudo-Nyquist upper grid bound.
func WithNyquistFactor(factor float64) Option {
	return func(cfg *Config) { cfg.NyquistFactor = factor }
}

// WithFrequencyRange overrides the derived grid bounds. Zero keeps a bound.
func WithFrequencyRange(minFreq, maxFreq float64) Option {
	return func(cfg *Config) {
		cfg.MinFrequency = minFreq
		cfg.MaxFrequency = maxFreq
	}
}

// WithMaxFrequencies caps the grid size.
func WithMaxFrequencies(n int) Option {
	return func(cfg *Config) { cfg.MaxFrequencies = n }
}

// WithSpacing selects linear or logarithmic grids.
func WithSpacing(s grid.Spacing) Option {
	return func(cfg *Config) { cfg.Spacing = s }
}

// WithNormalization sets the power convention.
func WithNormalization(n lombscargle.Normalization) Option {
	return func(cfg *Config) { cfg.Normalization = n }
}

// WithMethod sets the periodogram algorithm.
func WithMethod(m lombscargle.Method) Option {
	return func(cfg *Config) { cfg.Method = m }
}

// WithFAPMethod selects analytic or bootstrap significance.
func WithFAPMethod(m significance.Method) Option {
	return func(cfg *Config) { cfg.FAPMethod = m }
}

// WithBootstrap sets iteration count and RNG seed of the bootstrap.
func WithBootstrap(iterations int, seed uint64) Option {
	return func(cfg *Config) {
		cfg.BootstrapIterations = iterations
		cfg.Seed = seed
	}
}

// WithBootstrapMinPoints sets the smallest series length accepted by the
// bootstrap.
func WithBootstrapMinPoints(n int) Option {
	return func(cfg *Config) { cfg.BootstrapMinPoints = n }
}

// WithThresholdFAP sets the level reported as Report.Threshold.
func WithThresholdFAP(fap float64) Option {
	return func(cfg *Config) { cfg.ThresholdFAP = fap }
}

// WithIndividualSignificance enables per-dataset significance and peaks.
func WithIndividualSignificance(enabled bool) Option {
	return func(cfg *Config) { cfg.IndividualSignificance = enabled }
}

// WithPeaks sets the peak merge distance, FAP filter and count limit.
func WithPeaks(minSeparation, maxFAP float64, limit int) Option {
	return func(cfg *Config) {
		cfg.PeakMinSeparation = minSeparation
		cfg.PeakMaxFAP = maxFAP
		cfg.PeakLimit = limit
	}
}

// WithDatasetWeights sets additive weights by series label.
func WithDatasetWeights(weights map[string]float64) Option {
	return func(cfg *Config) { cfg.DatasetWeights = weights }
}

// WithEpsilon sets the multiplicative shift.
func WithEpsilon(eps float64) Option {
	return func(cfg *Config) { cfg.Epsilon = eps }
}

// WithScaling sets input scaling and output normalization of the stack.
func WithScaling(s stack.Scaling, normalizeOutput bool) Option {
	return func(cfg *Config) {
		cfg.Scaling = s
		cfg.NormalizeOutput = normalizeOutput
	}
}

// WithWorkers bounds concurrency.
func WithWorkers(n int) Option {
	return func(cfg *Config) { cfg.Workers = n }
}

// Validate checks every field and reports the first violation wrapped in
// ErrInvalidConfig.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.Operation != stack.Additive && c.Operation != stack.Multiplicative:
		return fmt.Errorf("unknown operation %d", int(c.Operation))
	case !positiveFinite(c.Oversampling):
		return fmt.Errorf("oversampling must be > 0, got %v", c.Oversampling)
	case !positiveFinite(c.NyquistFactor):
		return fmt.Errorf("nyquist factor must be > 0, got %v", c.NyquistFactor)
	case c.MinFrequency < 0 || math.IsNaN(c.MinFrequency) || math.IsInf(c.MinFrequency, 0):
		return fmt.Errorf("min frequency must be >= 0, got %v", c.MinFrequency)
	case c.MaxFrequency < 0 || math.IsNaN(c.MaxFrequency) || math.IsInf(c.MaxFrequency, 0):
		return fmt.Errorf("max frequency must be >= 0, got %v", c.MaxFrequency)
	case c.MinFrequency > 0 && c.MaxFrequency > 0 && c.MinFrequency >= c.MaxFrequency:
		return fmt.Errorf("frequency range [%v, %v] is empty", c.MinFrequency, c.MaxFrequency)
	case c.MaxFrequencies < 0:
		return fmt.Errorf("max frequencies must be >= 0, got %d", c.MaxFrequencies)
	case c.Spacing != grid.Linear && c.Spacing != grid.Logarithmic:
		return fmt.Errorf("unknown spacing %d", int(c.Spacing))
	case c.Normalization != lombscargle.NormVariance && c.Normalization != lombscargle.NormAmplitude:
		return fmt.Errorf("unknown normalization %d", int(c.Normalization))
	case c.Method != lombscargle.MethodDirect && c.Method != lombscargle.MethodFast:
		return fmt.Errorf("unknown method %d", int(c.Method))
	case c.FAPMethod != significance.MethodAnalytic && c.FAPMethod != significance.MethodBootstrap:
		return fmt.Errorf("unknown FAP method %d", int(c.FAPMethod))
	case c.BootstrapIterations <= 0:
		return fmt.Errorf("bootstrap iterations must be > 0, got %d", c.BootstrapIterations)
	case c.BootstrapMinPoints < 1:
		return fmt.Errorf("bootstrap min points must be >= 1, got %d", c.BootstrapMinPoints)
	case !(c.ThresholdFAP > 0 && c.ThresholdFAP <= 1):
		return fmt.Errorf("threshold FAP must be in (0, 1], got %v", c.ThresholdFAP)
	case c.PeakMinSeparation < 0 || math.IsNaN(c.PeakMinSeparation):
		return fmt.Errorf("peak min separation must be >= 0, got %v", c.PeakMinSeparation)
	case !(c.PeakMaxFAP >= 0 && c.PeakMaxFAP <= 1):
		return fmt.Errorf("peak max FAP must be in [0, 1], got %v", c.PeakMaxFAP)
	case c.PeakLimit < 0:
		return fmt.Errorf("peak limit must be >= 0, got %d", c.PeakLimit)
	case c.Operation == stack.Multiplicative && len(c.DatasetWeights) > 0:
		return errors.New("dataset weights are only valid with additive stacking")
	case !positiveFinite(c.Epsilon):
		return fmt.Errorf("epsilon must be > 0, got %v", c.Epsilon)
	case c.Scaling != stack.ScaleNone && c.Scaling != stack.ScaleUnitArea:
		return fmt.Errorf("unknown scaling %d", int(c.Scaling))
	case c.Workers < 1:
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	for label, w := range c.DatasetWeights {
		if !positiveFinite(w) {
			return fmt.Errorf("weight of %q must be > 0, got %v", label, w)
		}
	}
	return nil
}

func positiveFinite(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}

// GridOptions translates the grid settings for grid.Build.
func (c Config) GridOptions() []grid.Option {
	return []grid.Option{
		grid.WithOversampling(c.Oversampling),
		grid.WithNyquistFactor(c.NyquistFactor),
		grid.WithMinFrequency(c.MinFrequency),
		grid.WithMaxFrequency(c.MaxFrequency),
		grid.WithMaxCount(c.MaxFrequencies),
		grid.WithSpacing(c.Spacing),
	}
}

func (c Config) evalOptions() []lombscargle.Option {
	return []lombscargle.Option{
		lombscargle.WithNormalization(c.Normalization),
		lombscargle.WithMethod(c.Method),
	}
}

func (c Config) stackOptions() []stack.Option {
	return []stack.Option{
		stack.WithWeights(c.DatasetWeights),
		stack.WithEpsilon(c.Epsilon),
		stack.WithScaling(c.Scaling),
		stack.WithNormalizedOutput(c.NormalizeOutput),
	}
}
