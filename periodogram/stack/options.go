package stack

import (
	"fmt"
	"math"
	"strings"
)

// DefaultEpsilon is the shift added to every power before multiplication so
// that a single near-zero value cannot annihilate the product.
const DefaultEpsilon = 1e-6

// Scaling selects how inputs are rescaled before combination.
type Scaling int

const (
	// ScaleNone combines powers as evaluated.
	ScaleNone Scaling = iota
	// ScaleUnitArea divides each input by its trapezoidal area over the
	// frequency column first.
	ScaleUnitArea
)

// String returns the configuration name of the scaling.
func (s Scaling) String() string {
	switch s {
	case ScaleNone:
		return "none"
	case ScaleUnitArea:
		return "unit-area"
	default:
		return fmt.Sprintf("Scaling(%d)", int(s))
	}
}

// ParseScaling converts "none" or "unit-area" to a Scaling.
func ParseScaling(name string) (Scaling, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return ScaleNone, nil
	case "unit-area", "area", "unit_area":
		return ScaleUnitArea, nil
	default:
		return 0, fmt.Errorf("%w: unknown scaling %q", ErrInvalidParameter, name)
	}
}

// Config controls a combination.
type Config struct {
	// Weights maps dataset labels to additive weights > 0.
	Weights map[string]float64
	// Epsilon is the multiplicative shift, > 0.
	Epsilon float64
	Scaling Scaling
	// NormalizeOutput divides the stacked spectrum by its trapezoidal area.
	NormalizeOutput bool
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns unweighted, unscaled combination with DefaultEpsilon.
func DefaultConfig() Config {
	return Config{Epsilon: DefaultEpsilon}
}

// WithWeights sets per-dataset weights for additive stacking. A nil map
// clears previously set weights.
func WithWeights(weights map[string]float64) Option {
	return func(cfg *Config) {
		cfg.Weights = weights
	}
}

// WithEpsilon sets the multiplicative shift.
func WithEpsilon(eps float64) Option {
	return func(cfg *Config) {
		cfg.Epsilon = eps
	}
}

// WithScaling sets the input scaling.
func WithScaling(s Scaling) Option {
	return func(cfg *Config) {
		cfg.Scaling = s
	}
}

// WithNormalizedOutput enables unit-area normalization of the result.
func WithNormalizedOutput(enabled bool) Option {
	return func(cfg *Config) {
		cfg.NormalizeOutput = enabled
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg Config) validate(op Operation) error {
	if op != Additive && op != Multiplicative {
		return fmt.Errorf("%w: unknown operation %d", ErrInvalidParameter, int(op))
	}
	if cfg.Scaling != ScaleNone && cfg.Scaling != ScaleUnitArea {
		return fmt.Errorf("%w: unknown scaling %d", ErrInvalidParameter, int(cfg.Scaling))
	}
	if op == Multiplicative {
		if len(cfg.Weights) > 0 {
			return fmt.Errorf("%w: weights are only defined for additive stacking", ErrInvalidWeight)
		}
		if !(cfg.Epsilon > 0) || math.IsInf(cfg.Epsilon, 0) {
			return fmt.Errorf("%w: epsilon must be finite and > 0, got %v", ErrInvalidParameter, cfg.Epsilon)
		}
	}
	for label, w := range cfg.Weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: %q has weight %v, must be finite and > 0", ErrInvalidWeight, label, w)
		}
	}
	return nil
}

// effectiveEpsilon is the shift actually applied by op.
func (cfg Config) effectiveEpsilon(op Operation) float64 {
	if op == Multiplicative {
		return cfg.Epsilon
	}
	return 0
}
