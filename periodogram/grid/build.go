package grid

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// DefaultOversampling is the default number of grid points per natural
// frequency resolution 1/T.
const DefaultOversampling = 5.0

// BuildConfig controls grid derivation in [Build].
type BuildConfig struct {
	// Oversampling sets the step to 1/(Oversampling*T) where T is the
	// widest span among the inputs.
	Oversampling float64
	// NyquistFactor scales the pseudo-Nyquist upper bound.
	NyquistFactor float64
	// MinFrequency and MaxFrequency override the derived bounds when > 0.
	MinFrequency float64
	MaxFrequency float64
	// MaxCount caps the number of frequencies when > 0.
	MaxCount int
	Spacing  Spacing
}

// Option mutates a BuildConfig.
type Option func(*BuildConfig)

// DefaultBuildConfig returns the defaults used by [Build].
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Oversampling:  DefaultOversampling,
		NyquistFactor: 1,
		Spacing:       Linear,
	}
}

// WithOversampling sets the oversampling factor. Non-positive values are ignored.
func WithOversampling(factor float64) Option {
	return func(cfg *BuildConfig) {
		if factor > 0 {
			cfg.Oversampling = factor
		}
	}
}

// WithNyquistFactor scales the pseudo-Nyquist upper bound. Non-positive
// values are ignored.
func WithNyquistFactor(factor float64) Option {
	return func(cfg *BuildConfig) {
		if factor > 0 {
			cfg.NyquistFactor = factor
		}
	}
}

// WithMinFrequency overrides the derived lower bound.
func WithMinFrequency(f float64) Option {
	return func(cfg *BuildConfig) {
		cfg.MinFrequency = f
	}
}

// WithMaxFrequency overrides the derived upper bound.
func WithMaxFrequency(f float64) Option {
	return func(cfg *BuildConfig) {
		cfg.MaxFrequency = f
	}
}

// WithMaxCount caps the number of grid points.
func WithMaxCount(n int) Option {
	return func(cfg *BuildConfig) {
		cfg.MaxCount = n
	}
}

// WithSpacing selects linear or logarithmic spacing.
func WithSpacing(s Spacing) Option {
	return func(cfg *BuildConfig) {
		cfg.Spacing = s
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) BuildConfig {
	cfg := DefaultBuildConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Build derives one grid usable for every series in set.
//
// The lower bound is 1/(Oversampling*T), T being the widest span, so at
// least one full cycle fits into the longest dataset. The upper bound is the
// pseudo-Nyquist frequency NyquistFactor/(2*g) where g is the smallest median
// sampling interval among all series. Sparser series simply show aliased
// power near the top of the grid.
//
// Build depends only on spans and cadences and is independent of input
// order, so identical inputs always give bit-identical grids.
func Build(set []*series.Series, opts ...Option) (Grid, error) {
	if len(set) == 0 {
		return Grid{}, fmt.Errorf("%w: no series to build a grid from", series.ErrInvalidSeries)
	}

	cfg := ApplyOptions(opts...)

	span := 0.0
	gap := math.Inf(1)
	for i, s := range set {
		if s == nil {
			return Grid{}, fmt.Errorf("%w: series %d is nil", series.ErrInvalidSeries, i)
		}
		span = math.Max(span, s.Span())
		gap = math.Min(gap, s.MedianGap())
	}
	if !(span > 0) || !(gap > 0) {
		return Grid{}, fmt.Errorf("%w: degenerate sampling (span=%v, median gap=%v)", series.ErrInvalidSeries, span, gap)
	}

	df := 1 / (cfg.Oversampling * span)

	start := df
	if cfg.MinFrequency > 0 {
		start = cfg.MinFrequency
	}
	stop := cfg.NyquistFactor / (2 * gap)
	if cfg.MaxFrequency > 0 {
		stop = cfg.MaxFrequency
	}
	if stop <= start {
		if cfg.MinFrequency > 0 || cfg.MaxFrequency > 0 {
			return Grid{}, fmt.Errorf("%w: frequency bounds [%v, %v] are empty", ErrInvalidGrid, start, stop)
		}
		// A single long gap can push the pseudo-Nyquist below 1/T.
		stop = start + df
	}

	// The small slack keeps exact multiples of df from gaining a point.
	count := int(math.Ceil((stop-start)/df-1e-9)) + 1
	if cfg.Spacing == Logarithmic {
		// The widest log step, at the top of the grid, must not exceed df.
		count = int(math.Ceil(math.Log(stop/start)/math.Log1p(df/stop))) + 1
	}
	count = max(count, 2)
	if cfg.MaxCount > 0 {
		count = min(count, max(cfg.MaxCount, 2))
	}

	return New(start, stop, count, cfg.Spacing)
}
