// Package lombscargle evaluates the generalized (floating-mean) Lomb-Scargle
// periodogram of an irregularly sampled series on a frequency grid.
//
// At each frequency f a weighted least-squares fit of
//
//	y(t) = a*cos(2*pi*f*t) + b*sin(2*pi*f*t) + c
//
// is performed, with weights 1/sigma^2 when uncertainties are available. The
// explained fraction p of the weighted variance is then reported in one of two
// conventions, see [Normalization].
package lombscargle

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// Normalization selects the power convention. It must be the same for every
// periodogram that is combined or compared.
type Normalization int

const (
	// NormVariance reports z = (N-3)/2 * p/(1-p), the fit improvement
	// normalized by the residual variance. Unbounded; its single-frequency
	// tail is (1 + 2z/(N-3))^(-(N-3)/2), which enables analytic FAPs.
	NormVariance Normalization = iota
	// NormAmplitude reports p in [0, 1], the fraction of the total weighted
	// variance explained by the sinusoid.
	NormAmplitude
)

// String returns the configuration name of the convention.
func (n Normalization) String() string {
	switch n {
	case NormVariance:
		return "variance"
	case NormAmplitude:
		return "amplitude"
	default:
		return fmt.Sprintf("Normalization(%d)", int(n))
	}
}

// ParseNormalization converts "variance" or "amplitude" to a Normalization.
func ParseNormalization(name string) (Normalization, error) {
	switch name {
	case "variance", "":
		return NormVariance, nil
	case "amplitude", "standard":
		return NormAmplitude, nil
	default:
		return 0, fmt.Errorf("lombscargle: unknown normalization %q", name)
	}
}

// Method selects the evaluation algorithm.
type Method int

const (
	// MethodDirect evaluates the trigonometric sums exactly, O(N*Nf).
	MethodDirect Method = iota
	// MethodFast approximates the sums by extirpolation onto a regular mesh
	// and an FFT, O(N + Nf*log Nf). Requires a linear grid.
	MethodFast
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodDirect:
		return "direct"
	case MethodFast:
		return "fast"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts "direct" or "fast" to a Method.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "direct", "":
		return MethodDirect, nil
	case "fast":
		return MethodFast, nil
	default:
		return 0, fmt.Errorf("lombscargle: unknown method %q", name)
	}
}

// Config controls a single evaluation.
type Config struct {
	Normalization Normalization
	Method        Method
	// FastOversampling is the FFT mesh oversampling for MethodFast.
	FastOversampling int
	// FastOrder is the number of mesh points each sample is extirpolated to.
	FastOrder int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the variance normalization evaluated directly.
func DefaultConfig() Config {
	return Config{
		Normalization:    NormVariance,
		Method:           MethodDirect,
		FastOversampling: 16,
		FastOrder:        4,
	}
}

// WithNormalization sets the power convention.
func WithNormalization(n Normalization) Option {
	return func(cfg *Config) {
		cfg.Normalization = n
	}
}

// WithMethod sets the evaluation algorithm.
func WithMethod(m Method) Option {
	return func(cfg *Config) {
		cfg.Method = m
	}
}

// WithFastAccuracy sets mesh oversampling and extirpolation order for
// MethodFast. Non-positive values keep the defaults.
func WithFastAccuracy(oversampling, order int) Option {
	return func(cfg *Config) {
		if oversampling > 0 {
			cfg.FastOversampling = oversampling
		}
		if order > 0 {
			cfg.FastOrder = order
		}
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

// Result is the periodogram of one series. It is not mutated after creation.
type Result struct {
	Grid          grid.Grid
	Power         []float64
	Label         string
	Normalization Normalization
	Method        Method
	// NPoints and Span describe the input series and feed the analytic
	// significance estimate.
	NPoints int
	Span    float64
	// Degenerate is set when the series has no variance; Power is all zero.
	Degenerate bool
	Warnings   []Warning
}

// Frequencies materializes the grid of the result.
func (r *Result) Frequencies() []float64 {
	return r.Grid.Frequencies()
}

// Peak returns the index and power of the highest grid point.
func (r *Result) Peak() (int, float64) {
	best := 0
	for i, p := range r.Power {
		if p > r.Power[best] {
			best = i
		}
	}
	return best, r.Power[best]
}

const (
	// degenerateVariance is the weighted variance, relative to the weighted
	// mean square of the raw values, below which a series counts as flat.
	degenerateVariance = 1e-20
	// singularDeterminant bounds the fit determinant below which the
	// sinusoid basis is numerically collinear with the offset.
	singularDeterminant = 1e-14
	// minResidual floors 1-p in the variance normalization.
	minResidual = 1e-15
)

// Evaluate computes the periodogram of s on g.
//
// Degenerate inputs never fail: a flat series yields zero power with
// Degenerate set, and near-singular frequencies yield zero power. Both are
// reported through Result.Warnings.
func Evaluate(s *series.Series, g grid.Grid, opts ...Option) (*Result, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil series", series.ErrInvalidSeries)
	}
	if s.Len() < series.MinLen || !(s.Span() > 0) {
		return nil, fmt.Errorf("%w: %q needs at least %d distinct time points", series.ErrInvalidSeries, s.Label(), series.MinLen)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	cfg := ApplyOptions(opts...)
	res := &Result{
		Grid:          g,
		Power:         make([]float64, g.Len()),
		Label:         s.Label(),
		Normalization: cfg.Normalization,
		Method:        cfg.Method,
		NPoints:       s.Len(),
		Span:          s.Span(),
	}

	res.Warnings = InputWarnings(s, g, cfg.Method)

	w := s.Weights()
	t, y, yy := center(s.Times(), s.Values(), w)
	if yy <= degenerateVariance*weightedMeanSquare(s.Values(), w) || yy == 0 {
		res.Degenerate = true
		res.warn(WarnZeroVariance, "series has zero variance, power set to zero")
		return res, nil
	}

	var singular int
	switch {
	case cfg.Method == MethodFast && g.Spacing == grid.Linear:
		var err error
		singular, err = fastPower(res.Power, t, y, w, yy, g, cfg)
		if err != nil {
			return nil, err
		}
	default:
		singular = directPower(res.Power, t, y, w, yy, g)
	}
	if singular > 0 {
		res.warn(WarnSingularFit, fmt.Sprintf("near-singular fit at %d of %d frequencies, power set to zero", singular, g.Len()))
	}

	normalize(res.Power, cfg.Normalization, s.Len())
	return res, nil
}

// center subtracts the weighted mean time and value and returns the weighted
// variance of the values.
func center(times, values, w []float64) (t, y []float64, yy float64) {
	tMean, yMean := 0.0, 0.0
	for i, wi := range w {
		tMean += wi * times[i]
		yMean += wi * values[i]
	}

	t = make([]float64, len(times))
	y = make([]float64, len(values))
	for i, wi := range w {
		t[i] = times[i] - tMean
		y[i] = values[i] - yMean
		yy += wi * y[i] * y[i]
	}
	return t, y, yy
}

func weightedMeanSquare(values, w []float64) float64 {
	sum := 0.0
	for i, wi := range w {
		sum += wi * values[i] * values[i]
	}
	return sum
}

// clampFraction limits rounding excursions of the explained fraction.
func clampFraction(p float64) float64 {
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
