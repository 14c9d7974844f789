// Package series provides the immutable time-series record consumed by the
// periodogram evaluator and the frequency grid builder.
package series

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// ErrInvalidSeries reports a malformed or too-short time series.
var ErrInvalidSeries = errors.New("series: invalid time series")

// MinLen is the minimum number of samples a series must hold.
const MinLen = 2

// Series is an irregularly sampled time series with optional per-sample
// uncertainties.
//
// A Series is never mutated after construction. Slices returned by the
// accessors are views of the internal storage and must not be modified.
type Series struct {
	label  string
	times  []float64
	values []float64
	errs   []float64
}

// New validates and copies the inputs into a new Series.
//
// times must be finite and strictly increasing, values finite, and
// uncertainties (optional, may be nil) finite and >= 0. All slices must have
// the same length of at least [MinLen].
func New(label string, times, values, uncertainties []float64) (*Series, error) {
	if err := validate(times, values, uncertainties); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSeries, label, err)
	}

	s := &Series{
		label:  label,
		times:  slices.Clone(times),
		values: slices.Clone(values),
	}
	if uncertainties != nil {
		s.errs = slices.Clone(uncertainties)
	}
	return s, nil
}

func validate(times, values, uncertainties []float64) error {
	n := len(times)
	if n < MinLen {
		return fmt.Errorf("need at least %d samples, got %d", MinLen, n)
	}
	if len(values) != n {
		return fmt.Errorf("values length %d does not match times length %d", len(values), n)
	}
	if uncertainties != nil && len(uncertainties) != n {
		return fmt.Errorf("uncertainties length %d does not match times length %d", len(uncertainties), n)
	}
	for i, t := range times {
		if !isFinite(t) {
			return fmt.Errorf("time[%d] is not finite: %v", i, t)
		}
		if i > 0 && t <= times[i-1] {
			return fmt.Errorf("times must be strictly increasing: time[%d]=%v <= time[%d]=%v", i, t, i-1, times[i-1])
		}
	}
	for i, v := range values {
		if !isFinite(v) {
			return fmt.Errorf("value[%d] is not finite: %v", i, v)
		}
	}
	for i, e := range uncertainties {
		if !isFinite(e) || e < 0 {
			return fmt.Errorf("uncertainty[%d] must be finite and >= 0: %v", i, e)
		}
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Label returns the dataset identifier.
func (s *Series) Label() string { return s.label }

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.times) }

// Times returns the sample times.
func (s *Series) Times() []float64 { return s.times }

// Values returns the observed values.
func (s *Series) Values() []float64 { return s.values }

// Uncertainties returns the per-sample uncertainties, or nil.
func (s *Series) Uncertainties() []float64 { return s.errs }

// HasUncertainties reports whether uncertainties were supplied.
func (s *Series) HasUncertainties() bool { return s.errs != nil }

// Span returns the time between the first and the last sample.
func (s *Series) Span() float64 {
	return s.times[len(s.times)-1] - s.times[0]
}

// MinGap returns the smallest interval between consecutive samples.
func (s *Series) MinGap() float64 {
	gap := math.Inf(1)
	for i := 1; i < len(s.times); i++ {
		gap = math.Min(gap, s.times[i]-s.times[i-1])
	}
	return gap
}

// MedianGap returns the median interval between consecutive samples.
func (s *Series) MedianGap() float64 {
	gaps := make([]float64, len(s.times)-1)
	for i := range gaps {
		gaps[i] = s.times[i+1] - s.times[i]
	}
	slices.Sort(gaps)

	mid := len(gaps) / 2
	if len(gaps)%2 == 1 {
		return gaps[mid]
	}
	return 0.5 * (gaps[mid-1] + gaps[mid])
}

// IsWeighted reports whether the series carries usable inverse-variance
// weights, i.e. uncertainties are present and all strictly positive.
func (s *Series) IsWeighted() bool {
	if s.errs == nil {
		return false
	}
	for _, e := range s.errs {
		if e == 0 {
			return false
		}
	}
	return true
}

// Weights returns normalized weights summing to one.
//
// Inverse-variance weights 1/sigma^2 are used when [Series.IsWeighted]
// reports true, uniform weights otherwise.
func (s *Series) Weights() []float64 {
	n := len(s.times)
	w := make([]float64, n)
	if !s.IsWeighted() {
		for i := range w {
			w[i] = 1 / float64(n)
		}
		return w
	}

	sum := 0.0
	for i, e := range s.errs {
		w[i] = 1 / (e * e)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// WeightedMean returns the weighted mean of the values using [Series.Weights].
func (s *Series) WeightedMean() float64 {
	mean := 0.0
	for i, w := range s.Weights() {
		mean += w * s.values[i]
	}
	return mean
}

// Permuted returns a copy of s whose values (and uncertainties, which travel
// with their values) are shuffled with rng while the sampling times are kept.
//
// The permutation destroys any time-value association and is the null model
// used by bootstrap significance estimation.
func (s *Series) Permuted(rng *rand.Rand) *Series {
	n := len(s.times)
	perm := rng.Perm(n)

	out := &Series{
		label:  s.label,
		times:  s.times,
		values: make([]float64, n),
	}
	for i, j := range perm {
		out.values[i] = s.values[j]
	}
	if s.errs != nil {
		out.errs = make([]float64, n)
		for i, j := range perm {
			out.errs[i] = s.errs[j]
		}
	}
	return out
}

// String returns a short human-readable description.
func (s *Series) String() string {
	return fmt.Sprintf("%s (n=%d, span=%g)", s.label, len(s.times), s.Span())
}
