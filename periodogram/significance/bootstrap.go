package significance

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/cwbudde/algo-vecmath"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// Bootstrap defaults.
const (
	DefaultIterations = 1000
	DefaultMinPoints  = 5
)

// Statistic recomputes the spectrum under test for one resampled set of
// series, in the order they were passed to [Bootstrap.Run]. It is called
// concurrently and must not share mutable state between calls.
type Statistic func(set []*series.Series) ([]float64, error)

// Bootstrap configures permutation resampling. Zero fields take the package
// defaults; Workers defaults to runtime.GOMAXPROCS(0).
type Bootstrap struct {
	Iterations int
	Workers    int
	Seed       uint64
	MinPoints  int
}

func (b Bootstrap) withDefaults() Bootstrap {
	if b.Iterations == 0 {
		b.Iterations = DefaultIterations
	}
	if b.Workers <= 0 {
		b.Workers = runtime.GOMAXPROCS(0)
	}
	if b.MinPoints <= 0 {
		b.MinPoints = DefaultMinPoints
	}
	return b
}

// Run builds the null distribution of the maximum of stat.
//
// Iteration i permutes the values (with their uncertainties) of every series
// against its fixed times using an RNG seeded from (Seed, i), so the result
// does not depend on Workers or scheduling. Iterations run on at most Workers
// goroutines and each writes its own slot of the result. Cancellation is
// checked before every iteration.
func (b Bootstrap) Run(ctx context.Context, set []*series.Series, stat Statistic) (*NullDistribution, error) {
	cfg := b.withDefaults()
	if cfg.Iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be > 0, got %d", ErrInvalidParameter, cfg.Iterations)
	}
	if stat == nil {
		return nil, fmt.Errorf("%w: nil statistic", ErrInvalidParameter)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no series to resample", ErrInsufficientData)
	}
	for i, s := range set {
		if s == nil {
			return nil, fmt.Errorf("%w: series %d is nil", ErrInsufficientData, i)
		}
		if s.Len() < cfg.MinPoints {
			return nil, fmt.Errorf("%w: %q has %d points, bootstrap needs at least %d",
				ErrInsufficientData, s.Label(), s.Len(), cfg.MinPoints)
		}
	}

	maxima := make([]float64, cfg.Iterations)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := range cfg.Iterations {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			shuffled := make([]*series.Series, len(set))
			for k, s := range set {
				shuffled[k] = s.Permuted(rng)
			}

			power, err := stat(shuffled)
			if err != nil {
				return fmt.Errorf("significance: bootstrap iteration %d: %w", i, err)
			}
			if len(power) == 0 {
				return fmt.Errorf("%w: statistic returned an empty spectrum", ErrInvalidParameter)
			}
			// Powers are non-negative, so the largest magnitude is the maximum.
			maxima[i] = vecmath.MaxAbs(power)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return NewNullDistribution(maxima)
}

// NullDistribution is the sorted sample of null maxima.
type NullDistribution struct {
	maxima []float64
}

// NewNullDistribution copies and sorts maxima.
func NewNullDistribution(maxima []float64) (*NullDistribution, error) {
	if len(maxima) == 0 {
		return nil, fmt.Errorf("%w: empty null distribution", ErrInsufficientData)
	}
	sorted := slices.Clone(maxima)
	for i, v := range sorted {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: NaN maximum at index %d", ErrInvalidParameter, i)
		}
	}
	slices.Sort(sorted)
	return &NullDistribution{maxima: sorted}, nil
}

// Len returns the number of resamples B.
func (d *NullDistribution) Len() int { return len(d.maxima) }

// Maxima returns a sorted copy of the null maxima.
func (d *NullDistribution) Maxima() []float64 { return slices.Clone(d.maxima) }

// FAP returns (#{max >= power} + 1) / (B + 1). The +1 keeps the estimate
// away from zero; the smallest attainable FAP is 1/(B+1).
func (d *NullDistribution) FAP(power float64) float64 {
	idx, _ := slices.BinarySearch(d.maxima, power)
	exceed := len(d.maxima) - idx
	return float64(exceed+1) / float64(len(d.maxima)+1)
}

// Threshold returns the smallest power whose FAP is <= fap, +Inf when fap is
// below 1/(B+1) and 0 when every power qualifies.
func (d *NullDistribution) Threshold(fap float64) float64 {
	b := len(d.maxima)
	// Largest exceedance count k with (k+1)/(B+1) <= fap.
	k := int(math.Floor(fap*float64(b+1) - 1 + 1e-9))
	switch {
	case k < 0:
		return math.Inf(1)
	case k >= b:
		return 0
	}
	return math.Nextafter(d.maxima[b-k-1], math.Inf(1))
}

// Quantile returns the q-quantile of the null maxima with linear
// interpolation, q in [0, 1].
func (d *NullDistribution) Quantile(q float64) float64 {
	q = math.Max(0, math.Min(q, 1))
	pos := q * float64(len(d.maxima)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(d.maxima)-1)
	frac := pos - float64(lo)
	return d.maxima[lo] + frac*(d.maxima[hi]-d.maxima[lo])
}
