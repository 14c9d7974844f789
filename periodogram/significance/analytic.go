package significance

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
)

// MinAnalyticPoints is the smallest series length with a defined
// variance-normalized tail.
const MinAnalyticPoints = 4

// Analytic approximates the FAP of a variance-normalized single-series
// periodogram.
//
// For a series of N points the probability that one frequency exceeds z is
//
//	Prob(z) = (1 + 2z/(N-3))^(-(N-3)/2)
//
// and the grid is treated as M = (stop-start)*T independent trials, clamped to
// [1, count]. Neighbouring grid points are correlated, so the result is only
// an approximation.
type Analytic struct {
	dof float64
	m   float64
}

// NewAnalytic returns the analytic estimator for res.
func NewAnalytic(res *lombscargle.Result) (*Analytic, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil periodogram", ErrInvalidParameter)
	}
	if res.Normalization != lombscargle.NormVariance {
		return nil, fmt.Errorf("%w: analytic FAP needs variance normalization, %q is %s-normalized",
			ErrMethodUnsupported, res.Label, res.Normalization)
	}
	if res.NPoints < MinAnalyticPoints {
		return nil, fmt.Errorf("%w: analytic FAP needs at least %d points, %q has %d",
			ErrInsufficientData, MinAnalyticPoints, res.Label, res.NPoints)
	}

	g := res.Grid
	m := (g.Stop - g.Start) * res.Span
	m = math.Max(1, math.Min(m, float64(g.Len())))
	return &Analytic{dof: float64(res.NPoints - 3), m: m}, nil
}

// EffectiveFrequencies returns M, the number of independent trials.
func (a *Analytic) EffectiveFrequencies() float64 { return a.m }

// SingleFAP returns the single-frequency tail Prob(z).
func (a *Analytic) SingleFAP(z float64) float64 {
	if !(z > 0) {
		return 1
	}
	return math.Exp(-a.dof / 2 * math.Log1p(2*z/a.dof))
}

// FAP returns 1 - (1 - Prob(z))^M.
func (a *Analytic) FAP(z float64) float64 {
	p := a.SingleFAP(z)
	if p >= 1 {
		return 1
	}
	return -math.Expm1(a.m * math.Log1p(-p))
}

// Threshold inverts FAP. It returns 0 for fap >= 1 and +Inf for fap <= 0.
func (a *Analytic) Threshold(fap float64) float64 {
	switch {
	case fap >= 1:
		return 0
	case !(fap > 0):
		return math.Inf(1)
	}
	p := -math.Expm1(math.Log1p(-fap) / a.m)
	return a.dof / 2 * math.Expm1(-2/a.dof*math.Log(p))
}
