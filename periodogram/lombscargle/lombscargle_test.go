package lombscargle

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-stackpg/internal/testutil"
	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

func mustSeries(t *testing.T, times, values, errs []float64) *series.Series {
	t.Helper()
	s, err := series.New("test", times, values, errs)
	if err != nil {
		t.Fatalf("series.New: %v", err)
	}
	return s
}

func mustGrid(t *testing.T, start, stop float64, count int) grid.Grid {
	t.Helper()
	g, err := grid.New(start, stop, count, grid.Linear)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

func TestEvaluate_PureSinusoidPeak(t *testing.T) {
	const f0 = 0.137
	times := testutil.IrregularTimes(1, 60, 100)
	s := mustSeries(t, times, testutil.Sinusoid(times, f0, 1, 0.4), nil)

	for _, norm := range []Normalization{NormVariance, NormAmplitude} {
		t.Run(norm.String(), func(t *testing.T) {
			g := mustGrid(t, 0.01, 0.5, 2000)
			res, err := Evaluate(s, g, WithNormalization(norm))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}

			idx, _ := res.Peak()
			if got := g.At(idx); math.Abs(got-f0) > g.Resolution() {
				t.Fatalf("peak at %v, want within %v of %v", got, g.Resolution(), f0)
			}
			testutil.RequireFinite(t, res.Power)
			testutil.RequireNonNegative(t, res.Power)
		})
	}
}

func TestEvaluate_PureSinusoidOnBuiltGrid(t *testing.T) {
	const f0 = 0.21
	times := testutil.IrregularTimes(5, 80, 120)
	s := mustSeries(t, times, testutil.Sinusoid(times, f0, 2, 1), nil)

	g, err := grid.Build([]*series.Series{s})
	if err != nil {
		t.Fatalf("grid.Build: %v", err)
	}
	if f0 > g.Stop {
		t.Fatalf("test frequency %v above grid stop %v", f0, g.Stop)
	}

	res, err := Evaluate(s, g)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	idx, _ := res.Peak()
	if got := g.At(idx); math.Abs(got-f0) > g.Resolution() {
		t.Fatalf("peak at %v, want within %v of %v", got, g.Resolution(), f0)
	}
}

func TestEvaluate_AmplitudeBounded(t *testing.T) {
	times := testutil.IrregularTimes(2, 40, 50)
	values := testutil.Sum(testutil.Sinusoid(times, 0.3, 1, 0), testutil.GaussianNoise(2, 0.5, 40))
	s := mustSeries(t, times, values, nil)

	res, err := Evaluate(s, mustGrid(t, 0.02, 0.6, 500), WithNormalization(NormAmplitude))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for i, p := range res.Power {
		if p < 0 || p > 1 {
			t.Fatalf("power[%d] = %v outside [0, 1]", i, p)
		}
	}
	if res.Normalization != NormAmplitude {
		t.Fatalf("Normalization = %v, want amplitude", res.Normalization)
	}
}

func TestEvaluate_VarianceMatchesAmplitude(t *testing.T) {
	times := testutil.IrregularTimes(3, 30, 40)
	values := testutil.Sum(testutil.Sinusoid(times, 0.2, 1, 0), testutil.GaussianNoise(3, 1, 30))
	s := mustSeries(t, times, values, nil)
	g := mustGrid(t, 0.02, 0.6, 300)

	amp, err := Evaluate(s, g, WithNormalization(NormAmplitude))
	if err != nil {
		t.Fatalf("Evaluate amplitude: %v", err)
	}
	vari, err := Evaluate(s, g, WithNormalization(NormVariance))
	if err != nil {
		t.Fatalf("Evaluate variance: %v", err)
	}

	want := make([]float64, len(amp.Power))
	for i, p := range amp.Power {
		want[i] = AmplitudeToVariance(p, s.Len())
	}
	testutil.RequireSliceRelNearlyEqual(t, vari.Power, want, 1e-12)

	for i, z := range vari.Power {
		if got := VarianceToAmplitude(z, s.Len()); math.Abs(got-amp.Power[i]) > 1e-12 {
			t.Fatalf("index %d: VarianceToAmplitude = %v, want %v", i, got, amp.Power[i])
		}
	}
}

// leastSquaresFraction fits a*cos + b*sin + c by weighted normal equations
// and returns 1 - chi2(model)/chi2(mean).
func leastSquaresFraction(times, values, w []float64, f float64) float64 {
	var a [3][3]float64
	var rhs [3]float64
	for i, t := range times {
		basis := [3]float64{math.Cos(2 * math.Pi * f * t), math.Sin(2 * math.Pi * f * t), 1}
		for r := range 3 {
			rhs[r] += w[i] * basis[r] * values[i]
			for c := range 3 {
				a[r][c] += w[i] * basis[r] * basis[c]
			}
		}
	}

	det := func(m [3][3]float64) float64 {
		return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
			m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
			m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	}
	d := det(a)
	var coef [3]float64
	for k := range 3 {
		m := a
		for r := range 3 {
			m[r][k] = rhs[r]
		}
		coef[k] = det(m) / d
	}

	mean := 0.0
	for i, v := range values {
		mean += w[i] * v
	}
	chiMean, chiModel := 0.0, 0.0
	for i, t := range times {
		model := coef[0]*math.Cos(2*math.Pi*f*t) + coef[1]*math.Sin(2*math.Pi*f*t) + coef[2]
		chiModel += w[i] * (values[i] - model) * (values[i] - model)
		chiMean += w[i] * (values[i] - mean) * (values[i] - mean)
	}
	return 1 - chiModel/chiMean
}

func TestEvaluate_MatchesLeastSquares(t *testing.T) {
	times := testutil.IrregularTimes(4, 25, 30)
	values := testutil.Sum(testutil.Sinusoid(times, 0.4, 1.5, 0.2), testutil.GaussianNoise(4, 0.7, 25), testutil.DC(3, 25))
	errs := make([]float64, len(times))
	for i := range errs {
		errs[i] = 0.3 + 0.05*float64(i%5)
	}

	for _, tc := range []struct {
		name string
		errs []float64
	}{
		{"unweighted", nil},
		{"weighted", errs},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := mustSeries(t, times, values, tc.errs)
			g := mustGrid(t, 0.05, 0.95, 19)

			res, err := Evaluate(s, g, WithNormalization(NormAmplitude))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			w := s.Weights()
			for k := range g.Len() {
				want := leastSquaresFraction(times, values, w, g.At(k))
				if math.Abs(res.Power[k]-want) > 1e-9 {
					t.Fatalf("f=%v: power %v, least squares %v", g.At(k), res.Power[k], want)
				}
			}
		})
	}
}

func TestEvaluate_OffsetAndScaleInvariance(t *testing.T) {
	times := testutil.IrregularTimes(6, 35, 60)
	values := testutil.Sum(testutil.Sinusoid(times, 0.1, 1, 0), testutil.GaussianNoise(6, 0.5, 35))
	shifted := make([]float64, len(values))
	for i, v := range values {
		shifted[i] = 1000 + 3*v
	}
	g := mustGrid(t, 0.01, 0.4, 200)

	a, _ := Evaluate(mustSeries(t, times, values, nil), g)
	b, _ := Evaluate(mustSeries(t, times, shifted, nil), g)
	testutil.RequireSliceRelNearlyEqual(t, b.Power, a.Power, 1e-8)
}

func TestEvaluate_UniformUncertaintiesMatchUnweighted(t *testing.T) {
	times := testutil.IrregularTimes(7, 30, 50)
	values := testutil.Sum(testutil.Sinusoid(times, 0.25, 1, 0), testutil.GaussianNoise(7, 0.5, 30))
	g := mustGrid(t, 0.02, 0.5, 150)

	plain, _ := Evaluate(mustSeries(t, times, values, nil), g)
	weighted, _ := Evaluate(mustSeries(t, times, values, testutil.DC(0.4, len(times))), g)
	testutil.RequireSliceRelNearlyEqual(t, weighted.Power, plain.Power, 1e-9)
}

func TestEvaluate_DegenerateSeries(t *testing.T) {
	times := testutil.IrregularTimes(8, 20, 30)
	s := mustSeries(t, times, testutil.DC(4.2, len(times)), nil)

	res, err := Evaluate(s, mustGrid(t, 0.05, 0.5, 50))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Degenerate {
		t.Fatal("Degenerate = false for a flat series")
	}
	if !res.HasWarning(WarnZeroVariance) {
		t.Fatalf("missing zero-variance warning: %v", res.Warnings)
	}
	for i, p := range res.Power {
		if p != 0 {
			t.Fatalf("power[%d] = %v, want 0", i, p)
		}
	}
}

func TestEvaluate_Warnings(t *testing.T) {
	times := testutil.RegularTimes(20, 1)
	values := testutil.Sum(testutil.Sinusoid(times, 0.13, 1, 0), testutil.GaussianNoise(9, 0.2, 20))

	t.Run("singular and above nyquist", func(t *testing.T) {
		s := mustSeries(t, times, values, nil)
		res, err := Evaluate(s, mustGrid(t, 0.5, 1.0, 6))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !res.HasWarning(WarnSingularFit) {
			t.Fatalf("missing singular-fit warning: %v", res.Warnings)
		}
		if !res.HasWarning(WarnAboveNyquist) {
			t.Fatalf("missing above-nyquist warning: %v", res.Warnings)
		}
		if res.Power[5] != 0 {
			t.Fatalf("power at f=1 is %v, want 0", res.Power[5])
		}
	})

	t.Run("zero uncertainty", func(t *testing.T) {
		errs := testutil.DC(0.1, len(times))
		errs[3] = 0
		res, err := Evaluate(mustSeries(t, times, values, errs), mustGrid(t, 0.05, 0.45, 10))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !res.HasWarning(WarnZeroUncertainty) {
			t.Fatalf("missing zero-uncertainty warning: %v", res.Warnings)
		}
	})

	t.Run("fast on log grid", func(t *testing.T) {
		g, _ := grid.New(0.05, 0.45, 10, grid.Logarithmic)
		res, err := Evaluate(mustSeries(t, times, values, nil), g, WithMethod(MethodFast))
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !res.HasWarning(WarnFastFallback) {
			t.Fatalf("missing fast-fallback warning: %v", res.Warnings)
		}
	})
}

func TestInputWarnings_MatchEvaluate(t *testing.T) {
	times := testutil.RegularTimes(20, 1)
	values := testutil.Sum(testutil.Sinusoid(times, 0.13, 1, 0), testutil.GaussianNoise(10, 0.2, 20))
	errs := testutil.DC(0.1, len(times))
	errs[5] = 0
	s := mustSeries(t, times, values, errs)
	g, _ := grid.New(0.05, 0.8, 16, grid.Logarithmic)

	res, err := Evaluate(s, g, WithMethod(MethodFast))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := InputWarnings(s, g, MethodFast)
	if len(got) != 3 {
		t.Fatalf("InputWarnings = %v, want 3 warnings", got)
	}
	for i, w := range got {
		if w != res.Warnings[i] {
			t.Fatalf("warning %d = %v, Evaluate reported %v", i, w, res.Warnings[i])
		}
	}
}

func TestEvaluate_Errors(t *testing.T) {
	times := testutil.RegularTimes(10, 1)
	s := mustSeries(t, times, testutil.Sinusoid(times, 0.1, 1, 0), nil)

	if _, err := Evaluate(nil, mustGrid(t, 0.1, 0.4, 10)); !errors.Is(err, series.ErrInvalidSeries) {
		t.Fatalf("nil series: err = %v, want ErrInvalidSeries", err)
	}
	if _, err := Evaluate(s, grid.Grid{}); !errors.Is(err, grid.ErrInvalidGrid) {
		t.Fatalf("empty grid: err = %v, want ErrInvalidGrid", err)
	}
	bad := grid.Grid{Start: 0.4, Stop: 0.1, Count: 10}
	if _, err := Evaluate(s, bad); !errors.Is(err, grid.ErrInvalidGrid) {
		t.Fatalf("reversed grid: err = %v, want ErrInvalidGrid", err)
	}
}

func TestParse(t *testing.T) {
	if n, err := ParseNormalization("amplitude"); err != nil || n != NormAmplitude {
		t.Fatalf("ParseNormalization(amplitude) = %v, %v", n, err)
	}
	if _, err := ParseNormalization("psd"); err == nil {
		t.Fatal("expected error for unknown normalization")
	}
	if m, err := ParseMethod("fast"); err != nil || m != MethodFast {
		t.Fatalf("ParseMethod(fast) = %v, %v", m, err)
	}
	if _, err := ParseMethod("nfft"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestEvaluate_FastMatchesDirect(t *testing.T) {
	times := testutil.IrregularTimes(11, 120, 200)
	values := testutil.Sum(
		testutil.Sinusoid(times, 0.083, 1, 0.3),
		testutil.Sinusoid(times, 0.31, 0.5, 1.1),
		testutil.GaussianNoise(11, 0.6, 120),
	)
	errs := make([]float64, len(times))
	for i := range errs {
		errs[i] = 0.5 + 0.1*float64(i%3)
	}

	for _, tc := range []struct {
		name string
		errs []float64
		g    grid.Grid
	}{
		{"unweighted", nil, mustGrid(t, 0.001, 0.5, 2500)},
		{"weighted", errs, mustGrid(t, 0.01, 0.45, 1000)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := mustSeries(t, times, values, tc.errs)
			direct, err := Evaluate(s, tc.g, WithNormalization(NormAmplitude))
			if err != nil {
				t.Fatalf("direct: %v", err)
			}
			fast, err := Evaluate(s, tc.g, WithNormalization(NormAmplitude), WithMethod(MethodFast))
			if err != nil {
				t.Fatalf("fast: %v", err)
			}
			if fast.Method != MethodFast || fast.HasWarning(WarnFastFallback) {
				t.Fatalf("fast evaluation fell back: %v", fast.Warnings)
			}
			testutil.RequireSliceNearlyEqual(t, fast.Power, direct.Power, 1e-2)
		})
	}
}
