// Package analysis runs the complete stacked periodogram pipeline: one shared
// frequency grid, one periodogram per dataset, the stacked spectrum, its
// significance and the ranked peaks.
//
// All settings travel in an explicit [Config]; an [Analyzer] holds no other
// state, so independent analyzers can run concurrently.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-stackpg/internal/logging"
	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
	"github.com/cwbudde/algo-stackpg/periodogram/peaks"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
	"github.com/cwbudde/algo-stackpg/periodogram/significance"
	"github.com/cwbudde/algo-stackpg/periodogram/stack"
)

// Significance describes how the FAPs of a spectrum were obtained.
type Significance struct {
	// Requested is the configured method, Method the one actually used.
	Requested significance.Method
	Method    significance.Method
	Estimator significance.Estimator
	// Null is set for bootstrap estimates.
	Null *significance.NullDistribution
}

// Report is the outcome of one run.
type Report struct {
	RunID      uuid.UUID
	Config     Config
	Grid       grid.Grid
	Individual []*lombscargle.Result
	Stacked    *stack.Result

	Significance Significance
	// Threshold is the stacked power at Config.ThresholdFAP.
	Threshold float64
	Peaks     []peaks.Peak

	// IndividualSignificance and IndividualPeaks follow the order of
	// Individual and are only filled when enabled in the config.
	IndividualSignificance []Significance
	IndividualPeaks        [][]peaks.Peak

	Warnings []string
	Elapsed  time.Duration
}

// Analyzer runs the pipeline with a fixed configuration.
type Analyzer struct {
	cfg    Config
	logger *log.Logger
	cache  Cache
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *log.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithCache enables lookup and storage of evaluated periodograms.
func WithCache(c Cache) AnalyzerOption {
	return func(a *Analyzer) { a.cache = c }
}

// New validates cfg and returns an Analyzer.
func New(cfg Config, opts ...AnalyzerOption) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{cfg: cfg, logger: logging.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Config returns the configuration of a.
func (a *Analyzer) Config() Config { return a.cfg }

// Run analyzes set. Labels must be unique since weights and reports refer to
// datasets by label.
func (a *Analyzer) Run(ctx context.Context, set []*series.Series) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New(), Config: a.cfg}
	logger := a.logger.With("run", report.RunID.String())

	if err := checkSet(set); err != nil {
		return nil, err
	}
	for label := range a.cfg.DatasetWeights {
		if !hasLabel(set, label) {
			return nil, fmt.Errorf("%w: weight given for unknown dataset %q", ErrInvalidConfig, label)
		}
	}

	g, err := grid.Build(set, a.cfg.GridOptions()...)
	if err != nil {
		return nil, err
	}
	report.Grid = g
	logger.Info("frequency grid", "grid", g.String(), "datasets", len(set))

	report.Individual, err = a.evaluateAll(ctx, logger, set, g)
	if err != nil {
		return nil, err
	}
	for _, r := range report.Individual {
		for _, w := range r.Warnings {
			logger.Warn("numerical degeneracy", "dataset", w.Label, "kind", w.Kind.String(), "detail", w.Message)
			report.Warnings = append(report.Warnings, w.String())
		}
	}

	report.Stacked, err = stack.Combine(report.Individual, a.cfg.Operation, a.cfg.stackOptions()...)
	if err != nil {
		return nil, err
	}
	if n := report.Stacked.Saturated; n > 0 {
		warning := fmt.Sprintf("stacked power exceeded the float64 range at %d of %d frequencies and was capped", n, g.Len())
		logger.Warn(warning)
		report.Warnings = append(report.Warnings, warning)
	}

	sig, warning, err := a.assess(ctx, a.cfg, set, report.Individual, a.statistic(g))
	if err != nil {
		return nil, err
	}
	if warning != "" {
		logger.Warn(warning)
		report.Warnings = append(report.Warnings, warning)
	}
	report.Significance = sig
	report.Threshold = sig.Estimator.Threshold(a.cfg.ThresholdFAP)

	freqs := g.Frequencies()
	report.Peaks, err = peaks.Find(freqs, report.Stacked.Power, sig.Estimator, a.peakOptions()...)
	if err != nil {
		return nil, err
	}

	if a.cfg.IndividualSignificance {
		if err := a.assessIndividuals(ctx, logger, report, set, g, freqs); err != nil {
			return nil, err
		}
	}

	report.Elapsed = time.Since(start)
	logger.Info("analysis complete",
		"operation", a.cfg.Operation.String(),
		"fap", sig.Method.String(),
		"peaks", len(report.Peaks),
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

func checkSet(set []*series.Series) error {
	if len(set) == 0 {
		return fmt.Errorf("%w: no datasets", series.ErrInvalidSeries)
	}
	seen := make(map[string]bool, len(set))
	for i, s := range set {
		if s == nil {
			return fmt.Errorf("%w: dataset %d is nil", series.ErrInvalidSeries, i)
		}
		if seen[s.Label()] {
			return fmt.Errorf("%w: duplicate dataset label %q", series.ErrInvalidSeries, s.Label())
		}
		seen[s.Label()] = true
	}
	return nil
}

func hasLabel(set []*series.Series, label string) bool {
	for _, s := range set {
		if s.Label() == label {
			return true
		}
	}
	return false
}

// evaluateAll computes one periodogram per dataset on at most Workers
// goroutines. Each task writes its own slot.
func (a *Analyzer) evaluateAll(ctx context.Context, logger *log.Logger, set []*series.Series, g grid.Grid) ([]*lombscargle.Result, error) {
	results := make([]*lombscargle.Result, len(set))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.cfg.Workers)

	for i, s := range set {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			r, err := a.evaluate(egctx, logger, s, g)
			if err != nil {
				return fmt.Errorf("dataset %q: %w", s.Label(), err)
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluate consults the cache before computing. Cache failures are logged and
// never fail the run. Hits carry the input warnings of a fresh evaluation;
// spectra with singular frequencies are never stored, so their warning is
// always recomputed.
func (a *Analyzer) evaluate(ctx context.Context, logger *log.Logger, s *series.Series, g grid.Grid) (*lombscargle.Result, error) {
	var key string
	if a.cache != nil {
		key = CacheKey(s, g, a.cfg.Normalization, a.cfg.Method)
		power, ok, err := a.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("cache lookup failed", "dataset", s.Label(), "err", err)
		case ok && len(power) == g.Len():
			logger.Debug("cache hit", "dataset", s.Label())
			return &lombscargle.Result{
				Grid:          g,
				Power:         power,
				Label:         s.Label(),
				Normalization: a.cfg.Normalization,
				Method:        a.cfg.Method,
				NPoints:       s.Len(),
				Span:          s.Span(),
				Warnings:      lombscargle.InputWarnings(s, g, a.cfg.Method),
			}, nil
		}
	}

	r, err := lombscargle.Evaluate(s, g, a.cfg.evalOptions()...)
	if err != nil {
		return nil, err
	}
	logger.Debug("periodogram evaluated", "dataset", s.Label(), "points", s.Len(), "method", r.Method.String())

	if a.cache != nil && !r.Degenerate && !r.HasWarning(lombscargle.WarnSingularFit) {
		if err := a.cache.Put(ctx, key, r.Power); err != nil {
			logger.Warn("cache store failed", "dataset", s.Label(), "err", err)
		}
	}
	return r, nil
}

// statistic recomputes the stacked spectrum of resampled series.
func (a *Analyzer) statistic(g grid.Grid) significance.Statistic {
	return func(set []*series.Series) ([]float64, error) {
		results := make([]*lombscargle.Result, len(set))
		for i, s := range set {
			r, err := lombscargle.Evaluate(s, g, a.cfg.evalOptions()...)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		st, err := stack.Combine(results, a.cfg.Operation, a.cfg.stackOptions()...)
		if err != nil {
			return nil, err
		}
		return st.Power, nil
	}
}

// singleStatistic recomputes one unstacked periodogram.
func (a *Analyzer) singleStatistic(g grid.Grid) significance.Statistic {
	return func(set []*series.Series) ([]float64, error) {
		r, err := lombscargle.Evaluate(set[0], g, a.cfg.evalOptions()...)
		if err != nil {
			return nil, err
		}
		return r.Power, nil
	}
}

// assess returns the significance of the spectrum produced by stat on set
// under cfg. An analytic request that does not apply falls back to the
// bootstrap and returns a warning.
func (a *Analyzer) assess(ctx context.Context, cfg Config, set []*series.Series, individual []*lombscargle.Result, stat significance.Statistic) (Significance, string, error) {
	sig := Significance{Requested: cfg.FAPMethod}

	var warning string
	if cfg.FAPMethod == significance.MethodAnalytic {
		reason := analyticBlocker(cfg, individual)
		if reason == "" {
			est, err := significance.NewAnalytic(individual[0])
			if err == nil {
				sig.Method = significance.MethodAnalytic
				sig.Estimator = est
				return sig, "", nil
			}
			if !errors.Is(err, significance.ErrInsufficientData) {
				return sig, "", err
			}
			reason = err.Error()
		}
		warning = "analytic FAP not applicable (" + reason + "), using bootstrap"
	}

	boot := significance.Bootstrap{
		Iterations: cfg.BootstrapIterations,
		Workers:    cfg.Workers,
		Seed:       cfg.Seed,
		MinPoints:  cfg.BootstrapMinPoints,
	}
	null, err := boot.Run(ctx, set, stat)
	if err != nil {
		return sig, "", err
	}
	sig.Method = significance.MethodBootstrap
	sig.Estimator = null
	sig.Null = null
	return sig, warning, nil
}

// analyticBlocker explains why the analytic FAP cannot describe the spectrum
// built from individual, or returns "".
func analyticBlocker(cfg Config, individual []*lombscargle.Result) string {
	switch {
	case len(individual) != 1:
		return fmt.Sprintf("stack of %d datasets", len(individual))
	case cfg.Normalization != lombscargle.NormVariance:
		return cfg.Normalization.String() + " normalization"
	case cfg.Operation != stack.Additive:
		return cfg.Operation.String() + " combination"
	case cfg.Scaling != stack.ScaleNone || cfg.NormalizeOutput:
		return "rescaled spectrum"
	}
	if w, ok := cfg.DatasetWeights[individual[0].Label]; ok && w != 1 {
		return "weighted spectrum"
	}
	return ""
}

// assessIndividuals computes significance and peaks of every dataset on its
// own, sequentially; bootstraps are parallel internally.
func (a *Analyzer) assessIndividuals(ctx context.Context, logger *log.Logger, report *Report, set []*series.Series, g grid.Grid, freqs []float64) error {
	// A single dataset is judged on its raw periodogram.
	cfg := a.cfg
	cfg.Operation = stack.Additive
	cfg.DatasetWeights = nil
	cfg.Scaling = stack.ScaleNone
	cfg.NormalizeOutput = false

	report.IndividualSignificance = make([]Significance, len(set))
	report.IndividualPeaks = make([][]peaks.Peak, len(set))
	for i, s := range set {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := report.Individual[i]
		sig, warning, err := a.assess(ctx, cfg, []*series.Series{s}, []*lombscargle.Result{r}, a.singleStatistic(g))
		if err != nil {
			return fmt.Errorf("dataset %q: %w", s.Label(), err)
		}
		if warning != "" {
			logger.Warn(warning, "dataset", s.Label())
			report.Warnings = append(report.Warnings, s.Label()+": "+warning)
		}
		found, err := peaks.Find(freqs, r.Power, sig.Estimator, a.peakOptions()...)
		if err != nil {
			return fmt.Errorf("dataset %q: %w", s.Label(), err)
		}
		report.IndividualSignificance[i] = sig
		report.IndividualPeaks[i] = found
	}
	return nil
}

func (a *Analyzer) peakOptions() []peaks.Option {
	return []peaks.Option{
		peaks.WithMinSeparation(a.cfg.PeakMinSeparation),
		peaks.WithMaxFAP(a.cfg.PeakMaxFAP),
		peaks.WithLimit(a.cfg.PeakLimit),
	}
}
