package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-stackpg/analysis"
	"github.com/cwbudde/algo-stackpg/internal/cache"
	"github.com/cwbudde/algo-stackpg/internal/dataio"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run series.csv...",
		Short: "Run the full pipeline on raw time series.",
		Long: `Reads every CSV file (time, value[, uncertainty]) as one dataset labelled by
its file name, evaluates the periodograms on a shared grid, stacks them and
reports the ranked peaks with their false-alarm probabilities.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args)
		},
	}
}

func (a *app) run(ctx context.Context, paths []string) error {
	set, err := readSeries(paths)
	if err != nil {
		return err
	}

	opts := []analysis.AnalyzerOption{analysis.WithLogger(a.logger)}
	store, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		opts = append(opts, analysis.WithCache(store))
	}

	an, err := analysis.New(a.settings.Analysis, opts...)
	if err != nil {
		return err
	}
	r, err := an.Run(ctx, set)
	if err != nil {
		return err
	}

	if err := a.writer().Write(a.out, r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if prefix := a.settings.Parquet; prefix != "" {
		spectra, peaks := prefix+"_spectra.parquet", prefix+"_peaks.parquet"
		if err := dataio.WriteParquetFile(spectra, dataio.SpectrumRows(r)); err != nil {
			return err
		}
		if err := dataio.WriteParquetFile(peaks, dataio.PeakRows(r)); err != nil {
			return err
		}
		a.logger.Info("parquet export written", "spectra", spectra, "peaks", peaks)
	}
	return nil
}

func readSeries(paths []string) ([]*series.Series, error) {
	set := make([]*series.Series, 0, len(paths))
	for _, path := range paths {
		s, err := dataio.ReadSeriesFile(path)
		if err != nil {
			return nil, err
		}
		set = append(set, s)
	}
	return set, nil
}

// openCache returns nil when caching is disabled.
func (a *app) openCache(ctx context.Context) (*cache.Store, error) {
	if a.settings.CacheBackend == cache.BackendNone {
		return nil, nil
	}
	store, err := cache.Open(ctx, a.settings.CacheBackend, a.settings.CacheConnect, a.settings.CacheTable)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("periodogram cache opened", "backend", string(store.Backend()))
	return store, nil
}
