package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-stackpg/internal/dataio"
	"github.com/cwbudde/algo-stackpg/periodogram/stack"
)

// stackedSuffix marks tables written by combine so reruns skip them.
const stackedSuffix = "_StackedPG"

func (a *app) newCombineCmd() *cobra.Command {
	var (
		caseName string
		outPath  string
		raw      bool
	)
	cmd := &cobra.Command{
		Use:   "combine dir",
		Short: "Stack precomputed periodograms from a directory.",
		Long: `Reads every file of dir as a two-column periodogram (frequency, power),
scales each to unit area and writes the AND and OR stacks as a three-column
table "frec AND OR". Files that cannot be decoded, or whose frequencies differ
from the first file, are skipped and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.combine(args[0], caseName, outPath, !raw)
		},
	}
	cmd.Flags().StringVar(&caseName, "case", "", "case name used in the output file name (default: directory name)")
	cmd.Flags().StringVar(&outPath, "out", "", `output path, "-" for stdout (default: <dir>/<case>_StackedPG.dat)`)
	cmd.Flags().BoolVar(&raw, "raw", false, "combine powers as read, without unit-area scaling")
	return cmd
}

func (a *app) combine(dir, caseName, outPath string, unitArea bool) error {
	format := a.settings.Table
	pgs, skipped, err := dataio.ReadPeriodogramDir(dir, format)
	if err != nil {
		return err
	}
	pgs = slices.DeleteFunc(pgs, func(pg dataio.Periodogram) bool {
		return strings.HasSuffix(pg.Label, stackedSuffix)
	})
	if len(pgs) == 0 {
		return fmt.Errorf("no periodogram could be read from %s", dir)
	}

	freqs := pgs[0].Frequencies
	spectra := make([]stack.Spectrum, 0, len(pgs))
	for _, pg := range pgs {
		if !slices.Equal(pg.Frequencies, freqs) {
			skipped = append(skipped, dataio.Skipped{
				Path: pg.Label,
				Err:  fmt.Errorf("%w: frequencies differ from %s", stack.ErrGridMismatch, pgs[0].Label),
			})
			continue
		}
		spectra = append(spectra, stack.Spectrum{Label: pg.Label, Power: pg.Power})
	}
	for _, s := range skipped {
		a.logger.Warn("periodogram skipped", "file", s.Path, "err", s.Err)
	}

	opts := []stack.Option{stack.WithEpsilon(a.settings.Analysis.Epsilon)}
	if unitArea {
		opts = append(opts, stack.WithScaling(stack.ScaleUnitArea), stack.WithNormalizedOutput(true))
	}
	and, err := stack.CombineArrays(freqs, spectra, stack.Multiplicative, opts...)
	if err != nil {
		return err
	}
	or, err := stack.CombineArrays(freqs, spectra, stack.Additive, opts...)
	if err != nil {
		return err
	}

	if outPath == "-" {
		return dataio.WriteStackedTable(a.out, freqs, and, or, format)
	}
	if outPath == "" {
		if caseName == "" {
			caseName = filepath.Base(filepath.Clean(dir))
		}
		outPath = filepath.Join(dir, caseName+stackedSuffix+".dat")
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := dataio.WriteStackedTable(f, freqs, and, or, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("stacked periodograms written", "path", outPath, "combined", len(spectra), "skipped", len(skipped))
	fmt.Fprintf(a.out, "Combined %d periodograms (%d skipped) into %s\n", len(spectra), len(skipped), outPath)
	return nil
}
