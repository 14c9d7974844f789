package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
)

func (a *app) newGridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grid series.csv...",
		Short: "Print the shared frequency grid of a set of time series.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := readSeries(args)
			if err != nil {
				return err
			}
			g, err := grid.Build(set, a.settings.Analysis.GridOptions()...)
			if err != nil {
				return err
			}
			return a.writer().WriteGrid(a.out, g, set)
		},
	}
}
