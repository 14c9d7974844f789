// Command stackpg computes stacked Lomb-Scargle periodograms of several
// irregularly sampled time series.
//
// Usage:
//
//	stackpg run [flags] series.csv...
//	stackpg combine [flags] dir
//	stackpg grid [flags] series.csv...
//	stackpg cache status|clear
//
// Settings merge, in increasing precedence, built-in defaults,
// .stackpg.yaml (current directory or $HOME, or --config), STACKPG_*
// environment variables and flags.
//
// Examples:
//
//	stackpg run --operation and --bootstrap 2000 tess.csv kepler.csv
//	stackpg run --fap-method analytic --output json star.csv
//	stackpg combine --case HD1234 periodograms/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "stackpg:", err)
		stop()
		os.Exit(1)
	}
}
