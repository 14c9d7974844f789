package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cwbudde/algo-stackpg/analysis"
	"github.com/cwbudde/algo-stackpg/internal/config"
	"github.com/cwbudde/algo-stackpg/internal/logging"
	"github.com/cwbudde/algo-stackpg/internal/report"
)

// Set by the release build.
var version = "dev"

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v        *viper.Viper
	out      io.Writer
	errOut   io.Writer
	settings config.Settings
	logger   *log.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "stackpg",
		Short: "Stacked Lomb-Scargle periodograms of irregular time series.",
		Long: `stackpg evaluates one generalized Lomb-Scargle periodogram per dataset on a
shared frequency grid and combines them additively (OR) or multiplicatively
(AND) to enhance periodicities common to every dataset.`,
		Version:            version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	addFlags(root)
	if err := a.v.BindPFlags(root.PersistentFlags()); err != nil {
		panic(err)
	}
	config.SetDefaults(a.v)

	root.AddCommand(a.newRunCmd(), a.newCombineCmd(), a.newGridCmd(), a.newCacheCmd())
	return root
}

func addFlags(root *cobra.Command) {
	d := analysis.DefaultConfig()
	f := root.PersistentFlags()

	f.String("config", "", "config file (default .stackpg.yaml in . or $HOME)")

	f.StringP("operation", "p", d.Operation.String(), "combination: additive (OR) or multiplicative (AND)")
	f.Float64("oversampling", d.Oversampling, "grid oversampling factor")
	f.Float64("nyquist-factor", d.NyquistFactor, "multiple of the pseudo-Nyquist frequency used as grid maximum")
	f.Float64("min-freq", 0, "minimum grid frequency (0 derives it from the span)")
	f.Float64("max-freq", 0, "maximum grid frequency (0 derives it from the cadence)")
	f.Int("max-frequencies", 0, "cap on the grid size (0 is unlimited)")
	f.String("spacing", d.Spacing.String(), "grid spacing: linear or log")
	f.String("normalization", d.Normalization.String(), "power normalization: variance or amplitude")
	f.String("method", d.Method.String(), "periodogram algorithm: direct or fast")

	f.String("fap-method", d.FAPMethod.String(), "false-alarm estimate: analytic or bootstrap")
	f.IntP("bootstrap", "b", d.BootstrapIterations, "bootstrap iterations")
	f.Int("bootstrap-min-points", d.BootstrapMinPoints, "smallest series accepted by the bootstrap")
	f.Uint64("seed", d.Seed, "bootstrap random seed")
	f.Float64("threshold-fap", d.ThresholdFAP, "FAP level reported as power threshold")
	f.Bool("individual", false, "also assess and list peaks of every dataset")

	f.Float64("peak-separation", 0, "merge peaks closer than this frequency distance")
	f.Float64("peak-max-fap", d.PeakMaxFAP, "only report peaks with FAP at or below this")
	f.IntP("peak-limit", "n", d.PeakLimit, "number of peaks to report (0 is all)")

	f.StringSlice("weights", nil, "additive weights as label=weight")
	f.Float64("epsilon", d.Epsilon, "shift added to every power before multiplication")
	f.String("scaling", d.Scaling.String(), "input scaling: none or unit-area")
	f.Bool("normalize-output", false, "scale the stacked spectrum to unit area")
	f.IntP("workers", "w", d.Workers, "concurrent workers")

	f.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	f.String("log-format", logging.FormatText, "log format: text, json or logfmt")
	f.StringP("output", "o", string(report.FormatTable), "output format: table, json or csv")
	f.Int("precision", config.DefaultPrecision, "significant digits in reports")

	f.String("cache-backend", "none", "periodogram cache: sqlite, postgresql, mysql or none")
	f.String("cache-db-connect", "", "cache connection string (sqlite: file path)")
	f.String("cache-table", "", "cache table name")

	f.String("parquet", "", "path prefix of parquet exports")
	f.String("separator", " ", "column separator of periodogram tables")
	f.String("comment", "#", "comment marker of periodogram tables")
	f.Bool("header", true, "write a header line in stacked tables")
}

// setup merges all configuration sources and validates the result.
func (a *app) setup() error {
	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	} else {
		a.v.SetConfigName(".stackpg")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME")
	}
	a.v.SetEnvPrefix("STACKPG")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	settings, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.settings = settings

	a.logger, err = logging.New(a.errOut, settings.LogLevel, settings.LogFormat)
	if err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("config file loaded", "path", used)
	}
	return nil
}

func (a *app) writer() report.Writer {
	return report.Writer{Format: a.settings.Output, Precision: a.settings.Precision}
}
