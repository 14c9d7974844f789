// Package config turns the merged viper settings of the stackpg command into
// a validated analysis configuration plus the settings of the outer layers.
package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/cwbudde/algo-stackpg/analysis"
	"github.com/cwbudde/algo-stackpg/internal/cache"
	"github.com/cwbudde/algo-stackpg/internal/dataio"
	"github.com/cwbudde/algo-stackpg/internal/logging"
	"github.com/cwbudde/algo-stackpg/internal/report"
	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
	"github.com/cwbudde/algo-stackpg/periodogram/significance"
	"github.com/cwbudde/algo-stackpg/periodogram/stack"
)

// Defaults of the settings that analysis.DefaultConfig does not cover.
const (
	DefaultLogLevel  = "info"
	DefaultPrecision = 6
)

// Raw holds the unvalidated inputs from defaults, config file, environment
// and flags. Viper unmarshals into it.
type Raw struct {
	Operation      string  `mapstructure:"operation"`
	Oversampling   float64 `mapstructure:"oversampling"`
	NyquistFactor  float64 `mapstructure:"nyquist-factor"`
	MinFrequency   float64 `mapstructure:"min-freq"`
	MaxFrequency   float64 `mapstructure:"max-freq"`
	MaxFrequencies int     `mapstructure:"max-frequencies"`
	Spacing        string  `mapstructure:"spacing"`
	Normalization  string  `mapstructure:"normalization"`
	Method         string  `mapstructure:"method"`

	FAPMethod          string  `mapstructure:"fap-method"`
	Bootstrap          int     `mapstructure:"bootstrap"`
	BootstrapMinPoints int     `mapstructure:"bootstrap-min-points"`
	Seed               uint64  `mapstructure:"seed"`
	ThresholdFAP       float64 `mapstructure:"threshold-fap"`
	Individual         bool    `mapstructure:"individual"`

	PeakSeparation float64 `mapstructure:"peak-separation"`
	PeakMaxFAP     float64 `mapstructure:"peak-max-fap"`
	PeakLimit      int     `mapstructure:"peak-limit"`

	// Weights are "label=weight" pairs. Viper lowercases map keys, so labels
	// are kept in values to stay case-sensitive.
	Weights         []string `mapstructure:"weights"`
	Epsilon         float64  `mapstructure:"epsilon"`
	Scaling         string   `mapstructure:"scaling"`
	NormalizeOutput bool     `mapstructure:"normalize-output"`
	Workers         int      `mapstructure:"workers"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	Output    string `mapstructure:"output"`
	Precision int    `mapstructure:"precision"`

	CacheBackend string `mapstructure:"cache-backend"`
	CacheConnect string `mapstructure:"cache-db-connect"`
	CacheTable   string `mapstructure:"cache-table"`

	Parquet   string `mapstructure:"parquet"`
	Separator string `mapstructure:"separator"`
	Comment   string `mapstructure:"comment"`
	Header    bool   `mapstructure:"header"`
}

// Settings is the validated configuration of one command invocation.
type Settings struct {
	Analysis analysis.Config

	LogLevel  string
	LogFormat string
	Output    report.Format
	Precision int

	CacheBackend cache.Backend
	CacheConnect string
	CacheTable   string

	// Parquet is the path prefix of parquet exports; empty disables them.
	Parquet string
	Table   dataio.Format
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	d := analysis.DefaultConfig()
	v.SetDefault("operation", d.Operation.String())
	v.SetDefault("oversampling", d.Oversampling)
	v.SetDefault("nyquist-factor", d.NyquistFactor)
	v.SetDefault("min-freq", d.MinFrequency)
	v.SetDefault("max-freq", d.MaxFrequency)
	v.SetDefault("max-frequencies", d.MaxFrequencies)
	v.SetDefault("spacing", d.Spacing.String())
	v.SetDefault("normalization", d.Normalization.String())
	v.SetDefault("method", d.Method.String())
	v.SetDefault("fap-method", d.FAPMethod.String())
	v.SetDefault("bootstrap", d.BootstrapIterations)
	v.SetDefault("bootstrap-min-points", d.BootstrapMinPoints)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("threshold-fap", d.ThresholdFAP)
	v.SetDefault("individual", d.IndividualSignificance)
	v.SetDefault("peak-separation", d.PeakMinSeparation)
	v.SetDefault("peak-max-fap", d.PeakMaxFAP)
	v.SetDefault("peak-limit", d.PeakLimit)
	v.SetDefault("weights", []string{})
	v.SetDefault("epsilon", d.Epsilon)
	v.SetDefault("scaling", d.Scaling.String())
	v.SetDefault("normalize-output", d.NormalizeOutput)
	v.SetDefault("workers", d.Workers)

	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("log-format", logging.FormatText)
	v.SetDefault("output", string(report.FormatTable))
	v.SetDefault("precision", DefaultPrecision)

	v.SetDefault("cache-backend", string(cache.BackendNone))
	v.SetDefault("cache-db-connect", "")
	v.SetDefault("cache-table", cache.DefaultTable)

	t := dataio.DefaultFormat()
	v.SetDefault("parquet", "")
	v.SetDefault("separator", t.Separator)
	v.SetDefault("comment", t.Comment)
	v.SetDefault("header", true)
}

// Load unmarshals v and validates the result.
func Load(v *viper.Viper) (Settings, error) {
	var raw Raw
	if err := v.Unmarshal(&raw); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return Process(raw)
}

// Process parses names and validates raw.
func Process(raw Raw) (Settings, error) {
	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	name := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	op, err := stack.ParseOperation(name(raw.Operation))
	record(err)
	spacing, err := grid.ParseSpacing(name(raw.Spacing))
	record(err)
	norm, err := lombscargle.ParseNormalization(name(raw.Normalization))
	record(err)
	method, err := lombscargle.ParseMethod(name(raw.Method))
	record(err)
	fapMethod, err := significance.ParseMethod(name(raw.FAPMethod))
	record(err)
	scaling, err := stack.ParseScaling(raw.Scaling)
	record(err)
	weights, err := ParseWeights(raw.Weights)
	record(err)
	output, err := report.ParseFormat(raw.Output)
	record(err)
	backend, err := cache.ParseBackend(raw.CacheBackend)
	record(err)
	if raw.Precision < 1 || raw.Precision > 17 {
		record(fmt.Errorf("precision must be in [1, 17], got %d", raw.Precision))
	}
	if len(errs) > 0 {
		return Settings{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}

	cfg := analysis.NewConfig(
		analysis.WithOperation(op),
		analysis.WithOversampling(raw.Oversampling),
		analysis.WithNyquistFactor(raw.NyquistFactor),
		analysis.WithFrequencyRange(raw.MinFrequency, raw.MaxFrequency),
		analysis.WithMaxFrequencies(raw.MaxFrequencies),
		analysis.WithSpacing(spacing),
		analysis.WithNormalization(norm),
		analysis.WithMethod(method),
		analysis.WithFAPMethod(fapMethod),
		analysis.WithBootstrap(raw.Bootstrap, raw.Seed),
		analysis.WithBootstrapMinPoints(raw.BootstrapMinPoints),
		analysis.WithThresholdFAP(raw.ThresholdFAP),
		analysis.WithIndividualSignificance(raw.Individual),
		analysis.WithPeaks(raw.PeakSeparation, raw.PeakMaxFAP, raw.PeakLimit),
		analysis.WithDatasetWeights(weights),
		analysis.WithEpsilon(raw.Epsilon),
		analysis.WithScaling(scaling, raw.NormalizeOutput),
		analysis.WithWorkers(raw.Workers),
	)
	if err := cfg.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}

	// Validate the logger settings by building one.
	if _, err := logging.New(io.Discard, raw.LogLevel, raw.LogFormat); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}

	return Settings{
		Analysis:     cfg,
		LogLevel:     raw.LogLevel,
		LogFormat:    raw.LogFormat,
		Output:       output,
		Precision:    raw.Precision,
		CacheBackend: backend,
		CacheConnect: raw.CacheConnect,
		CacheTable:   raw.CacheTable,
		Parquet:      raw.Parquet,
		Table: dataio.Format{
			Separator: raw.Separator,
			Comment:   raw.Comment,
			Header:    raw.Header,
		},
	}, nil
}

// ParseWeights decodes "label=weight" pairs. It returns nil for no pairs.
func ParseWeights(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		label, value, ok := strings.Cut(pair, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("weight %q: want label=weight", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", pair, err)
		}
		if _, dup := out[label]; dup {
			return nil, fmt.Errorf("weight %q: label given twice", pair)
		}
		out[label] = w
	}
	return out, nil
}
