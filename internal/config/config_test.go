package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stackpg/analysis"
	"github.com/cwbudde/algo-stackpg/internal/cache"
	"github.com/cwbudde/algo-stackpg/internal/report"
	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
	"github.com/cwbudde/algo-stackpg/periodogram/significance"
	"github.com/cwbudde/algo-stackpg/periodogram/stack"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, analysis.DefaultConfig(), s.Analysis)
	assert.Equal(t, report.FormatTable, s.Output)
	assert.Equal(t, cache.BackendNone, s.CacheBackend)
	assert.Equal(t, cache.DefaultTable, s.CacheTable)
	assert.Equal(t, DefaultPrecision, s.Precision)
	assert.True(t, s.Table.Header)
	assert.Equal(t, "#", s.Table.Comment)
}

func TestLoad_YAML(t *testing.T) {
	const doc = `
operation: AND
spacing: log
normalization: amplitude
method: fast
fap-method: analytic
bootstrap: 250
seed: 42
min-freq: 0.01
max-freq: 2.5
peak-limit: 5
epsilon: 1e-4
scaling: unit-area
normalize-output: true
individual: true
workers: 3
output: json
cache-backend: sqlite
log-format: logfmt
separator: ","
`
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))

	s, err := Load(v)
	require.NoError(t, err)

	c := s.Analysis
	assert.Equal(t, stack.Multiplicative, c.Operation)
	assert.Equal(t, grid.Logarithmic, c.Spacing)
	assert.Equal(t, lombscargle.NormAmplitude, c.Normalization)
	assert.Equal(t, lombscargle.MethodFast, c.Method)
	assert.Equal(t, significance.MethodAnalytic, c.FAPMethod)
	assert.Equal(t, 250, c.BootstrapIterations)
	assert.Equal(t, uint64(42), c.Seed)
	assert.Equal(t, 0.01, c.MinFrequency)
	assert.Equal(t, 2.5, c.MaxFrequency)
	assert.Equal(t, 5, c.PeakLimit)
	assert.Equal(t, 1e-4, c.Epsilon)
	assert.Equal(t, stack.ScaleUnitArea, c.Scaling)
	assert.True(t, c.NormalizeOutput)
	assert.True(t, c.IndividualSignificance)
	assert.Equal(t, 3, c.Workers)

	assert.Equal(t, report.FormatJSON, s.Output)
	assert.Equal(t, cache.BackendSQLite, s.CacheBackend)
	assert.Equal(t, "logfmt", s.LogFormat)
	assert.Equal(t, ",", s.Table.Separator)
}

func TestLoad_Overrides(t *testing.T) {
	v := newViper()
	v.Set("weights", []string{"TESS=2", "Kepler=0.5"})
	v.Set("bootstrap", 10)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"TESS": 2, "Kepler": 0.5}, s.Analysis.DatasetWeights)
	assert.Equal(t, 10, s.Analysis.BootstrapIterations)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]map[string]any{
		"operation":     {"operation": "xor"},
		"spacing":       {"spacing": "cubic"},
		"normalization": {"normalization": "psd"},
		"fap method":    {"fap-method": "baluev"},
		"output":        {"output": "xml"},
		"backend":       {"cache-backend": "redis"},
		"precision":     {"precision": 0},
		"weights":       {"weights": []string{"A"}},
		"bootstrap":     {"bootstrap": 0},
		"mult weights":  {"operation": "multiplicative", "weights": []string{"A=2"}},
		"log level":     {"log-level": "loud"},
		"log format":    {"log-format": "xml"},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			v := newViper()
			for k, val := range overrides {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvalidAnalysisWrapsSentinel(t *testing.T) {
	v := newViper()
	v.Set("oversampling", -1)
	_, err := Load(v)
	assert.ErrorIs(t, err, analysis.ErrInvalidConfig)
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(nil)
	require.NoError(t, err)
	assert.Nil(t, w)

	w, err = ParseWeights([]string{" A = 1.5 ", "b=3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 1.5, "b": 3}, w)

	for _, bad := range [][]string{{"=1"}, {"A=x"}, {"A=1", "A=2"}, {"A"}} {
		_, err := ParseWeights(bad)
		assert.Error(t, err, bad)
	}
}
