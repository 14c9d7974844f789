package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stackpg/internal/dataio"
	"github.com/cwbudde/algo-stackpg/internal/testutil"
	"github.com/cwbudde/algo-stackpg/periodogram/stack"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeSeries writes a 60-point CSV sharing a 9.1 d signal.
func writeSeries(t *testing.T, dir, name string, seed uint64) string {
	t.Helper()
	times := testutil.IrregularTimes(seed, 60, 90)
	values := testutil.Sum(
		testutil.Sinusoid(times, 1/9.1, 1, float64(seed)),
		testutil.GaussianNoise(seed+50, 0.3, len(times)),
	)
	var b strings.Builder
	b.WriteString("time,value,sigma\n")
	for i := range times {
		fmt.Fprintf(&b, "%.9f,%.9f,0.3\n", times[i], values[i])
	}
	path := filepath.Join(dir, name+".csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun_JSON(t *testing.T) {
	dir := t.TempDir()
	a := writeSeries(t, dir, "A", 1)
	b := writeSeries(t, dir, "B", 2)

	out, _, err := execute(t, "run", "--bootstrap", "20", "--operation", "and", "--max-freq", "0.5", "--output", "json", a, b)
	require.NoError(t, err)

	var decoded struct {
		Operation string   `json:"operation"`
		Datasets  []string `json:"datasets"`
		Peaks     []struct {
			Rank      int     `json:"rank"`
			Frequency float64 `json:"frequency"`
		} `json:"peaks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "multiplicative", decoded.Operation)
	assert.Equal(t, []string{"A", "B"}, decoded.Datasets)
	require.NotEmpty(t, decoded.Peaks)
	assert.InDelta(t, 1/9.1, decoded.Peaks[0].Frequency, 0.5/90)
}

func TestRun_TableAndParquet(t *testing.T) {
	dir := t.TempDir()
	a := writeSeries(t, dir, "A", 3)
	prefix := filepath.Join(dir, "export")

	out, _, err := execute(t, "run", "-b", "10", "-n", "3", "--parquet", prefix, a)
	require.NoError(t, err)
	assert.Contains(t, out, "Stacked (OR) periodogram of 1 datasets")
	assert.FileExists(t, prefix+"_spectra.parquet")
	assert.FileExists(t, prefix+"_peaks.parquet")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	a := writeSeries(t, dir, "A", 4)
	cfgPath := filepath.Join(dir, "stackpg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: csv\nbootstrap: 10\npeak-limit: 2\n"), 0o644))

	out, _, err := execute(t, "run", "--config", cfgPath, a)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "dataset,rank,frequency,period,power,fap,label", lines[0])
	assert.Len(t, lines, 3)
}

func TestRun_Cache(t *testing.T) {
	dir := t.TempDir()
	a := writeSeries(t, dir, "A", 5)
	b := writeSeries(t, dir, "B", 6)
	db := filepath.Join(dir, "cache.db")
	cacheArgs := []string{"--cache-backend", "sqlite", "--cache-db-connect", db}

	for range 2 {
		_, _, err := execute(t, append([]string{"run", "-b", "5", a, b}, cacheArgs...)...)
		require.NoError(t, err)
	}

	out, _, err := execute(t, append([]string{"cache", "status"}, cacheArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, ": 2 periodograms")

	_, _, err = execute(t, append([]string{"cache", "clear"}, cacheArgs...)...)
	require.NoError(t, err)
	out, _, err = execute(t, append([]string{"cache", "status"}, cacheArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, ": 0 periodograms")

	_, _, err = execute(t, "cache", "status")
	assert.ErrorIs(t, err, errCacheDisabled)
}

func TestGrid(t *testing.T) {
	dir := t.TempDir()
	a := writeSeries(t, dir, "A", 7)
	b := writeSeries(t, dir, "B", 8)

	out, _, err := execute(t, "grid", "--oversampling", "10", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "Grid linear[")
	assert.Contains(t, out, "Resolution")
}

func writePeriodogram(t *testing.T, path string, freqs, power []float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("# frequency power\n")
	for i := range freqs {
		fmt.Fprintf(&b, "%g %g\n", freqs[i], power[i])
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestCombine(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "HD1234")
	require.NoError(t, os.Mkdir(dir, 0o755))

	freqs := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	writePeriodogram(t, filepath.Join(dir, "a.dat"), freqs, []float64{1, 5, 1, 1, 1})
	writePeriodogram(t, filepath.Join(dir, "b.dat"), freqs, []float64{2, 6, 2, 1, 3})
	writePeriodogram(t, filepath.Join(dir, "c.dat"), []float64{0.1, 0.2}, []float64{1, 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("observing log\n"), 0o644))

	out, _, err := execute(t, "combine", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Combined 2 periodograms (2 skipped)")

	table := filepath.Join(dir, "HD1234_StackedPG.dat")
	f, err := os.Open(table)
	require.NoError(t, err)
	defer f.Close()
	content, err := os.ReadFile(table)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# frec AND OR\n"))

	and, err := dataio.ReadPeriodogram(f, "and", dataio.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, freqs, and.Frequencies)
	assert.Equal(t, 1, testutil.ArgMax(and.Power))
	assert.InDelta(t, 1, stack.Trapezoid(and.Frequencies, and.Power), 1e-6)

	// A rerun ignores the stacked table it wrote.
	out, _, err = execute(t, "combine", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Combined 2 periodograms (2 skipped)")
}

func TestCombine_Stdout(t *testing.T) {
	dir := t.TempDir()
	freqs := []float64{1, 2, 3}
	writePeriodogram(t, filepath.Join(dir, "a.dat"), freqs, []float64{1, 2, 1})

	out, _, err := execute(t, "combine", "--out", "-", "--raw", "--header=false", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "2.000000000 2.000001000 2.000000000", lines[1])
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeSeries(t, dir, "A", 9)

	_, _, err := execute(t, "run", "--operation", "xor", a)
	assert.Error(t, err)

	_, _, err = execute(t, "run", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, _, err = execute(t, "run")
	assert.Error(t, err)

	_, _, err = execute(t, "combine", t.TempDir())
	assert.Error(t, err)
}
