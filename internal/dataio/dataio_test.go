package dataio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stackpg/analysis"
	"github.com/cwbudde/algo-stackpg/internal/testutil"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

func TestReadSeries(t *testing.T) {
	in := "# instrument A\ntime,value,sigma\n0.5, 1.0, 0.1\n1.5,2.0,0.2\n3.0,0.5,0.1\n"
	s, err := ReadSeries(strings.NewReader(in), "A")
	require.NoError(t, err)

	assert.Equal(t, "A", s.Label())
	assert.Equal(t, []float64{0.5, 1.5, 3.0}, s.Times())
	assert.Equal(t, []float64{1.0, 2.0, 0.5}, s.Values())
	assert.Equal(t, []float64{0.1, 0.2, 0.1}, s.Uncertainties())
}

func TestReadSeries_NoUncertainties(t *testing.T) {
	s, err := ReadSeries(strings.NewReader("0,1\n1,2\n2,3\n"), "B")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Empty(t, s.Uncertainties())
}

func TestReadSeries_Errors(t *testing.T) {
	tests := map[string]string{
		"one column":      "1\n2\n",
		"four columns":    "1,2,3,4\n",
		"changed columns": "0,1,0.1\n1,2\n",
		"bad number":      "0,1\n1,x\n",
		"non-finite":      "0,1\n1,NaN\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSeries(strings.NewReader(in), name)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := ReadSeries(strings.NewReader("1,1\n0,2\n"), "unsorted")
	assert.ErrorIs(t, err, series.ErrInvalidSeries)
}

func TestReadSeriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tess_s12.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,1\n1,2\n"), 0o644))

	s, err := ReadSeriesFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tess_s12", s.Label())

	_, err = ReadSeriesFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadPeriodogram(t *testing.T) {
	in := "# freq power\n0.1  2.0   extra\n0.2 4.0 # inline\n\n0.3 1.0\n"
	pg, err := ReadPeriodogram(strings.NewReader(in), "pg", DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, pg.Frequencies)
	assert.Equal(t, []float64{2, 4, 1}, pg.Power)

	semi := Format{Separator: ";", Comment: "%"}
	pg, err = ReadPeriodogram(strings.NewReader("% header\n1; 5\n2 ;6\n"), "semi", semi)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, pg.Power)
}

func TestReadPeriodogram_Errors(t *testing.T) {
	tests := map[string]string{
		"single column": "0.1\n0.2\n",
		"one row":       "0.1 1\n",
		"decreasing":    "0.2 1\n0.1 1\n",
		"text":          "a b\nc d\n",
		"empty":         "",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPeriodogram(strings.NewReader(in), name, DefaultFormat())
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReadPeriodogramDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("b.dat", "0.1 1\n0.2 2\n")
	write("a.dat", "0.1 3\n0.2 4\n")
	write("broken.dat", "not a periodogram\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	pgs, skipped, err := ReadPeriodogramDir(dir, DefaultFormat())
	require.NoError(t, err)
	require.Len(t, pgs, 2)
	assert.Equal(t, "a", pgs[0].Label)
	assert.Equal(t, "b", pgs[1].Label)
	require.Len(t, skipped, 1)
	assert.Equal(t, filepath.Join(dir, "broken.dat"), skipped[0].Path)
	assert.ErrorIs(t, skipped[0].Err, ErrMalformed)

	_, _, err = ReadPeriodogramDir(filepath.Join(dir, "nope"), DefaultFormat())
	assert.Error(t, err)
}

func TestWriteStackedTable(t *testing.T) {
	var buf bytes.Buffer
	f := DefaultFormat()
	f.Header = true
	require.NoError(t, WriteStackedTable(&buf, []float64{0.1, 0.2}, []float64{1.5, 0.25}, []float64{2, 3}, f))
	want := "# frec AND OR\n0.100000000 1.500000000 2.000000000\n0.200000000 0.250000000 3.000000000\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, WriteStackedTable(&buf, []float64{1}, []float64{2}, []float64{3}, Format{Separator: ","}))
	assert.Equal(t, "1.000000000,2.000000000,3.000000000\n", buf.String())

	assert.Error(t, WriteStackedTable(&buf, []float64{1, 2}, []float64{1}, []float64{1, 2}, f))
}

func TestStackedTableRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := DefaultFormat()
	f.Header = true
	require.NoError(t, WriteStackedTable(&buf, []float64{0.1, 0.2, 0.3}, []float64{1, 2, 3}, []float64{4, 5, 6}, f))

	pg, err := ReadPeriodogram(&buf, "stacked", f)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, pg.Power)
}

func TestParquetExport(t *testing.T) {
	times := testutil.IrregularTimes(9, 30, 40)
	a, err := series.New("A", times, testutil.Sinusoid(times, 0.2, 1, 0), nil)
	require.NoError(t, err)
	b, err := series.New("B", times, testutil.Sinusoid(times, 0.2, 1, 1), nil)
	require.NoError(t, err)

	cfg := analysis.NewConfig(analysis.WithBootstrap(5, 1), analysis.WithFrequencyRange(0, 0.5), analysis.WithPeaks(0, 1, 3))
	an, err := analysis.New(cfg)
	require.NoError(t, err)
	report, err := an.Run(context.Background(), []*series.Series{a, b})
	require.NoError(t, err)

	rows := SpectrumRows(report)
	require.Len(t, rows, 3*report.Grid.Len())
	assert.Equal(t, "A", rows[0].Dataset)
	assert.Equal(t, StackedLabel, rows[len(rows)-1].Dataset)

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, rows))
	got, err := parquet.Read[SpectrumRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	peaks := PeakRows(report)
	require.NotEmpty(t, peaks)
	assert.EqualValues(t, 1, peaks[0].Rank)

	path := filepath.Join(t.TempDir(), "peaks.parquet")
	require.NoError(t, WriteParquetFile(path, peaks))
	back, err := parquet.ReadFile[PeakRow](path)
	require.NoError(t, err)
	assert.Equal(t, peaks, back)
}
