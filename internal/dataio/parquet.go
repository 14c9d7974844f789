package dataio

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/cwbudde/algo-stackpg/analysis"
)

// StackedLabel names the stacked spectrum in SpectrumRows.
const StackedLabel = "stacked"

// SpectrumRow is one frequency of one spectrum of a run.
type SpectrumRow struct {
	RunID     string  `parquet:"run_id,dict,snappy"`
	Dataset   string  `parquet:"dataset,dict,snappy"`
	Frequency float64 `parquet:"frequency,snappy"`
	Power     float64 `parquet:"power,snappy"`
}

// PeakRow is one ranked peak of a run.
type PeakRow struct {
	RunID     string  `parquet:"run_id,dict,snappy"`
	Dataset   string  `parquet:"dataset,dict,snappy"`
	Rank      int32   `parquet:"rank,snappy"`
	Frequency float64 `parquet:"frequency,snappy"`
	Period    float64 `parquet:"period,snappy"`
	Power     float64 `parquet:"power,snappy"`
	FAP       float64 `parquet:"fap,snappy"`
}

// SpectrumRows flattens the individual periodograms and the stacked spectrum
// of r, in that order.
func SpectrumRows(r *analysis.Report) []SpectrumRow {
	freqs := r.Grid.Frequencies()
	run := r.RunID.String()
	rows := make([]SpectrumRow, 0, (len(r.Individual)+1)*len(freqs))
	add := func(label string, power []float64) {
		for i, f := range freqs {
			rows = append(rows, SpectrumRow{RunID: run, Dataset: label, Frequency: f, Power: power[i]})
		}
	}
	for _, ind := range r.Individual {
		add(ind.Label, ind.Power)
	}
	if r.Stacked != nil {
		add(StackedLabel, r.Stacked.Power)
	}
	return rows
}

// PeakRows flattens the stacked peaks and, when present, the peaks of every
// dataset.
func PeakRows(r *analysis.Report) []PeakRow {
	run := r.RunID.String()
	var rows []PeakRow
	for _, p := range r.Peaks {
		rows = append(rows, PeakRow{RunID: run, Dataset: StackedLabel, Rank: int32(p.Rank), Frequency: p.Frequency, Period: p.Period, Power: p.Power, FAP: p.FAP})
	}
	for i, found := range r.IndividualPeaks {
		label := r.Individual[i].Label
		for _, p := range found {
			rows = append(rows, PeakRow{RunID: run, Dataset: label, Rank: int32(p.Rank), Frequency: p.Frequency, Period: p.Period, Power: p.Power, FAP: p.FAP})
		}
	}
	return rows
}

// WriteParquet writes rows with a schema inferred from the struct tags of T.
func WriteParquet[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("dataio: write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("dataio: close parquet writer: %w", err)
	}
	return nil
}

// WriteParquetFile creates path and writes rows to it.
func WriteParquetFile[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataio: create %s: %w", path, err)
	}
	if err := WriteParquet(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
