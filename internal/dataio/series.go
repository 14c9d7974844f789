// Package dataio reads observations and precomputed periodograms from text
// files and writes stacked tables and parquet exports.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// ErrMalformed reports input that cannot be decoded.
var ErrMalformed = errors.New("dataio: malformed input")

// ReadSeries decodes CSV rows of time, value and an optional uncertainty.
// Lines starting with '#' are skipped, and so is a first row whose time
// column is not numeric. Either every row carries an uncertainty or none
// does.
func ReadSeries(r io.Reader, label string) (*series.Series, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var times, values, sigmas []float64
	columns := 0
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, label, err)
		}
		if row == 1 && len(rec) > 0 {
			if _, err := parseFloat(rec[0]); err != nil {
				continue // header
			}
		}
		if len(rec) != 2 && len(rec) != 3 {
			return nil, fmt.Errorf("%w: %s line %d: want 2 or 3 columns, got %d", ErrMalformed, label, row, len(rec))
		}
		if columns == 0 {
			columns = len(rec)
		} else if len(rec) != columns {
			return nil, fmt.Errorf("%w: %s line %d: column count changed from %d to %d", ErrMalformed, label, row, columns, len(rec))
		}

		vals := make([]float64, len(rec))
		for i, field := range rec {
			v, err := parseFloat(field)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d column %d: %v", ErrMalformed, label, row, i+1, err)
			}
			vals[i] = v
		}
		times = append(times, vals[0])
		values = append(values, vals[1])
		if columns == 3 {
			sigmas = append(sigmas, vals[2])
		}
	}
	return series.New(label, times, values, sigmas)
}

// ReadSeriesFile reads a series labelled by the file name without extension.
func ReadSeriesFile(path string) (*series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataio: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSeries(f, Label(path))
}

// Label derives a dataset label from a path.
func Label(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
