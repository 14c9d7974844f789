package dataio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format describes delimited numeric text tables.
type Format struct {
	// Separator splits columns. A blank separator splits on runs of
	// whitespace.
	Separator string
	// Comment starts a comment that runs to the end of the line.
	Comment string
	// Header writes a column header line, as a comment, in
	// WriteStackedTable.
	Header bool
}

// DefaultFormat splits on whitespace and treats '#' as comment marker.
func DefaultFormat() Format {
	return Format{Separator: " ", Comment: "#"}
}

func (f Format) split(line string) []string {
	if strings.TrimSpace(f.Separator) == "" {
		return strings.Fields(line)
	}
	fields := strings.Split(line, f.Separator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func (f Format) sep() string {
	if f.Separator == "" {
		return " "
	}
	return f.Separator
}

// Periodogram is a precomputed spectrum loaded from disk.
type Periodogram struct {
	Label       string
	Frequencies []float64
	Power       []float64
}

// Skipped records a file left out of a directory read.
type Skipped struct {
	Path string
	Err  error
}

// ReadPeriodogram decodes frequency and power from the first two columns.
// Further columns are ignored. Frequencies must be strictly increasing.
func ReadPeriodogram(r io.Reader, label string, f Format) (Periodogram, error) {
	pg := Periodogram{Label: label}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if f.Comment != "" {
			if i := strings.Index(text, f.Comment); i >= 0 {
				text = text[:i]
			}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := f.split(text)
		if len(fields) < 2 {
			return Periodogram{}, fmt.Errorf("%w: %s line %d: want at least 2 columns, got %d", ErrMalformed, label, line, len(fields))
		}
		freq, err := parseFloat(fields[0])
		if err != nil {
			return Periodogram{}, fmt.Errorf("%w: %s line %d: frequency: %v", ErrMalformed, label, line, err)
		}
		power, err := parseFloat(fields[1])
		if err != nil {
			return Periodogram{}, fmt.Errorf("%w: %s line %d: power: %v", ErrMalformed, label, line, err)
		}
		if n := len(pg.Frequencies); n > 0 && freq <= pg.Frequencies[n-1] {
			return Periodogram{}, fmt.Errorf("%w: %s line %d: frequency %v not increasing", ErrMalformed, label, line, freq)
		}
		pg.Frequencies = append(pg.Frequencies, freq)
		pg.Power = append(pg.Power, power)
	}
	if err := sc.Err(); err != nil {
		return Periodogram{}, fmt.Errorf("%w: %s: %v", ErrMalformed, label, err)
	}
	if len(pg.Frequencies) < 2 {
		return Periodogram{}, fmt.Errorf("%w: %s: want at least 2 rows, got %d", ErrMalformed, label, len(pg.Frequencies))
	}
	return pg, nil
}

// ReadPeriodogramFile reads one periodogram labelled by its file name.
func ReadPeriodogramFile(path string, f Format) (Periodogram, error) {
	file, err := os.Open(path)
	if err != nil {
		return Periodogram{}, fmt.Errorf("dataio: %w", err)
	}
	defer func() { _ = file.Close() }()
	return ReadPeriodogram(file, Label(path), f)
}

// ReadPeriodogramDir reads every regular file of dir in name order. Files
// that fail to decode are reported in skipped; only an unreadable directory
// is an error.
func ReadPeriodogramDir(dir string, f Format) (pgs []Periodogram, skipped []Skipped, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("dataio: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		pg, err := ReadPeriodogramFile(path, f)
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Err: err})
			continue
		}
		pgs = append(pgs, pg)
	}
	return pgs, skipped, nil
}

// WriteStackedTable writes frequency, AND and OR columns with nine decimals.
func WriteStackedTable(w io.Writer, freqs, and, or []float64, f Format) error {
	if len(and) != len(freqs) || len(or) != len(freqs) {
		return errors.New("dataio: stacked columns differ in length")
	}
	bw := bufio.NewWriter(w)
	sep := f.sep()
	if f.Header {
		prefix := ""
		if f.Comment != "" {
			prefix = f.Comment + " "
		}
		if _, err := fmt.Fprintf(bw, "%sfrec%sAND%sOR\n", prefix, sep, sep); err != nil {
			return err
		}
	}
	for i, fr := range freqs {
		if _, err := fmt.Fprintf(bw, "%.9f%s%.9f%s%.9f\n", fr, sep, and[i], sep, or[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
