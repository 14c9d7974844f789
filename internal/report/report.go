// Package report renders analysis results as terminal tables, JSON or CSV.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cwbudde/algo-stackpg/analysis"
	"github.com/cwbudde/algo-stackpg/periodogram/peaks"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ParseFormat resolves an output format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q (want table, json or csv)", name)
	}
}

// Significance bands of a false-alarm probability.
const (
	StrongFAP      = 0.001
	SignificantFAP = 0.01
	MarginalFAP    = 0.1
)

var (
	strongColor      = color.New(color.FgRed, color.Bold)
	significantColor = color.New(color.FgYellow, color.Bold)
	marginalColor    = color.New(color.FgGreen)
	noiseColor       = color.New(color.FgHiBlack)
)

// Label names the significance band of fap.
func Label(fap float64) string {
	switch {
	case fap < StrongFAP:
		return "strong"
	case fap < SignificantFAP:
		return "significant"
	case fap < MarginalFAP:
		return "marginal"
	default:
		return "noise"
	}
}

// ColorLabel is Label coloured by band.
func ColorLabel(fap float64) string {
	text := Label(fap)
	switch {
	case fap < StrongFAP:
		return strongColor.Sprint(text)
	case fap < SignificantFAP:
		return significantColor.Sprint(text)
	case fap < MarginalFAP:
		return marginalColor.Sprint(text)
	default:
		return noiseColor.Sprint(text)
	}
}

// Writer renders reports.
type Writer struct {
	Format    Format
	Precision int
}

// Write renders r to w.
func (wr Writer) Write(w io.Writer, r *analysis.Report) error {
	switch wr.Format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return wr.writeCSV(w, r)
	default:
		return wr.writeTables(w, r)
	}
}

func (wr Writer) float(x float64) string {
	prec := wr.Precision
	if prec <= 0 {
		prec = 6
	}
	return strconv.FormatFloat(x, 'g', prec, 64)
}

func (wr Writer) writeTables(out io.Writer, r *analysis.Report) error {
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "Stacked (%s) periodogram of %d datasets, grid %s\n",
		r.Stacked.Operation.Label(), len(r.Individual), r.Grid.String())
	if err := wr.peakTable(w, r.Peaks); err != nil {
		return err
	}
	for i, found := range r.IndividualPeaks {
		fmt.Fprintf(w, "\nDataset %s\n", r.Individual[i].Label)
		if err := wr.peakTable(w, found); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "FAP method: %s", r.Significance.Method)
	if r.Significance.Method != r.Significance.Requested {
		fmt.Fprintf(w, " (requested %s)", r.Significance.Requested)
	}
	fmt.Fprintf(w, ". Power at FAP %g: %s\n", r.Config.ThresholdFAP, wr.float(r.Threshold))
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	fmt.Fprintf(w, "Run %s completed in %v\n", r.RunID, r.Elapsed.Round(time.Millisecond))
	return w.Flush()
}

func (wr Writer) peakTable(w io.Writer, found []peaks.Peak) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Frequency", "Period", "Power", "FAP", "Label"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(found))
	for _, p := range found {
		data = append(data, []string{
			strconv.Itoa(p.Rank),
			wr.float(p.Frequency),
			wr.float(p.Period),
			wr.float(p.Power),
			wr.float(p.FAP),
			ColorLabel(p.FAP),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

type jsonPeak struct {
	Rank      int     `json:"rank"`
	Frequency float64 `json:"frequency"`
	Period    float64 `json:"period"`
	Power     float64 `json:"power"`
	FAP       float64 `json:"fap"`
	Label     string  `json:"label"`
}

type jsonReport struct {
	RunID      string                `json:"run_id"`
	Operation  string                `json:"operation"`
	Grid       string                `json:"grid"`
	Datasets   []string              `json:"datasets"`
	FAPMethod  string                `json:"fap_method"`
	Threshold  float64               `json:"threshold"`
	Peaks      []jsonPeak            `json:"peaks"`
	Individual map[string][]jsonPeak `json:"individual,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
	ElapsedMs  int64                 `json:"elapsed_ms"`
}

func toJSONPeaks(found []peaks.Peak) []jsonPeak {
	out := make([]jsonPeak, len(found))
	for i, p := range found {
		out[i] = jsonPeak{Rank: p.Rank, Frequency: p.Frequency, Period: p.Period, Power: p.Power, FAP: p.FAP, Label: Label(p.FAP)}
	}
	return out
}

func writeJSON(w io.Writer, r *analysis.Report) error {
	out := jsonReport{
		RunID:     r.RunID.String(),
		Operation: r.Stacked.Operation.String(),
		Grid:      r.Grid.String(),
		FAPMethod: r.Significance.Method.String(),
		Threshold: r.Threshold,
		Peaks:     toJSONPeaks(r.Peaks),
		Warnings:  r.Warnings,
		ElapsedMs: r.Elapsed.Milliseconds(),
	}
	for _, ind := range r.Individual {
		out.Datasets = append(out.Datasets, ind.Label)
	}
	if len(r.IndividualPeaks) > 0 {
		out.Individual = make(map[string][]jsonPeak, len(r.IndividualPeaks))
		for i, found := range r.IndividualPeaks {
			out.Individual[r.Individual[i].Label] = toJSONPeaks(found)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeCSV emits one row per peak, stacked first.
func (wr Writer) writeCSV(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dataset", "rank", "frequency", "period", "power", "fap", "label"}); err != nil {
		return err
	}
	write := func(dataset string, found []peaks.Peak) error {
		for _, p := range found {
			row := []string{dataset, strconv.Itoa(p.Rank), wr.float(p.Frequency), wr.float(p.Period), wr.float(p.Power), wr.float(p.FAP), Label(p.FAP)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write("stacked", r.Peaks); err != nil {
		return err
	}
	for i, found := range r.IndividualPeaks {
		if err := write(r.Individual[i].Label, found); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
