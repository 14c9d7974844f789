package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// WriteGrid describes the shared grid g and the sampling of every dataset
// it was built from.
func (wr Writer) WriteGrid(out io.Writer, g grid.Grid, set []*series.Series) error {
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "Grid %s\n", g.String())
	fmt.Fprintf(w, "Resolution %s, periods %s to %s\n",
		wr.float(g.Resolution()), wr.float(1/g.Stop), periodText(wr, g.Start))

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Dataset", "Points", "Span", "Median gap", "Min gap", "Weighted"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	data := make([][]string, 0, len(set))
	for _, s := range set {
		data = append(data, []string{
			s.Label(),
			strconv.Itoa(s.Len()),
			wr.float(s.Span()),
			wr.float(s.MedianGap()),
			wr.float(s.MinGap()),
			strconv.FormatBool(s.IsWeighted()),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	return w.Flush()
}

func periodText(wr Writer, f float64) string {
	if f == 0 {
		return "inf"
	}
	return wr.float(1 / f)
}
