package lombscargle

import (
	"fmt"
	"testing"

	"github.com/cwbudde/algo-stackpg/internal/testutil"
	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

func BenchmarkEvaluate(b *testing.B) {
	for _, n := range []int{50, 500} {
		times := testutil.IrregularTimes(1, n, 365)
		values := testutil.Sum(testutil.Sinusoid(times, 0.1, 1, 0), testutil.GaussianNoise(1, 0.5, n))
		s, err := series.New("bench", times, values, nil)
		if err != nil {
			b.Fatal(err)
		}
		g, err := grid.Build([]*series.Series{s})
		if err != nil {
			b.Fatal(err)
		}

		for _, method := range []Method{MethodDirect, MethodFast} {
			b.Run(fmt.Sprintf("%s/N=%d/Nf=%d", method, n, g.Len()), func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					if _, err := Evaluate(s, g, WithMethod(method)); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
