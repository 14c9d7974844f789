package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/cwbudde/algo-stackpg/internal/testutil"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

func BenchmarkRun(b *testing.B) {
	for _, datasets := range []int{2, 8} {
		set := make([]*series.Series, datasets)
		for i := range set {
			times := testutil.IrregularTimes(uint64(i+1), 200, 365)
			values := testutil.Sum(
				testutil.Sinusoid(times, 1/27.3, 1, float64(i)),
				testutil.GaussianNoise(uint64(100+i), 0.5, len(times)),
			)
			s, err := series.New(fmt.Sprintf("s%d", i), times, values, nil)
			if err != nil {
				b.Fatal(err)
			}
			set[i] = s
		}

		a, err := New(NewConfig(WithBootstrap(100, 1), WithMaxFrequencies(2000)))
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("datasets=%d", datasets), func(b *testing.B) {
			for b.Loop() {
				if _, err := a.Run(context.Background(), set); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
