package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// cacheKeyVersion changes whenever the evaluator output for identical inputs
// changes.
const cacheKeyVersion = 1

// Cache stores evaluated periodogram powers by key. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Get returns the cached powers and whether the key was present.
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Put(ctx context.Context, key string, power []float64) error
}

// CacheKey identifies the periodogram of s on g. It hashes the exact bits of
// every input so any change in data, grid or evaluation settings gives a new
// key.
func CacheKey(s *series.Series, g grid.Grid, norm lombscargle.Normalization, method lombscargle.Method) string {
	h := sha256.New()
	buf := make([]byte, 8)
	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}
	putFloats := func(xs []float64) {
		putUint(uint64(len(xs)))
		for _, x := range xs {
			putUint(math.Float64bits(x))
		}
	}

	putUint(cacheKeyVersion)
	putUint(math.Float64bits(g.Start))
	putUint(math.Float64bits(g.Stop))
	putUint(uint64(g.Count))
	putUint(uint64(g.Spacing))
	putUint(uint64(norm))
	putUint(uint64(method))
	putFloats(s.Times())
	putFloats(s.Values())
	putFloats(s.Uncertainties())

	return hex.EncodeToString(h.Sum(nil))
}
