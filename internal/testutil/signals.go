// Package testutil provides deterministic synthetic observations and
// numeric assertions shared by the periodogram tests.
package testutil

import (
	"math"
	"math/rand/v2"
	"slices"
)

// IrregularTimes returns n strictly increasing sample times drawn uniformly
// from [0, span) with a fixed seed. Duplicates are nudged apart so the result
// always forms a valid series.
func IrregularTimes(seed uint64, n int, span float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64() * span
	}
	slices.Sort(out)
	for i := 1; i < n; i++ {
		if out[i] <= out[i-1] {
			out[i] = math.Nextafter(out[i-1], math.Inf(1))
		}
	}
	return out
}

// RegularTimes returns n equally spaced sample times starting at zero.
func RegularTimes(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}

// Sinusoid evaluates amplitude*sin(2*pi*freq*t + phase) at the given times.
func Sinusoid(times []float64, freq, amplitude, phase float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*t+phase)
	}
	return out
}

// GaussianNoise generates zero-mean normal noise with a fixed seed.
func GaussianNoise(seed uint64, sigma float64, length int) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0xa0153))
	out := make([]float64, length)
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Sum adds signals of equal length element-wise into a new slice.
func Sum(signals ...[]float64) []float64 {
	if len(signals) == 0 {
		return nil
	}
	out := slices.Clone(signals[0])
	for _, s := range signals[1:] {
		for i := range out {
			out[i] += s[i]
		}
	}
	return out
}

// ArgMax returns the index of the largest element, the first one on ties.
func ArgMax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
