// Package peaks extracts ranked, significance-filtered peaks from a power
// spectrum.
package peaks

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/cwbudde/algo-stackpg/periodogram/significance"
)

// ErrInvalidInput reports mismatched or unusable inputs.
var ErrInvalidInput = errors.New("peaks: invalid input")

// Peak is one reported local maximum.
type Peak struct {
	Frequency float64
	// Period is 1/Frequency.
	Period float64
	Power  float64
	FAP    float64
	// Rank starts at 1 for the strongest peak.
	Rank int
	// Index is the grid index of the peak.
	Index int
}

// Config controls peak extraction.
type Config struct {
	// MinSeparation merges local maxima closer than this frequency distance.
	MinSeparation float64
	// MaxFAP drops peaks whose FAP exceeds it.
	MaxFAP float64
	// Limit keeps at most this many peaks when > 0.
	Limit int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig keeps every local maximum.
func DefaultConfig() Config {
	return Config{MaxFAP: 1}
}

// WithMinSeparation sets the merge distance in frequency units.
func WithMinSeparation(df float64) Option {
	return func(cfg *Config) {
		cfg.MinSeparation = df
	}
}

// WithMaxFAP sets the FAP filter.
func WithMaxFAP(fap float64) Option {
	return func(cfg *Config) {
		cfg.MaxFAP = fap
	}
}

// WithLimit caps the number of reported peaks.
func WithLimit(n int) Option {
	return func(cfg *Config) {
		cfg.Limit = n
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// LocalMaxima returns the indices of local maxima in ascending order.
// Interior points must exceed both neighbours, boundary points their single
// neighbour. A run of equal powers that exceeds the points on either side
// counts once, at its first index. Flat spectra, and single-element ones,
// have no maxima.
func LocalMaxima(power []float64) []int {
	n := len(power)
	if n < 2 {
		return nil
	}

	var out []int
	for i := 0; i < n; {
		j := i
		for j+1 < n && power[j+1] == power[i] {
			j++
		}
		if i == 0 && j == n-1 {
			return nil
		}
		left := i == 0 || power[i] > power[i-1]
		right := j == n-1 || power[j] > power[j+1]
		if left && right {
			out = append(out, i)
		}
		i = j + 1
	}
	return out
}

// Find returns the ranked peaks of power over freqs.
//
// Local maxima closer than MinSeparation are merged keeping the higher one,
// FAPs come from est and peaks above MaxFAP are dropped. Survivors are ranked
// by power, ties going to the lower frequency.
func Find(freqs, power []float64, est significance.Estimator, opts ...Option) ([]Peak, error) {
	if len(freqs) != len(power) {
		return nil, fmt.Errorf("%w: %d frequencies, %d powers", ErrInvalidInput, len(freqs), len(power))
	}
	if est == nil {
		return nil, fmt.Errorf("%w: nil estimator", ErrInvalidInput)
	}
	cfg := ApplyOptions(opts...)
	if cfg.MinSeparation < 0 || math.IsNaN(cfg.MinSeparation) {
		return nil, fmt.Errorf("%w: negative minimum separation %v", ErrInvalidInput, cfg.MinSeparation)
	}
	if math.IsNaN(cfg.MaxFAP) || cfg.MaxFAP < 0 || cfg.MaxFAP > 1 {
		return nil, fmt.Errorf("%w: max FAP %v outside [0, 1]", ErrInvalidInput, cfg.MaxFAP)
	}

	idx := merge(freqs, power, LocalMaxima(power), cfg.MinSeparation)

	peaks := make([]Peak, 0, len(idx))
	for _, i := range idx {
		fap := est.FAP(power[i])
		if fap > cfg.MaxFAP {
			continue
		}
		peaks = append(peaks, Peak{
			Frequency: freqs[i],
			Period:    1 / freqs[i],
			Power:     power[i],
			FAP:       fap,
			Index:     i,
		})
	}

	slices.SortStableFunc(peaks, func(a, b Peak) int {
		if c := cmp.Compare(b.Power, a.Power); c != 0 {
			return c
		}
		return cmp.Compare(a.Frequency, b.Frequency)
	})
	if cfg.Limit > 0 && len(peaks) > cfg.Limit {
		peaks = peaks[:cfg.Limit]
	}
	for i := range peaks {
		peaks[i].Rank = i + 1
	}
	return peaks, nil
}

// merge walks maxima in frequency order and collapses runs closer than
// minSep into their highest member. Equal powers keep the lower frequency.
func merge(freqs, power []float64, maxima []int, minSep float64) []int {
	if minSep <= 0 || len(maxima) < 2 {
		return maxima
	}

	out := []int{maxima[0]}
	for _, i := range maxima[1:] {
		last := out[len(out)-1]
		if freqs[i]-freqs[last] >= minSep {
			out = append(out, i)
			continue
		}
		if power[i] > power[last] {
			out[len(out)-1] = i
		}
	}
	return out
}
