// Package grid provides the frequency grid shared by every periodogram in a
// stacked analysis.
//
// Stacking is only meaningful when all periodograms are evaluated on the same
// frequencies. A [Grid] is therefore described by plain parameters that can
// be compared bit for bit with [Grid.Equal].
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGrid reports an empty, non-monotonic or otherwise malformed grid.
var ErrInvalidGrid = errors.New("grid: invalid frequency grid")

// Spacing selects how frequencies are distributed between Start and Stop.
type Spacing int

const (
	// Linear places frequencies at a constant step.
	Linear Spacing = iota
	// Logarithmic places frequencies at a constant ratio.
	Logarithmic
)

// String returns the spacing name.
func (s Spacing) String() string {
	switch s {
	case Linear:
		return "linear"
	case Logarithmic:
		return "log"
	default:
		return fmt.Sprintf("Spacing(%d)", int(s))
	}
}

// ParseSpacing converts a name ("linear", "log") to a Spacing.
func ParseSpacing(name string) (Spacing, error) {
	switch name {
	case "linear", "lin", "":
		return Linear, nil
	case "log", "logarithmic":
		return Logarithmic, nil
	default:
		return 0, fmt.Errorf("%w: unknown spacing %q", ErrInvalidGrid, name)
	}
}

// Grid is a strictly increasing sequence of Count frequencies from Start to
// Stop inclusive, in cycles per time unit.
type Grid struct {
	Start   float64
	Stop    float64
	Count   int
	Spacing Spacing
}

// New returns a validated grid.
func New(start, stop float64, count int, spacing Spacing) (Grid, error) {
	g := Grid{Start: start, Stop: stop, Count: count, Spacing: spacing}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate checks the grid parameters.
func (g Grid) Validate() error {
	switch {
	case math.IsNaN(g.Start) || math.IsInf(g.Start, 0) || math.IsNaN(g.Stop) || math.IsInf(g.Stop, 0):
		return fmt.Errorf("%w: bounds must be finite: [%v, %v]", ErrInvalidGrid, g.Start, g.Stop)
	case g.Start <= 0:
		return fmt.Errorf("%w: start must be > 0: %v", ErrInvalidGrid, g.Start)
	case g.Stop <= g.Start:
		return fmt.Errorf("%w: stop must be > start: [%v, %v]", ErrInvalidGrid, g.Start, g.Stop)
	case g.Count < 2:
		return fmt.Errorf("%w: count must be >= 2: %d", ErrInvalidGrid, g.Count)
	case g.Spacing != Linear && g.Spacing != Logarithmic:
		return fmt.Errorf("%w: unknown spacing %d", ErrInvalidGrid, int(g.Spacing))
	}
	return nil
}

// Len returns the number of frequencies.
func (g Grid) Len() int { return g.Count }

// Step returns the constant increment for linear grids and the constant
// ratio between neighbours for logarithmic grids.
func (g Grid) Step() float64 {
	if g.Spacing == Logarithmic {
		return math.Pow(g.Stop/g.Start, 1/float64(g.Count-1))
	}
	return (g.Stop - g.Start) / float64(g.Count-1)
}

// Resolution returns the smallest distance between neighbouring frequencies.
func (g Grid) Resolution() float64 {
	if g.Spacing == Logarithmic {
		return g.Start * (g.Step() - 1)
	}
	return g.Step()
}

// At returns the i-th frequency. The last index returns Stop exactly.
func (g Grid) At(i int) float64 {
	if i == g.Count-1 {
		return g.Stop
	}
	if g.Spacing == Logarithmic {
		return g.Start * math.Pow(g.Stop/g.Start, float64(i)/float64(g.Count-1))
	}
	return g.Start + float64(i)*g.Step()
}

// Frequencies materializes the grid.
func (g Grid) Frequencies() []float64 {
	out := make([]float64, g.Count)
	for i := range out {
		out[i] = g.At(i)
	}
	return out
}

// Equal reports whether both grids have bit-identical parameters.
func (g Grid) Equal(other Grid) bool {
	return math.Float64bits(g.Start) == math.Float64bits(other.Start) &&
		math.Float64bits(g.Stop) == math.Float64bits(other.Stop) &&
		g.Count == other.Count &&
		g.Spacing == other.Spacing
}

// String returns a compact description of the grid.
func (g Grid) String() string {
	return fmt.Sprintf("%s[%g, %g] x %d", g.Spacing, g.Start, g.Stop, g.Count)
}

// spacingTolerance is the relative deviation tolerated when recovering grid
// parameters from an explicit frequency column.
const spacingTolerance = 1e-3

// FromFrequencies recovers grid parameters from an explicit, strictly
// increasing frequency column. The column must be evenly spaced either
// linearly or logarithmically.
func FromFrequencies(freqs []float64) (Grid, error) {
	n := len(freqs)
	if n < 2 {
		return Grid{}, fmt.Errorf("%w: need at least 2 frequencies, got %d", ErrInvalidGrid, n)
	}
	for i := 1; i < n; i++ {
		if !(freqs[i] > freqs[i-1]) {
			return Grid{}, fmt.Errorf("%w: frequencies not strictly increasing at index %d", ErrInvalidGrid, i)
		}
	}

	for _, spacing := range []Spacing{Linear, Logarithmic} {
		g, err := New(freqs[0], freqs[n-1], n, spacing)
		if err != nil {
			return Grid{}, err
		}
		if matches(g, freqs) {
			return g, nil
		}
	}
	return Grid{}, fmt.Errorf("%w: frequencies are neither linearly nor logarithmically spaced", ErrInvalidGrid)
}

func matches(g Grid, freqs []float64) bool {
	tol := spacingTolerance * g.Resolution()
	for i, f := range freqs {
		if math.Abs(g.At(i)-f) > tol {
			return false
		}
	}
	return true
}
