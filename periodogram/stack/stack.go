// Package stack combines periodograms evaluated on one shared grid into a
// single stacked spectrum.
//
// Two rules are supported:
//
//   - Additive ("OR"): P(f) = sum_k w_k * P_k(f). A signal detected in any
//     dataset accumulates power.
//   - Multiplicative ("AND"): P(f) = prod_k (P_k(f) + eps). Power is large only
//     where every dataset shows elevated power at the same frequency.
//
// The output always lives on the input grid; nothing is resampled.
package stack

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/lombscargle"
)

// Errors returned by the combiner.
var (
	ErrNoInputs         = errors.New("stack: no periodograms to combine")
	ErrGridMismatch     = errors.New("stack: periodograms do not share a grid")
	ErrInvalidWeight    = errors.New("stack: invalid dataset weight")
	ErrInvalidParameter = errors.New("stack: invalid parameter")
)

// Operation selects the combination rule.
type Operation int

const (
	// Additive sums (optionally weighted) powers.
	Additive Operation = iota
	// Multiplicative multiplies shifted powers.
	Multiplicative
)

// String returns the configuration name of the rule.
func (op Operation) String() string {
	switch op {
	case Additive:
		return "additive"
	case Multiplicative:
		return "multiplicative"
	default:
		return fmt.Sprintf("Operation(%d)", int(op))
	}
}

// Label returns the short logical name, OR or AND.
func (op Operation) Label() string {
	if op == Multiplicative {
		return "AND"
	}
	return "OR"
}

// ParseOperation accepts "additive"/"or"/"add" and
// "multiplicative"/"and"/"mult", case-insensitively.
func ParseOperation(name string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "additive", "add", "or", "":
		return Additive, nil
	case "multiplicative", "mult", "mul", "and":
		return Multiplicative, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidParameter, name)
	}
}

// Result is a stacked periodogram. It is derived from its inputs and never
// mutated after creation.
type Result struct {
	Grid          grid.Grid
	Power         []float64
	Operation     Operation
	Normalization lombscargle.Normalization
	Inputs        []*lombscargle.Result
	// Weights holds the weight applied to each input, in input order.
	Weights []float64
	Epsilon float64
	Scaling Scaling
	// Saturated counts grid points where an unnormalized product exceeded
	// the float64 range and was capped at math.MaxFloat64.
	Saturated int
}

// Frequencies materializes the grid of the result.
func (r *Result) Frequencies() []float64 {
	return r.Grid.Frequencies()
}

// Labels returns the input labels in order.
func (r *Result) Labels() []string {
	out := make([]string, len(r.Inputs))
	for i, in := range r.Inputs {
		out[i] = in.Label
	}
	return out
}

// Combine stacks inputs with op.
//
// All inputs must share a bit-identical grid and the same normalization.
// Weights are only valid with [Additive]; a label without a weight gets 1.
func Combine(inputs []*lombscargle.Result, op Operation, opts ...Option) (*Result, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	cfg := ApplyOptions(opts...)
	if err := cfg.validate(op); err != nil {
		return nil, err
	}

	ref := inputs[0]
	if ref == nil {
		return nil, fmt.Errorf("%w: input 0 is nil", ErrNoInputs)
	}
	labels := make(map[string]bool, len(inputs))
	spectra := make([]Spectrum, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: input %d is nil", ErrNoInputs, i)
		}
		if !in.Grid.Equal(ref.Grid) {
			return nil, fmt.Errorf("%w: %q uses %s, %q uses %s", ErrGridMismatch, in.Label, in.Grid, ref.Label, ref.Grid)
		}
		if in.Normalization != ref.Normalization {
			return nil, fmt.Errorf("%w: %q is %s-normalized, %q is %s-normalized",
				ErrGridMismatch, in.Label, in.Normalization, ref.Label, ref.Normalization)
		}
		if len(in.Power) != ref.Grid.Len() {
			return nil, fmt.Errorf("%w: %q has %d powers for %d frequencies", ErrGridMismatch, in.Label, len(in.Power), ref.Grid.Len())
		}
		labels[in.Label] = true
		spectra[i] = Spectrum{Label: in.Label, Power: in.Power}
	}
	for label := range cfg.Weights {
		if !labels[label] {
			return nil, fmt.Errorf("%w: no dataset labelled %q", ErrInvalidWeight, label)
		}
	}

	power, weights, saturated := combine(ref.Grid.Frequencies(), spectra, op, cfg)
	return &Result{
		Grid:          ref.Grid,
		Power:         power,
		Operation:     op,
		Normalization: ref.Normalization,
		Inputs:        append([]*lombscargle.Result(nil), inputs...),
		Weights:       weights,
		Epsilon:       cfg.effectiveEpsilon(op),
		Scaling:       cfg.Scaling,
		Saturated:     saturated,
	}, nil
}

// CombineBoth returns the multiplicative and the additive stack of inputs.
// Dataset weights only apply to the additive result.
func CombineBoth(inputs []*lombscargle.Result, opts ...Option) (and, or *Result, err error) {
	or, err = Combine(inputs, Additive, opts...)
	if err != nil {
		return nil, nil, err
	}
	and, err = Combine(inputs, Multiplicative, append(opts, WithWeights(nil))...)
	if err != nil {
		return nil, nil, err
	}
	return and, or, nil
}

// Spectrum is a labelled power array on a frequency column shared with other
// spectra, typically read from a precomputed periodogram file.
type Spectrum struct {
	Label string
	Power []float64
}

// CombineArrays stacks precomputed spectra that share the frequency column
// freqs. Unlike [Combine] the column may start at zero and need not form a
// [grid.Grid]; it only has to be strictly increasing.
func CombineArrays(freqs []float64, spectra []Spectrum, op Operation, opts ...Option) ([]float64, error) {
	if len(spectra) == 0 {
		return nil, ErrNoInputs
	}
	if len(freqs) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 frequencies, got %d", ErrGridMismatch, len(freqs))
	}
	for i := 1; i < len(freqs); i++ {
		if !(freqs[i] > freqs[i-1]) {
			return nil, fmt.Errorf("%w: frequencies not strictly increasing at index %d", ErrGridMismatch, i)
		}
	}

	cfg := ApplyOptions(opts...)
	if err := cfg.validate(op); err != nil {
		return nil, err
	}
	labels := make(map[string]bool, len(spectra))
	for _, s := range spectra {
		if len(s.Power) != len(freqs) {
			return nil, fmt.Errorf("%w: %q has %d powers for %d frequencies", ErrGridMismatch, s.Label, len(s.Power), len(freqs))
		}
		for j, p := range s.Power {
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, fmt.Errorf("%w: %q has non-finite power at index %d", ErrInvalidParameter, s.Label, j)
			}
		}
		labels[s.Label] = true
	}
	for label := range cfg.Weights {
		if !labels[label] {
			return nil, fmt.Errorf("%w: no dataset labelled %q", ErrInvalidWeight, label)
		}
	}

	power, _, _ := combine(freqs, spectra, op, cfg)
	return power, nil
}

// combine applies scaling, the combination rule and output normalization.
// Inputs are validated by the caller and never modified.
//
// A product that leaves the float64 range is recomputed in log space when
// the output is normalized, which only needs its shape. Otherwise overflowing
// points are capped and counted in saturated.
func combine(freqs []float64, spectra []Spectrum, op Operation, cfg Config) (power, weights []float64, saturated int) {
	n := len(freqs)
	power = make([]float64, n)
	weights = make([]float64, len(spectra))
	scales := make([]float64, len(spectra))
	scratch := make([]float64, n)

	eps := cfg.effectiveEpsilon(op)
	if op == Multiplicative {
		for i := range power {
			power[i] = 1
		}
	}

	for k, s := range spectra {
		weights[k] = 1
		if w, ok := cfg.Weights[s.Label]; ok {
			weights[k] = w
		}

		scale := weights[k]
		if cfg.Scaling == ScaleUnitArea {
			// Flat spectra have no area and stay unscaled.
			if area := Trapezoid(freqs, s.Power); area > 0 {
				scale /= area
			}
		}
		scales[k] = scale
		vecmath.ScaleBlock(scratch, s.Power, scale)

		switch op {
		case Multiplicative:
			for i := range scratch {
				scratch[i] += eps
			}
			vecmath.MulBlockInPlace(power, scratch)
		default:
			vecmath.AddBlockInPlace(power, scratch)
		}
	}

	if op == Multiplicative {
		switch {
		case cfg.NormalizeOutput:
			if outOfRange(power) || math.IsInf(Trapezoid(freqs, power), 1) {
				logProduct(power, spectra, scales, eps)
			}
		default:
			for i, p := range power {
				if math.IsInf(p, 1) {
					power[i] = math.MaxFloat64
					saturated++
				}
			}
		}
	}

	if cfg.NormalizeOutput {
		if area := Trapezoid(freqs, power); area > 0 {
			vecmath.ScaleBlockInPlace(power, 1/area)
		}
	}
	return power, weights, saturated
}

// outOfRange reports an overflowed product or one that underflowed to zero
// everywhere.
func outOfRange(power []float64) bool {
	peak := 0.0
	for _, p := range power {
		if math.IsInf(p, 1) {
			return true
		}
		peak = max(peak, p)
	}
	return peak == 0
}

// logProduct fills power with the product of the scaled spectra shifted so
// its maximum is 1.
func logProduct(power []float64, spectra []Spectrum, scales []float64, eps float64) {
	for i := range power {
		power[i] = 0
	}
	for k, s := range spectra {
		for i, p := range s.Power {
			power[i] += math.Log(p*scales[k] + eps)
		}
	}
	shift := slices.Max(power)
	for i := range power {
		power[i] = math.Exp(power[i] - shift)
	}
}

// Trapezoid integrates y over x with the trapezoidal rule.
func Trapezoid(x, y []float64) float64 {
	area := 0.0
	for i := 1; i < len(x) && i < len(y); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}
