// Package significance estimates false-alarm probabilities (FAP) of
// periodogram peaks.
//
// Two estimators are provided. [Analytic] uses the closed-form single
// frequency tail of the variance-normalized generalized Lomb-Scargle power
// together with an effective number of independent frequencies. It is only
// valid for a single dataset. [Bootstrap] builds an empirical null
// distribution of the maximum power by permuting values against fixed
// sampling times and rerunning the whole pipeline; it is valid for any
// combination rule.
package significance

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the estimators.
var (
	ErrInsufficientData  = errors.New("significance: insufficient data")
	ErrMethodUnsupported = errors.New("significance: method not applicable")
	ErrInvalidParameter  = errors.New("significance: invalid parameter")
)

// Estimator maps powers to false-alarm probabilities and back.
type Estimator interface {
	// FAP returns the probability that noise alone produces a maximum power
	// of at least power anywhere on the grid.
	FAP(power float64) float64
	// Threshold returns the smallest power whose FAP does not exceed fap.
	Threshold(fap float64) float64
}

// Method selects the estimator.
type Method int

const (
	// MethodAnalytic is the closed-form approximation.
	MethodAnalytic Method = iota
	// MethodBootstrap is permutation resampling.
	MethodBootstrap
)

// String returns the configuration name of the method.
func (m Method) String() string {
	switch m {
	case MethodAnalytic:
		return "analytic"
	case MethodBootstrap:
		return "bootstrap"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts "analytic" or "bootstrap" to a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "analytic", "":
		return MethodAnalytic, nil
	case "bootstrap", "permutation":
		return MethodBootstrap, nil
	default:
		return 0, fmt.Errorf("%w: unknown FAP method %q", ErrInvalidParameter, name)
	}
}
