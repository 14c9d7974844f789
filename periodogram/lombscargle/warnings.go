package lombscargle

import (
	"fmt"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
	"github.com/cwbudde/algo-stackpg/periodogram/series"
)

// WarningKind classifies non-fatal numerical conditions.
type WarningKind int

const (
	// WarnZeroVariance marks a flat series; all power is zero.
	WarnZeroVariance WarningKind = iota + 1
	// WarnSingularFit marks frequencies whose fit was near singular.
	WarnSingularFit
	// WarnAboveNyquist marks grids reaching beyond 1/(2*min gap) of the series.
	WarnAboveNyquist
	// WarnZeroUncertainty marks series whose zero uncertainties forced an
	// unweighted fit.
	WarnZeroUncertainty
	// WarnFastFallback marks a fast evaluation request served directly.
	WarnFastFallback
)

// String returns a short identifier of the kind.
func (k WarningKind) String() string {
	switch k {
	case WarnZeroVariance:
		return "zero-variance"
	case WarnSingularFit:
		return "singular-fit"
	case WarnAboveNyquist:
		return "above-nyquist"
	case WarnZeroUncertainty:
		return "zero-uncertainty"
	case WarnFastFallback:
		return "fast-fallback"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(k))
	}
}

// Warning is a numerical degeneracy that did not stop the evaluation.
type Warning struct {
	Kind    WarningKind
	Label   string
	Message string
}

// String formats the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Label, w.Kind, w.Message)
}

// HasWarning reports whether r carries a warning of the given kind.
func (r *Result) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

func (r *Result) warn(kind WarningKind, msg string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Label: r.Label, Message: msg})
}

// InputWarnings returns the warnings that follow from s, g and the requested
// method alone, in the order Evaluate reports them. Callers that reuse stored
// powers use it to restore the warnings of a fresh evaluation.
func InputWarnings(s *series.Series, g grid.Grid, m Method) []Warning {
	var ws []Warning
	add := func(kind WarningKind, msg string) {
		ws = append(ws, Warning{Kind: kind, Label: s.Label(), Message: msg})
	}
	if s.HasUncertainties() && !s.IsWeighted() {
		add(WarnZeroUncertainty, "zero uncertainty present, using unweighted fit")
	}
	if limit := 1 / (2 * s.MinGap()); g.Stop > limit {
		add(WarnAboveNyquist, fmt.Sprintf("grid stop %g exceeds 1/(2*min gap) = %g", g.Stop, limit))
	}
	if m == MethodFast && g.Spacing != grid.Linear {
		add(WarnFastFallback, "fast method needs a linear grid, evaluated directly")
	}
	return ws
}
