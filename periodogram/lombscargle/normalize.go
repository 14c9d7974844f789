package lombscargle

import (
	"github.com/cwbudde/algo-vecmath"
)

// normalize converts explained fractions p in place to the requested
// convention for a series of n points.
func normalize(power []float64, norm Normalization, n int) {
	if norm != NormVariance {
		return
	}

	// Three parameters are fitted; tiny series keep one degree of freedom.
	dof := float64(max(n-3, 1))
	for i, p := range power {
		power[i] = p / max(1-p, minResidual)
	}
	vecmath.ScaleBlockInPlace(power, dof/2)
}

// VarianceToAmplitude converts a variance-normalized power of a series with n
// points back to the explained fraction p in [0, 1].
func VarianceToAmplitude(z float64, n int) float64 {
	dof := float64(max(n-3, 1))
	r := 2 * z / dof
	return r / (1 + r)
}

// AmplitudeToVariance converts an explained fraction p to the
// variance-normalized power of a series with n points.
func AmplitudeToVariance(p float64, n int) float64 {
	dof := float64(max(n-3, 1))
	return dof / 2 * p / max(1-p, minResidual)
}
