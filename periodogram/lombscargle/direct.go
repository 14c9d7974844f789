package lombscargle

import (
	"math"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
)

// directPower writes the explained fraction p for every grid frequency into
// dst and returns the number of near-singular frequencies.
//
// t and y are centred on their weighted means, w sums to one and yy is the
// weighted variance of y. With C = sum w cos, S = sum w sin and the centred
// second moments CC, SS, CS, YC, YS:
//
//	p = (SS*YC^2 + CC*YS^2 - 2*CS*YC*YS) / (yy * (CC*SS - CS^2))
func directPower(dst, t, y, w []float64, yy float64, g grid.Grid) int {
	singular := 0
	for k := range dst {
		omega := 2 * math.Pi * g.At(k)

		var c, s, cHat, sHat, csHat, yc, ys float64
		for i, wi := range w {
			sin, cos := math.Sincos(omega * t[i])
			c += wi * cos
			s += wi * sin
			cHat += wi * cos * cos
			sHat += wi * sin * sin
			csHat += wi * cos * sin
			yc += wi * y[i] * cos
			ys += wi * y[i] * sin
		}

		cc := cHat - c*c
		ss := sHat - s*s
		cs := csHat - c*s
		d := cc*ss - cs*cs
		if d <= singularDeterminant {
			dst[k] = 0
			singular++
			continue
		}

		dst[k] = clampFraction((ss*yc*yc + cc*ys*ys - 2*cs*yc*ys) / (yy * d))
	}
	return singular
}
