package lombscargle

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-stackpg/periodogram/grid"
)

// fastPower is the Press-Rybicki evaluation of the same quantity as
// directPower. The sums over samples are replaced by extirpolation of every
// sample onto a regular mesh followed by one FFT per sum, which needs a
// linear grid f_k = f0 + k*df.
func fastPower(dst, t, y, w []float64, yy float64, g grid.Grid, cfg Config) (int, error) {
	nf := g.Len()
	nfft := nextPowerOf2(nf * cfg.FastOversampling)

	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return 0, fmt.Errorf("lombscargle: failed to create FFT plan: %w", err)
	}
	ts := &trigSummer{
		t:     t,
		f0:    g.Start,
		df:    g.Step(),
		nf:    nf,
		order: cfg.FastOrder,
		plan:  plan,
		mesh:  make([]complex128, nfft),
		spec:  make([]complex128, nfft),
	}

	wy := make([]float64, len(y))
	for i := range y {
		wy[i] = w[i] * y[i]
	}

	sh, ch, err := ts.sum(wy, 1)
	if err != nil {
		return 0, err
	}
	s2, c2, err := ts.sum(w, 2)
	if err != nil {
		return 0, err
	}
	s1, c1, err := ts.sum(w, 1)
	if err != nil {
		return 0, err
	}

	singular := 0
	for k := range dst {
		// Rotate to the phase tau that decouples the sine and cosine terms.
		num := s2[k] - 2*s1[k]*c1[k]
		den := c2[k] - (c1[k]*c1[k] - s1[k]*s1[k])
		r := math.Hypot(num, den)
		c2w, s2w := 1.0, 0.0
		switch {
		case den == 0 && num != 0:
			c2w, s2w = 0, sign(num)
		case r > 0:
			c2w = math.Abs(den) / r
			s2w = num * sign(den) / r
		}
		cw := math.Sqrt(0.5 * (1 + c2w))
		sw := sign(s2w) * math.Sqrt(0.5*(1-c2w))

		yc := ch[k]*cw + sh[k]*sw
		ys := sh[k]*cw - ch[k]*sw
		cc := 0.5*(1+c2[k]*c2w+s2[k]*s2w) - square(c1[k]*cw+s1[k]*sw)
		ss := 0.5*(1-c2[k]*c2w-s2[k]*s2w) - square(s1[k]*cw-c1[k]*sw)

		if cc*ss <= singularDeterminant {
			dst[k] = 0
			singular++
			continue
		}
		dst[k] = clampFraction((yc*yc/cc + ys*ys/ss) / yy)
	}
	return singular, nil
}

// trigSummer approximates S_k = sum h_j sin(2*pi*f_k*t_j) and
// C_k = sum h_j cos(2*pi*f_k*t_j) on a linear frequency grid.
type trigSummer struct {
	t      []float64
	f0, df float64
	nf     int
	order  int
	plan   *algofft.Plan[complex128]
	mesh   []complex128
	spec   []complex128
}

// sum evaluates the trigonometric sums of h at factor*f_k.
func (ts *trigSummer) sum(h []float64, factor float64) (s, c []float64, err error) {
	f0 := ts.f0 * factor
	df := ts.df * factor
	nfft := len(ts.mesh)
	t0 := ts.t[0]

	clear(ts.mesh)
	for j, tj := range ts.t {
		dt := tj - t0
		v := complex(h[j], 0)
		if f0 != 0 {
			v *= cmplx.Exp(complex(0, 2*math.Pi*f0*dt))
		}
		frac := df * dt
		frac -= math.Floor(frac)
		extirpolate(ts.mesh, frac*float64(nfft), v, ts.order)
	}

	// sum_n mesh[n] * exp(+2*pi*i*k*n/nfft) computed as a conjugated
	// forward transform of the conjugated mesh.
	for i, v := range ts.mesh {
		ts.mesh[i] = cmplx.Conj(v)
	}
	if err := ts.plan.Forward(ts.spec, ts.mesh); err != nil {
		return nil, nil, fmt.Errorf("lombscargle: forward FFT failed: %w", err)
	}

	s = make([]float64, ts.nf)
	c = make([]float64, ts.nf)
	for k := range ts.nf {
		v := cmplx.Conj(ts.spec[k])
		if t0 != 0 {
			v *= cmplx.Exp(complex(0, 2*math.Pi*t0*(f0+df*float64(k))))
		}
		c[k] = real(v)
		s[k] = imag(v)
	}
	return s, c, nil
}

// extirpolate spreads value v located at fractional mesh position x onto the
// order nearest integer positions such that sums of smooth functions sampled
// on the mesh reproduce v*f(x) (Lagrange interpolation in reverse).
func extirpolate(mesh []complex128, x float64, v complex128, order int) {
	n := len(mesh)
	if ix := math.Floor(x); ix == x && int(ix) < n {
		mesh[int(ix)] += v
		return
	}

	lo := int(x - float64(order/2))
	lo = max(0, min(lo, n-order))

	num := v
	for m := range order {
		num *= complex(x-float64(lo+m), 0)
	}

	den := factorial(order - 1)
	for j := range order {
		if j > 0 {
			den *= float64(j) / float64(j-order)
		}
		idx := lo + order - 1 - j
		mesh[idx] += num / complex(den*(x-float64(idx)), 0)
	}
}

func factorial(n int) float64 {
	out := 1.0
	for i := 2; i <= n; i++ {
		out *= float64(i)
	}
	return out
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func square(x float64) float64 { return x * x }
