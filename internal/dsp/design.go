package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Butterworth band filter design via the classic analog-prototype route:
// prototype poles on the left half unit circle, frequency prewarp, lowpass
// to bandpass/bandstop transform, bilinear transform, then polynomial
// expansion into direct-form (b, a) vectors. An order-n prototype yields
// a transfer function of order 2n (vectors of length 2n+1), matching the
// conventional band filter layout.

// zpk is an analog or digital filter in zero/pole/gain form.
type zpk struct {
	z []complex128
	p []complex128
	k float64
}

// Bandpass designs a Butterworth bandpass filter with the given prototype
// order, corner frequencies in Hz, and sampling rate in Hz. It returns the
// feed-forward (b) and feedback (a) coefficient vectors with a[0] == 1.
func Bandpass(order int, lowHz, highHz, fs float64) (b, a []float64, err error) {
	if err := checkBand(order, lowHz, highHz, fs); err != nil {
		return nil, nil, err
	}

	w1, w2 := prewarp(lowHz, fs), prewarp(highHz, fs)
	analog := lp2bp(prototype(order), math.Sqrt(w1*w2), w2-w1)
	digital := bilinear(analog, fs)
	b, a = coefficients(digital)
	return b, a, nil
}

// Bandstop designs a Butterworth band-reject (notch) filter. Parameters
// and return values are as for Bandpass.
func Bandstop(order int, lowHz, highHz, fs float64) (b, a []float64, err error) {
	if err := checkBand(order, lowHz, highHz, fs); err != nil {
		return nil, nil, err
	}

	w1, w2 := prewarp(lowHz, fs), prewarp(highHz, fs)
	analog := lp2bs(prototype(order), math.Sqrt(w1*w2), w2-w1)
	digital := bilinear(analog, fs)
	b, a = coefficients(digital)
	return b, a, nil
}

func checkBand(order int, lowHz, highHz, fs float64) error {
	if order < 1 {
		return fmt.Errorf("filter order must be >= 1, got %d", order)
	}
	if fs <= 0 {
		return fmt.Errorf("sampling rate must be positive, got %g", fs)
	}
	if lowHz <= 0 || highHz <= lowHz {
		return fmt.Errorf("band edges must satisfy 0 < low < high, got [%g, %g]", lowHz, highHz)
	}
	if highHz >= fs/2 {
		return fmt.Errorf("high edge %g Hz must be below nyquist %g Hz", highHz, fs/2)
	}
	return nil
}

// prototype returns the analog lowpass Butterworth prototype: order poles
// equally spaced on the left half of the unit circle, no zeros, unit gain.
func prototype(order int) zpk {
	p := make([]complex128, order)
	for k := 1; k <= order; k++ {
		theta := math.Pi/2 + float64(2*k-1)*math.Pi/float64(2*order)
		p[k-1] = cmplx.Exp(complex(0, theta))
	}
	return zpk{p: p, k: 1}
}

// prewarp maps a digital corner frequency onto the analog axis so that the
// bilinear transform lands it exactly where requested.
func prewarp(hz, fs float64) float64 {
	return 2 * fs * math.Tan(math.Pi*hz/fs)
}

// lp2bp transforms a lowpass prototype to a bandpass filter with center
// frequency wo and bandwidth bw (both rad/s).
func lp2bp(lp zpk, wo, bw float64) zpk {
	degree := len(lp.p) - len(lp.z)

	scale := func(r complex128) (complex128, complex128) {
		s := r * complex(bw/2, 0)
		d := cmplx.Sqrt(s*s - complex(wo*wo, 0))
		return s + d, s - d
	}

	z := make([]complex128, 0, 2*len(lp.z)+degree)
	for _, r := range lp.z {
		hi, lo := scale(r)
		z = append(z, hi, lo)
	}
	for i := 0; i < degree; i++ {
		z = append(z, 0)
	}

	p := make([]complex128, 0, 2*len(lp.p))
	for _, r := range lp.p {
		hi, lo := scale(r)
		p = append(p, hi, lo)
	}

	return zpk{z: z, p: p, k: lp.k * math.Pow(bw, float64(degree))}
}

// lp2bs transforms a lowpass prototype to a band-reject filter with center
// frequency wo and stop bandwidth bw (both rad/s).
func lp2bs(lp zpk, wo, bw float64) zpk {
	degree := len(lp.p) - len(lp.z)

	invert := func(r complex128) (complex128, complex128) {
		s := complex(bw/2, 0) / r
		d := cmplx.Sqrt(s*s - complex(wo*wo, 0))
		return s + d, s - d
	}

	z := make([]complex128, 0, 2*len(lp.z)+2*degree)
	for _, r := range lp.z {
		hi, lo := invert(r)
		z = append(z, hi, lo)
	}
	// The rejected band contributes conjugate zero pairs on the imaginary
	// axis at the center frequency.
	for i := 0; i < degree; i++ {
		z = append(z, complex(0, wo), complex(0, -wo))
	}

	p := make([]complex128, 0, 2*len(lp.p))
	for _, r := range lp.p {
		hi, lo := invert(r)
		p = append(p, hi, lo)
	}

	k := lp.k * real(prodNeg(lp.z)/prodNeg(lp.p))
	return zpk{z: z, p: p, k: k}
}

// bilinear maps an analog zpk onto the digital plane at sampling rate fs.
func bilinear(analog zpk, fs float64) zpk {
	fs2 := complex(2*fs, 0)
	degree := len(analog.p) - len(analog.z)

	z := make([]complex128, 0, len(analog.z)+degree)
	num := complex(1, 0)
	for _, r := range analog.z {
		z = append(z, (fs2+r)/(fs2-r))
		num *= fs2 - r
	}
	// Zeros at infinity map to the Nyquist point.
	for i := 0; i < degree; i++ {
		z = append(z, -1)
	}

	p := make([]complex128, 0, len(analog.p))
	den := complex(1, 0)
	for _, r := range analog.p {
		p = append(p, (fs2+r)/(fs2-r))
		den *= fs2 - r
	}

	return zpk{z: z, p: p, k: analog.k * real(num/den)}
}

// coefficients expands a digital zpk into direct-form transfer function
// vectors. Roots arrive in conjugate pairs, so the imaginary parts of the
// expanded polynomials vanish up to rounding and are dropped.
func coefficients(d zpk) (b, a []float64) {
	bc := polyFromRoots(d.z)
	ac := polyFromRoots(d.p)

	b = make([]float64, len(bc))
	for i, c := range bc {
		b[i] = d.k * real(c)
	}
	a = make([]float64, len(ac))
	for i, c := range ac {
		a[i] = real(c)
	}
	return b, a
}

// polyFromRoots expands prod(x - r_i) into monic polynomial coefficients,
// highest power first.
func polyFromRoots(roots []complex128) []complex128 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] -= c * r
		}
		coeffs = next
	}
	return coeffs
}

// prodNeg returns the product of the negated values, 1 for an empty slice.
func prodNeg(vs []complex128) complex128 {
	out := complex(1, 0)
	for _, v := range vs {
		out *= -v
	}
	return out
}
