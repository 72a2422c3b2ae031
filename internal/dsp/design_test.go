package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

// gainAt evaluates the transfer function magnitude at the given frequency.
func gainAt(b, a []float64, hz, fs float64) float64 {
	z := cmplx.Exp(complex(0, -2*math.Pi*hz/fs))

	var num, den complex128
	zk := complex(1, 0)
	for _, c := range b {
		num += complex(c, 0) * zk
		zk *= z
	}
	zk = complex(1, 0)
	for _, c := range a {
		den += complex(c, 0) * zk
		zk *= z
	}
	return cmplx.Abs(num / den)
}

func TestBandpassShape(t *testing.T) {
	b, a, err := Bandpass(5, 1, 45, 250)
	if err != nil {
		t.Fatalf("Bandpass: %v", err)
	}

	if len(b) != 11 || len(a) != 11 {
		t.Fatalf("coefficient lengths = %d, %d, want 11, 11", len(b), len(a))
	}
	if a[0] != 1 {
		t.Errorf("a[0] = %g, want monic denominator", a[0])
	}

	// The 11-coefficient polynomial expansion leaves rounding noise on the
	// order of 1e-9 at the stopband edges, so the bound matches the
	// bandstop checks rather than demanding exact cancellation.
	if dc := gainAt(b, a, 0, 250); dc > 1e-6 {
		t.Errorf("DC gain = %g, want ~0", dc)
	}
	if ny := gainAt(b, a, 125, 250); ny > 1e-6 {
		t.Errorf("nyquist gain = %g, want ~0", ny)
	}
	// Mid-band gain is unity for a Butterworth design.
	if mid := gainAt(b, a, 10, 250); math.Abs(mid-1) > 0.01 {
		t.Errorf("10 Hz gain = %g, want ~1", mid)
	}
}

func TestBandstopShape(t *testing.T) {
	b, a, err := Bandstop(5, 48.5, 51.5, 250)
	if err != nil {
		t.Fatalf("Bandstop: %v", err)
	}

	if len(b) != 11 || len(a) != 11 {
		t.Fatalf("coefficient lengths = %d, %d, want 11, 11", len(b), len(a))
	}
	if a[0] != 1 {
		t.Errorf("a[0] = %g, want monic denominator", a[0])
	}

	if dc := gainAt(b, a, 0, 250); math.Abs(dc-1) > 0.01 {
		t.Errorf("DC gain = %g, want ~1", dc)
	}
	if center := gainAt(b, a, 50, 250); center > 1e-6 {
		t.Errorf("50 Hz gain = %g, want ~0", center)
	}
	if out := gainAt(b, a, 10, 250); math.Abs(out-1) > 0.01 {
		t.Errorf("10 Hz gain = %g, want ~1", out)
	}
}

func TestBandpassImpulseResponseDecays(t *testing.T) {
	b, a, err := Bandpass(5, 1, 45, 250)
	if err != nil {
		t.Fatalf("Bandpass: %v", err)
	}
	f, err := NewFilter(b, a)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	peak := 0.0
	last := 0.0
	for i := 0; i < 5000; i++ {
		x := 0.0
		if i == 0 {
			x = 1
		}
		y := math.Abs(f.Step(x))
		if y > peak {
			peak = y
		}
		last = y
	}

	if peak > 10 {
		t.Errorf("impulse response peak %g suggests instability", peak)
	}
	if last > 1e-6 {
		t.Errorf("impulse response tail %g has not decayed", last)
	}
}

func TestDesignValidation(t *testing.T) {
	cases := []struct {
		name              string
		order             int
		low, high, sample float64
	}{
		{"zero order", 0, 1, 45, 250},
		{"inverted band", 5, 45, 1, 250},
		{"zero low edge", 5, 0, 45, 250},
		{"edge at nyquist", 5, 1, 125, 250},
		{"zero sample rate", 5, 1, 45, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Bandpass(tc.order, tc.low, tc.high, tc.sample); err == nil {
				t.Error("Bandpass accepted invalid design")
			}
			if _, _, err := Bandstop(tc.order, tc.low, tc.high, tc.sample); err == nil {
				t.Error("Bandstop accepted invalid design")
			}
		})
	}
}
