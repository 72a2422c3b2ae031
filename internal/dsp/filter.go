// Package dsp implements the real-time signal conditioning stage: causal
// IIR filtering of one sample at a time plus the Butterworth designs that
// produce the filter coefficients.
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Filter is a single-channel direct-form recursive filter. It holds two
// delay lines (most recent value first): the last len(b) raw inputs and the
// last len(a)-1 produced outputs. State is owned exclusively by the filter
// and mutated only by Step.
type Filter struct {
	b  []float64 // feed-forward coefficients
	a  []float64 // feedback coefficients, a[0] is the normalizer
	xs []float64
	ys []float64
}

// NewFilter creates a filter from feed-forward (b) and feedback (a)
// coefficient vectors. Coefficients are copied and immutable for the
// filter's lifetime. Stability of the supplied coefficients is the
// caller's responsibility.
func NewFilter(b, a []float64) (*Filter, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("filter needs at least one feed-forward coefficient")
	}
	if len(a) == 0 {
		return nil, fmt.Errorf("filter needs at least one feedback coefficient")
	}
	if a[0] == 0 {
		return nil, fmt.Errorf("leading feedback coefficient must be non-zero")
	}

	f := &Filter{
		b:  append([]float64(nil), b...),
		a:  append([]float64(nil), a...),
		xs: make([]float64, len(b)),
		ys: make([]float64, len(a)-1),
	}
	return f, nil
}

// Step feeds one raw sample through the filter and returns the filtered
// value. NaN inputs pass through unchanged without touching the delay
// lines, so gaps in the stream do not corrupt filter state.
func (f *Filter) Step(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}

	shiftIn(f.xs, x)
	y := floats.Dot(f.b, f.xs) - floats.Dot(f.a[1:], f.ys)
	y /= f.a[0]
	shiftIn(f.ys, y)
	return y
}

// Reset zeroes both delay lines, returning the filter to its initial state.
func (f *Filter) Reset() {
	for i := range f.xs {
		f.xs[i] = 0
	}
	for i := range f.ys {
		f.ys[i] = 0
	}
}

// shiftIn prepends v to the line, dropping the oldest entry.
func shiftIn(line []float64, v float64) {
	if len(line) == 0 {
		return
	}
	copy(line[1:], line)
	line[0] = v
}
