package dsp

// Chain is the per-channel conditioning stage: a bandpass filter followed
// by a notch. Each channel owns its own Chain; the sub-filters keep
// independent state and are never shared between channels.
type Chain struct {
	bandpass *Filter
	notch    *Filter
}

// ChainParams describes one channel conditioning design.
type ChainParams struct {
	Order            int
	BandpassLowHz    float64
	BandpassHighHz   float64
	NotchHz          float64
	NotchHalfWidthHz float64
	SampleRateHz     float64
}

// NewChain designs the bandpass and notch filters and composes them into a
// conditioning chain. Coefficients are computed once here and are immutable
// afterwards.
func NewChain(p ChainParams) (*Chain, error) {
	bpB, bpA, err := Bandpass(p.Order, p.BandpassLowHz, p.BandpassHighHz, p.SampleRateHz)
	if err != nil {
		return nil, err
	}
	bandpass, err := NewFilter(bpB, bpA)
	if err != nil {
		return nil, err
	}

	nB, nA, err := Bandstop(p.Order, p.NotchHz-p.NotchHalfWidthHz, p.NotchHz+p.NotchHalfWidthHz, p.SampleRateHz)
	if err != nil {
		return nil, err
	}
	notch, err := NewFilter(nB, nA)
	if err != nil {
		return nil, err
	}

	return &Chain{bandpass: bandpass, notch: notch}, nil
}

// Condition runs one raw sample through bandpass then notch and returns
// the conditioned value.
func (c *Chain) Condition(raw float64) float64 {
	return c.notch.Step(c.bandpass.Step(raw))
}

// Reset clears the state of both sub-filters.
func (c *Chain) Reset() {
	c.bandpass.Reset()
	c.notch.Reset()
}
