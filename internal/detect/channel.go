package detect

import "fmt"

// Conditioner filters one raw sample into its conditioned value. The
// production implementation is dsp.Chain; tests substitute simpler stages.
type Conditioner interface {
	Condition(raw float64) float64
}

// Channel is one biosignal input: its identity, its conditioning stage,
// and a fixed-size window of the most recent filtered samples. The window
// exists for downstream consumers (display, reporting); classification
// only ever looks at the latest filtered value.
type Channel struct {
	Index int
	Label string

	chain  Conditioner
	window []float64
}

func newChannel(index int, cond Conditioner, windowLen int) (*Channel, error) {
	if windowLen < 1 {
		return nil, fmt.Errorf("channel %d: window length must be >= 1, got %d", index, windowLen)
	}
	if cond == nil {
		return nil, fmt.Errorf("channel %d: conditioner is nil", index)
	}
	return &Channel{
		Index:  index,
		Label:  fmt.Sprintf("ch%d", index+1),
		chain:  cond,
		window: make([]float64, windowLen),
	}, nil
}

// condition filters one raw sample, slides it into the window, and returns
// the filtered value.
func (c *Channel) condition(raw float64) float64 {
	v := c.chain.Condition(raw)
	copy(c.window, c.window[1:])
	c.window[len(c.window)-1] = v
	return v
}

// Window returns a copy of the channel's filtered-sample window, oldest
// first.
func (c *Channel) Window() []float64 {
	return append([]float64(nil), c.window...)
}
