package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// TestPort is a scriptable in-memory Porter. Tests feed it data and error
// injections; Read blocks until data arrives or the port is closed, which
// mirrors a quiet serial line.
type TestPort struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	errs   []error
	closed bool

	// ReadCalls counts Read invocations, for loop-behavior assertions.
	ReadCalls int
}

// NewTestPort creates an empty TestPort.
func NewTestPort() *TestPort {
	p := &TestPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Feed appends raw bytes for subsequent reads and wakes blocked readers.
func (p *TestPort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.WriteString(data)
	p.cond.Broadcast()
}

// FailNextRead queues an error to be returned by an upcoming Read, after
// any buffered data has been drained.
func (p *TestPort) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
	p.cond.Broadcast()
}

func (p *TestPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadCalls++

	for {
		if p.closed {
			return 0, errors.New("serial port closed")
		}
		if p.buf.Len() > 0 {
			return p.buf.Read(buf)
		}
		if len(p.errs) > 0 {
			err := p.errs[0]
			p.errs = p.errs[1:]
			return 0, err
		}
		p.cond.Wait()
	}
}

func (p *TestPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}
