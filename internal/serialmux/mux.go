package serialmux

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gazelink-data/gazelink/internal/monitoring"
)

// subscriberBuffer bounds each subscriber channel. When a consumer falls
// behind, the oldest buffered line is dropped in favor of the newest and
// the overrun counter increments; samples are never silently discarded
// without that signal.
const subscriberBuffer = 256

// errorBackoff throttles the read loop after a transient fault so a
// persistently failing port cannot spin the CPU.
const errorBackoff = 50 * time.Millisecond

// Mux reads newline-delimited sample records from a serial port and fans
// them out to subscribers. Blocking I/O stays on the mux's own goroutine so
// it can never stall classification.
type Mux struct {
	port Porter

	subscriberMu sync.Mutex
	subscribers  map[string]chan string

	closingMu sync.Mutex
	closing   bool

	overruns atomic.Uint64
}

// New creates a Mux over an open port. The caller starts delivery with
// Monitor and ends the session with Close.
func New(port Porter) *Mux {
	return &Mux{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random subscriber ID (8 byte hex value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new bounded channel for receiving record lines.
// The returned ID identifies the channel for Unsubscribe.
func (m *Mux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Mux) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Overruns reports how many buffered lines have been dropped because a
// subscriber could not keep up.
func (m *Mux) Overruns() uint64 {
	return m.overruns.Load()
}

// Monitor reads lines from the port and delivers them to subscribers until
// the context is cancelled, Close is called, or the stream ends. Transient
// read errors are logged and skipped; they never end the session.
func (m *Mux) Monitor(ctx context.Context) error {
	lineChan := make(chan string)
	go m.readLoop(ctx, lineChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			if m.isClosing() {
				return nil
			}
			m.publish(line)
		}
	}
}

// readLoop owns the blocking port reads. It assembles complete lines from
// raw chunks and forwards them, skipping the iteration on any fault.
func (m *Mux) readLoop(ctx context.Context, lineChan chan<- string) {
	defer close(lineChan)

	buf := make([]byte, 1024)
	var pending []byte

	for {
		if m.isClosing() || ctx.Err() != nil {
			return
		}

		n, err := m.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimRight(string(pending[:idx]), "\r")
				pending = pending[idx+1:]
				if line == "" {
					continue // bare terminator, not an error
				}
				select {
				case lineChan <- line:
				case <-ctx.Done():
					return
				}
			}
		}

		if err != nil {
			if m.isClosing() || ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			monitoring.Logf("serialmux: read error, skipping iteration: %v", err)
			time.Sleep(errorBackoff)
		}
	}
}

// publish fans a line out to every subscriber. A full subscriber loses its
// oldest buffered line first, keeping delivery FIFO under overrun.
func (m *Mux) publish(line string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- line:
			continue
		default:
		}

		select {
		case <-ch:
			if n := m.overruns.Add(1); n%100 == 1 {
				monitoring.Logf("serialmux: subscriber overrun, %d lines dropped so far", n)
			}
		default:
		}
		select {
		case ch <- line:
		default:
		}
	}
}

// Close stops delivery and closes the underlying port. This is the only
// externally triggered cancellation point for the read loop.
func (m *Mux) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}

func (m *Mux) isClosing() bool {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()
	return m.closing
}
