package command

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gazelink-data/gazelink/internal/monitoring"
)

// Consumer receives commands from the sink. Implementations live outside
// the core (UI surfaces, automation bridges); the sink only knows that
// exactly one of them is active at a time.
type Consumer interface {
	Accept(cmd Command) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(Command) error

func (f ConsumerFunc) Accept(cmd Command) error { return f(cmd) }

// Sink is the single-producer hand-off between the event detector and the
// active consumer. Enqueue never blocks the detector: on overflow the
// oldest command is dropped and counted.
type Sink struct {
	queue chan Command

	mu        sync.Mutex
	consumers map[string]Consumer
	active    string

	dropped atomic.Uint64
}

// NewSink creates a sink with the given queue capacity.
func NewSink(capacity int) *Sink {
	if capacity < 1 {
		capacity = 16
	}
	return &Sink{
		queue:     make(chan Command, capacity),
		consumers: make(map[string]Consumer),
	}
}

// Register adds a named consumer. The first registered consumer becomes
// active by default.
func (s *Sink) Register(name string, c Consumer) error {
	if c == nil {
		return fmt.Errorf("consumer %q is nil", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.consumers[name]; exists {
		return fmt.Errorf("consumer %q already registered", name)
	}
	s.consumers[name] = c
	if s.active == "" {
		s.active = name
	}
	return nil
}

// Activate switches delivery to the named consumer.
func (s *Sink) Activate(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.consumers[name]; !exists {
		return fmt.Errorf("unknown consumer %q", name)
	}
	s.active = name
	return nil
}

// Active reports the name of the currently active consumer.
func (s *Sink) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Enqueue hands a command to the sink without blocking. When the queue is
// full the oldest queued command is discarded in favor of the new one.
func (s *Sink) Enqueue(cmd Command) {
	select {
	case s.queue <- cmd:
		return
	default:
	}

	select {
	case stale := <-s.queue:
		n := s.dropped.Add(1)
		monitoring.Logf("command: queue overrun, dropped %s (%d total)", stale.Kind, n)
	default:
	}
	select {
	case s.queue <- cmd:
	default:
	}
}

// Dropped reports how many commands were discarded due to queue overrun.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run dispatches queued commands to the active consumer until the context
// is cancelled. Consumer errors are logged, never escalated; a broken
// consumer must not take the pipeline down.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.queue:
			s.dispatch(cmd)
		}
	}
}

func (s *Sink) dispatch(cmd Command) {
	s.mu.Lock()
	consumer := s.consumers[s.active]
	name := s.active
	s.mu.Unlock()

	if consumer == nil {
		monitoring.Logf("command: no active consumer, dropping %s (%.3f)", cmd.Kind, cmd.Trigger)
		return
	}
	if err := consumer.Accept(cmd); err != nil {
		monitoring.Logf("command: consumer %q rejected %s: %v", name, cmd.Kind, err)
	}
}
