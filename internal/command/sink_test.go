package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingConsumer captures accepted commands and counts rejections for
// assertions.
type recordingConsumer struct {
	mu       sync.Mutex
	got      []Command
	fail     error
	rejected int
}

func (r *recordingConsumer) Accept(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		r.rejected++
		return r.fail
	}
	r.got = append(r.got, cmd)
	return nil
}

func (r *recordingConsumer) commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.got...)
}

func (r *recordingConsumer) rejections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSinkDeliversToActiveConsumer(t *testing.T) {
	sink := NewSink(8)
	rec := &recordingConsumer{}
	if err := sink.Register("launcher", rec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.Enqueue(Command{Kind: Select, Trigger: 12.345})
	sink.Enqueue(Command{Kind: MoveNext, Trigger: -150})

	waitFor(t, func() bool { return len(rec.commands()) == 2 })

	got := rec.commands()
	if got[0].Kind != Select || got[0].Trigger != 12.345 {
		t.Errorf("first command = %+v, want select 12.345", got[0])
	}
	if got[1].Kind != MoveNext {
		t.Errorf("second command = %+v, want move-next", got[1])
	}
}

func TestSinkActivateSwitchesConsumer(t *testing.T) {
	sink := NewSink(8)
	launcher := &recordingConsumer{}
	keyboard := &recordingConsumer{}
	if err := sink.Register("launcher", launcher); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := sink.Register("keyboard", keyboard); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// First registration is active by default.
	if got := sink.Active(); got != "launcher" {
		t.Errorf("Active() = %q, want launcher", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.Enqueue(Command{Kind: Select})
	waitFor(t, func() bool { return len(launcher.commands()) == 1 })

	if err := sink.Activate("keyboard"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	sink.Enqueue(Command{Kind: MoveNext})
	waitFor(t, func() bool { return len(keyboard.commands()) == 1 })

	if len(launcher.commands()) != 1 {
		t.Errorf("launcher received %d commands after deactivation, want 1", len(launcher.commands()))
	}
}

func TestSinkActivateUnknownConsumer(t *testing.T) {
	sink := NewSink(8)
	if err := sink.Activate("ghost"); err == nil {
		t.Error("expected error activating unregistered consumer")
	}
}

func TestSinkRegisterDuplicate(t *testing.T) {
	sink := NewSink(8)
	if err := sink.Register("a", &recordingConsumer{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := sink.Register("a", &recordingConsumer{}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if err := sink.Register("b", nil); err == nil {
		t.Error("expected error for nil consumer")
	}
}

func TestSinkEnqueueNeverBlocks(t *testing.T) {
	sink := NewSink(2)
	// No Run loop draining: fill past capacity.
	sink.Enqueue(Command{Kind: Select, Trigger: 1})
	sink.Enqueue(Command{Kind: Select, Trigger: 2})
	sink.Enqueue(Command{Kind: Select, Trigger: 3})

	if got := sink.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}

	// Oldest-first delivery: command 1 was sacrificed.
	first := <-sink.queue
	if first.Trigger != 2 {
		t.Errorf("first queued trigger = %g, want 2", first.Trigger)
	}
}

func TestSinkConsumerErrorIsNotFatal(t *testing.T) {
	sink := NewSink(8)
	rec := &recordingConsumer{fail: errors.New("surface busy")}
	if err := sink.Register("busy", rec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	sink.Enqueue(Command{Kind: Select})
	// The first command must be rejected before the failure is cleared, or
	// it would be accepted instead and nothing would test loop survival.
	waitFor(t, func() bool { return rec.rejections() == 1 })

	// Clear the failure and verify the loop is still alive.
	rec.mu.Lock()
	rec.fail = nil
	rec.mu.Unlock()

	sink.Enqueue(Command{Kind: MoveNext})
	waitFor(t, func() bool { return len(rec.commands()) == 1 })
	if got := rec.commands()[0].Kind; got != MoveNext {
		t.Errorf("delivered %q after consumer recovered, want move-next", got)
	}
}
