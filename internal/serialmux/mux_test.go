package serialmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

// nopCloser adapts any reader into a Porter that EOFs when drained.
type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

func collectLines(t *testing.T, ch <-chan string, n int, timeout time.Duration) []string {
	t.Helper()
	var out []string
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case line, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d lines", len(out), n)
			}
			out = append(out, line)
		case <-deadline:
			t.Fatalf("timed out after %d of %d lines", len(out), n)
		}
	}
	return out
}

func TestMonitorDeliversCompleteLines(t *testing.T) {
	port := NewTestPort()
	mux := New(port)
	defer mux.Close()

	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	port.Feed("123.4\t-56.7\r\n")
	port.Feed("89.0")
	port.Feed("\t1.2\n")

	got := collectLines(t, ch, 2, 2*time.Second)
	want := []string{"123.4\t-56.7", "89.0\t1.2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMonitorIgnoresBlankLines(t *testing.T) {
	port := NewTestPort()
	mux := New(port)
	defer mux.Close()

	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	port.Feed("\r\n\n\r\n100.0\n")

	got := collectLines(t, ch, 1, 2*time.Second)
	if got[0] != "100.0" {
		t.Errorf("got %q, want %q", got[0], "100.0")
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra line %q", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorSkipsReadErrors(t *testing.T) {
	port := NewTestPort()
	mux := New(port)
	defer mux.Close()

	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.Feed("1.0\n")
	port.FailNextRead(errors.New("device hiccup"))
	port.Feed("2.0\n")

	got := collectLines(t, ch, 2, 2*time.Second)
	if got[0] != "1.0" || got[1] != "2.0" {
		t.Errorf("got %v, want [1.0 2.0]", got)
	}

	select {
	case err := <-done:
		t.Fatalf("Monitor exited on transient error: %v", err)
	default:
	}
}

func TestMonitorEndsOnEOF(t *testing.T) {
	mux := New(nopCloser{strings.NewReader("5.5\n6.6\n")})
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	got := collectLines(t, ch, 2, 2*time.Second)
	if got[0] != "5.5" || got[1] != "6.6" {
		t.Errorf("got %v, want [5.5 6.6]", got)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor returned %v on EOF, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not exit on EOF")
	}
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	port := NewTestPort()
	mux := New(port)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not exit on cancellation")
	}
}

func TestCloseEndsSubscribersAndMonitor(t *testing.T) {
	port := NewTestPort()
	mux := New(port)

	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected subscriber channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not exit after Close")
	}
}

func TestOverrunDropsOldestFirst(t *testing.T) {
	var fixture strings.Builder
	total := subscriberBuffer + 50
	for i := 0; i < total; i++ {
		fmt.Fprintf(&fixture, "%d\n", i)
	}

	mux := New(nopCloser{strings.NewReader(fixture.String())})
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not drain the fixture")
	}

	if got := mux.Overruns(); got != 50 {
		t.Errorf("Overruns() = %d, want 50", got)
	}

	// The oldest 50 lines were dropped; delivery resumes at line 50.
	first := <-ch
	if first != "50" {
		t.Errorf("first delivered line = %q, want %q", first, "50")
	}
	if got := len(ch); got != subscriberBuffer-1 {
		t.Errorf("remaining buffered lines = %d, want %d", got, subscriberBuffer-1)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	mux := New(NewTestPort())
	defer mux.Close()

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after Unsubscribe")
	}
}
