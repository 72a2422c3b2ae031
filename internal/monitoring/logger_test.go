package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("filter fault: %v")
	if got != "filter fault: %v" {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// nil installs a no-op logger rather than leaving a nil func.
	SetLogger(nil)
	if Logf == nil {
		t.Fatal("Logf is nil after SetLogger(nil)")
	}
	Logf("should not panic")
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf must have a default")
	}
}
