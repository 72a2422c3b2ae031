package eventlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecordFormatsAndAppends(t *testing.T) {
	dir := t.TempDir()
	log := New(dir)
	defer log.Close()

	if err := log.Record("select", 12.3456); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record("select", -0.0004); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record("move-next", 150.2); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "select.log"))
	if err != nil {
		t.Fatalf("read select.log: %v", err)
	}
	want := "select (12.346)\nselect (-0.000)\n"
	if string(got) != want {
		t.Errorf("select.log = %q, want %q", got, want)
	}

	got, err = os.ReadFile(filepath.Join(dir, "move-next.log"))
	if err != nil {
		t.Fatalf("read move-next.log: %v", err)
	}
	if string(got) != "move-next (150.200)\n" {
		t.Errorf("move-next.log = %q, want %q", got, "move-next (150.200)\n")
	}
}

func TestRecordAppendsAcrossSessions(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	if err := first.Record("select", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := New(dir)
	defer second.Close()
	if err := second.Record("select", 2); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "select.log"))
	if err != nil {
		t.Fatalf("read select.log: %v", err)
	}
	want := "select (1.000)\nselect (2.000)\n"
	if string(got) != want {
		t.Errorf("select.log = %q, want %q", got, want)
	}
}

func TestRecordMissingDirectory(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "absent"))
	if err := log.Record("select", 1); err == nil {
		t.Error("expected error for missing directory")
	}
}
