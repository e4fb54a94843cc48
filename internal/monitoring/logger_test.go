package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("lap complete")
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("lap complete")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestComponent(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	logf := Component("Session")
	logf("frame %d", 42)

	// Swapping the logger after Component was called still takes effect.
	var late string
	SetLogger(func(format string, v ...interface{}) { late = fmt.Sprintf(format, v...) })
	logf("done")

	if len(got) != 1 || got[0] != "[Session] frame 42" {
		t.Errorf("unexpected log lines: %q", got)
	}
	if late != "[Session] done" {
		t.Errorf("expected late logger to receive line, got %q", late)
	}
}
