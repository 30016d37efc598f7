package monitoring

import (
	"sync"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var rec Recorder
	SetLogger(rec.Logf)
	Prefixed("[batch] ")("processed %d files", 3)

	lines := rec.Lines()
	if len(lines) != 1 || lines[0] != "[batch] processed 3 files" {
		t.Errorf("lines = %q", lines)
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	var rec Recorder
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec.Logf("worker %d", i)
		}(i)
	}
	wg.Wait()
	if got := len(rec.Lines()); got != 8 {
		t.Errorf("lines = %d, want 8", got)
	}
}
