package logging

import "testing"

func TestDiscardSwallowsOutput(t *testing.T) {
	l := Discard()
	l.Info("should not panic or write anywhere", "x", 1)
	if l.Enabled(LevelError) {
		t.Fatalf("Discard logger reported LevelError as enabled")
	}
}

func TestNewRespectsMinLevel(t *testing.T) {
	l := New("vm", LevelWarn)
	if l.Enabled(LevelDebug) {
		t.Fatalf("LevelDebug should not be enabled when minLevel is LevelWarn")
	}
	if !l.Enabled(LevelWarn) {
		t.Fatalf("LevelWarn should be enabled when minLevel is LevelWarn")
	}
}

func TestWithAttachesArgs(t *testing.T) {
	l := Discard().With("run_id", "abc123")
	// With must not panic and must return a usable *Logger.
	l.Debug("starting run")
}
