package diagnostics

import "testing"

func TestHashSourceIsStable(t *testing.T) {
	a := HashSource("let x = 1;")
	b := HashSource("let x = 1;")
	if a != b {
		t.Fatalf("HashSource not stable: %q != %q", a, b)
	}
	if a == HashSource("let x = 2;") {
		t.Fatalf("HashSource did not distinguish different sources")
	}
}

func TestNewRunRecordAndFinish(t *testing.T) {
	rec := NewRunRecord("script", "1+1;", "")
	if rec.ID == "" {
		t.Fatalf("NewRunRecord did not stamp an ID")
	}
	if rec.Kind != "script" {
		t.Fatalf("Kind = %q, want script", rec.Kind)
	}
	rec.Finish(true, "", 42, 1024)
	if !rec.Succeeded || rec.InstructionsSpent != 42 || rec.MemoryUsedBytes != 1024 {
		t.Fatalf("Finish did not set outcome fields: %+v", rec)
	}
	if rec.FinishedAt.IsZero() {
		t.Fatalf("Finish did not stamp FinishedAt")
	}
}
