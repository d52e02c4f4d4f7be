package diagnostics

import (
	"path/filepath"
	"testing"
)

func TestOpenMigrateRecordAndRecent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(dsn, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	rec := NewRunRecord("script", "let x = 1;", "")
	rec.Finish(true, "", 10, 512)
	if err := store.Record(rec, []string{"<script>"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Recent() returned %d records, want 1", len(recent))
	}
	if recent[0].ID != rec.ID {
		t.Fatalf("Recent()[0].ID = %q, want %q", recent[0].ID, rec.ID)
	}
}

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"./run.db":                  false,
		"run.db":                    false,
		"https://turso.example/db":  true,
		"http://turso.example/db":   true,
		"libsql://turso.example/db": true,
	}
	for dsn, want := range cases {
		if got := isURL(dsn); got != want {
			t.Errorf("isURL(%q) = %v, want %v", dsn, got, want)
		}
	}
}
