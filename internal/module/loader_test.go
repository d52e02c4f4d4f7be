package module

import (
	"os"
	"testing"
)

func TestMatchAnyDoublestar(t *testing.T) {
	if !matchAny([]string{"**/*.js"}, "src/a/b.js") {
		t.Fatalf("expected src/a/b.js to match **/*.js")
	}
	if matchAny([]string{"**/*.ts"}, "src/a/b.js") {
		t.Fatalf("did not expect src/a/b.js to match **/*.ts")
	}
}

func TestMatchAnyBasenamePattern(t *testing.T) {
	if !matchAny([]string{"*.js"}, "src/a/b.js") {
		t.Fatalf("expected basename fallback to match *.js against src/a/b.js")
	}
}

func TestShouldSkipDir(t *testing.T) {
	for _, name := range []string{".git", "node_modules", "vendor", ".hidden"} {
		if !shouldSkipDir(name) {
			t.Fatalf("expected %q to be skipped", name)
		}
	}
	if shouldSkipDir("src") {
		t.Fatalf("did not expect src to be skipped")
	}
}

func TestFileLoaderLoadAndPreload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/entry.js", `import "./util.js";`)
	writeFile(t, dir+"/util.js", `export const x = 1;`)
	writeFile(t, dir+"/notes.txt", `not a module`)

	l, err := NewFileLoader(dir)
	if err != nil {
		t.Fatalf("NewFileLoader: %v", err)
	}
	l.IncludeGlobs = []string{"*.js"}

	// The entry point has no referrer, so it must be named relative to
	// the loader's base, not with a ./ prefix (Resolve rejects that).
	resolved, src, err := l.Load("", "entry.js")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src != `import "./util.js";` {
		t.Fatalf("Load() source = %q", src)
	}

	_, _, err = l.Load(resolved, "./util.js")
	if err != nil {
		t.Fatalf("Load dependency: %v", err)
	}

	found, err := l.Preload()
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Preload() found %d files, want 2 (.js only): %v", len(found), found)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
}
