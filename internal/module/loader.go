// FileLoader is the concrete filesystem Loader of spec.md §6 /
// SPEC_FULL §6: specifier resolution is Resolve (resolve.go); directory
// traversal and glob filtering for its optional pre-load sweep are
// grounded on the teacher's `core.FileWalker`/`matchPattern` (doublestar
// `PathMatch` against the full path, falling back to a basename match
// for separator-free patterns), reused directly for this package's
// `Preload` since the underlying "does this path match these glob
// patterns" concern is identical even though the traversal's *purpose*
// (module discovery, not per-file transform scanning) is new.
package module

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileLoader resolves and reads module source text from disk, rooted
// at BaseDir. IncludeGlobs/ExcludeGlobs, when non-empty, narrow which
// files Preload is willing to discover (they do not affect Resolve,
// which must still succeed for any in-base path an import names
// explicitly — the globs are a discovery filter, not an access
// control).
type FileLoader struct {
	BaseDir      string
	IncludeGlobs []string
	ExcludeGlobs []string
}

// NewFileLoader normalizes baseDir to a slash-separated absolute path,
// the form Resolve's descendant check compares against.
func NewFileLoader(baseDir string) (*FileLoader, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("module: resolving base dir: %w", err)
	}
	return &FileLoader{BaseDir: filepath.ToSlash(abs)}, nil
}

// Load resolves specifier against referrer (per Resolve) and reads the
// resulting file, implementing the Loader contract's synchronous case
// (a loader whose "finish_load" happens to complete before returning).
func (l *FileLoader) Load(referrer, specifier string) (resolvedPath string, source string, err error) {
	resolved, err := Resolve(l.BaseDir, referrer, specifier)
	if err != nil {
		return "", "", err
	}
	osPath := filepath.FromSlash(resolved)
	data, err := os.ReadFile(osPath)
	if err != nil {
		return "", "", fmt.Errorf("module: reading %s: %w", resolved, err)
	}
	return resolved, string(data), nil
}

// Preload walks BaseDir collecting every file whose path matches
// IncludeGlobs (all files if empty) and none of ExcludeGlobs, the
// discovery sweep a host can run before evaluating an entry module to
// know the full candidate module set up front.
func (l *FileLoader) Preload() ([]string, error) {
	var found []string
	err := filepath.WalkDir(filepath.FromSlash(l.BaseDir), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		slashPath := filepath.ToSlash(p)
		rel := strings.TrimPrefix(strings.TrimPrefix(slashPath, l.BaseDir), "/")
		if l.matches(rel) {
			found = append(found, slashPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("module: preloading %s: %w", l.BaseDir, err)
	}
	return found, nil
}

func (l *FileLoader) matches(relPath string) bool {
	if len(l.IncludeGlobs) > 0 && !matchAny(l.IncludeGlobs, relPath) {
		return false
	}
	if matchAny(l.ExcludeGlobs, relPath) {
		return false
	}
	return true
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.PathMatch(pattern, p); err == nil && matched {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if matched, err := doublestar.PathMatch(pattern, path.Base(p)); err == nil && matched {
				return true
			}
		}
	}
	return false
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "dist", "build":
		return true
	}
	return strings.HasPrefix(name, ".") && name != "."
}
