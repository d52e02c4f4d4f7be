package module

import (
	"errors"
	"path"
	"strings"
)

// ErrResolution is returned when a specifier cannot be resolved under
// a loader's base directory, per spec.md §6: "A path that escapes
// base, or a relative specifier with no referrer, fails with a
// resolution error."
var ErrResolution = errors.New("module: specifier resolution failed")

// Resolve implements spec.md §6's concrete filesystem specifier-
// resolution policy: a specifier starting with `./` or `../` resolves
// relative to the referrer's directory; otherwise it resolves relative
// to base. The result is normalized (`.` elided, `..` popped) and must
// remain a descendant of base.
//
// referrer is the specifier of the importing module, or "" for the
// entry point (no referrer); base is the loader's root directory, an
// already-normalized slash-separated path.
func Resolve(base, referrer, specifier string) (string, error) {
	var dir string
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		if referrer == "" {
			return "", ErrResolution
		}
		dir = path.Dir(referrer)
	} else {
		dir = base
	}

	resolved := path.Join(dir, specifier)
	resolved = path.Clean(resolved)

	if !isDescendant(base, resolved) {
		return "", ErrResolution
	}
	return resolved, nil
}

// isDescendant reports whether resolved is base itself or lies under
// it, after both are cleaned — the "must remain a descendant of base"
// guard from §6, preventing `../../etc/passwd`-style escapes.
func isDescendant(base, resolved string) bool {
	base = path.Clean(base)
	resolved = path.Clean(resolved)
	if resolved == base {
		return true
	}
	return strings.HasPrefix(resolved, base+"/")
}
