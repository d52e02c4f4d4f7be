package module

import "testing"

func TestResolveRelativeToReferrer(t *testing.T) {
	got, err := Resolve("/base", "/base/a/entry.js", "./util.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "/base/a/util.js"; got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveParentTraversal(t *testing.T) {
	got, err := Resolve("/base", "/base/a/b/entry.js", "../../util.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "/base/util.js"; got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveBareSpecifierRelativeToBase(t *testing.T) {
	got, err := Resolve("/base", "/base/a/entry.js", "lib/helpers.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := "/base/lib/helpers.js"; got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveEscapingBaseFails(t *testing.T) {
	_, err := Resolve("/base", "/base/a/entry.js", "../../../etc/passwd")
	if err != ErrResolution {
		t.Fatalf("Resolve() err = %v, want ErrResolution", err)
	}
}

func TestResolveRelativeWithNoReferrerFails(t *testing.T) {
	_, err := Resolve("/base", "", "./entry.js")
	if err != ErrResolution {
		t.Fatalf("Resolve() err = %v, want ErrResolution", err)
	}
}
