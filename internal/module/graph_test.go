package module

import (
	"fmt"
	"strings"
	"testing"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/compiler"
	"github.com/oxhq/esengine/internal/parser"
	"github.com/oxhq/esengine/internal/token"
	"github.com/oxhq/esengine/internal/value"
	"github.com/oxhq/esengine/internal/vm"
)

func TestScanImportSpecifiers(t *testing.T) {
	src := `
import { add } from "./math.js";
import defaultExport from './other.js';
import "./side-effect.js";
const x = 1;
`
	got := scanImportSpecifiers(src)
	want := []string{"./math.js", "./other.js", "./side-effect.js"}
	if len(got) != len(want) {
		t.Fatalf("scanImportSpecifiers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scanImportSpecifiers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStripModuleSyntax(t *testing.T) {
	src := `import { add } from "./math.js";
export const PI = 3.14;
export default PI;
export { helper };
const x = add(1, PI);
`
	got := stripModuleSyntax(src)
	for _, forbidden := range []string{"import", "export"} {
		if strings.Contains(got, forbidden) {
			t.Fatalf("stripModuleSyntax left %q in:\n%s", forbidden, got)
		}
	}
	for _, kept := range []string{"const PI = 3.14;", "PI;", "const x = add(1, PI);"} {
		if !strings.Contains(got, kept) {
			t.Fatalf("stripModuleSyntax dropped %q from:\n%s", kept, got)
		}
	}
	if gotLines, wantLines := strings.Count(got, "\n"), strings.Count(src, "\n"); gotLines != wantLines {
		t.Fatalf("stripModuleSyntax changed line count: %d, want %d", gotLines, wantLines)
	}
}

// mapLoader serves modules from memory, resolving ./-relative
// specifiers against a flat namespace — the smallest possible Loader.
type mapLoader struct{ files map[string]string }

func (l mapLoader) Load(referrer, specifier string) (string, string, error) {
	key := strings.TrimPrefix(specifier, "./")
	src, ok := l.files[key]
	if !ok {
		return "", "", fmt.Errorf("mapLoader: no module %q", specifier)
	}
	return key, src, nil
}

func TestLinkAndEvaluateGraph(t *testing.T) {
	loader := mapLoader{files: map[string]string{
		"entry.js": `import { add } from "./util.js";
export const result = add(20, 22);
`,
		"util.js": `export function add(a, b) { return a + b; }
`,
	}}

	in := token.NewInterner()
	compile := func(source, specifier string) (*bytecode.CodeBlock, error) {
		prog, err := parser.ParseProgram(source, in, true)
		if err != nil {
			return nil, err
		}
		return compiler.New(in, true).Compile(prog)
	}

	v := vm.New(0)
	g := NewGraph(loader, compile, v)
	entry, err := g.Link("entry.js")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if entry.Status != StatusLinked {
		t.Fatalf("entry status = %d, want linked", entry.Status)
	}
	if len(entry.Deps) != 1 || entry.Deps[0] != "util.js" {
		t.Fatalf("entry.Deps = %v, want [util.js]", entry.Deps)
	}

	nsVal, err := g.Evaluate(entry)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if entry.Status != StatusEvaluated {
		t.Fatalf("entry status after evaluate = %d", entry.Status)
	}
	result, err := entry.Namespace.Get(value.NewPropertyKeyFromString("result"), nsVal)
	if err != nil {
		t.Fatalf("namespace get: %v", err)
	}
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Fatalf("exported result = %#v, want 42", result)
	}
}

func TestScanExportedNames(t *testing.T) {
	src := `
export function add(a, b) { return a + b; }
export const PI = 3.14;
export class Point {}
function helper() {}
`
	got := scanExportedNames(src)
	want := map[string]bool{"add": true, "PI": true, "Point": true}
	if len(got) != len(want) {
		t.Fatalf("scanExportedNames() = %v, want keys %v", got, want)
	}
	for _, name := range got {
		if !want[name] {
			t.Fatalf("scanExportedNames() returned unexpected name %q", name)
		}
	}
}
