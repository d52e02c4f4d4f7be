package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine/internal/ast"
	"github.com/oxhq/esengine/internal/token"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	in := token.NewInterner()
	prog, err := ParseProgram(src, in, false)
	require.NoError(t, err, src)
	return prog
}

func TestParseSimpleDeclaration(t *testing.T) {
	prog := parse(t, "let x = 2; x + 3;")
	require.Len(t, prog.Body, 2)
	decl, ok := prog.Body[0].(*ast.VarDecl)
	require.True(t, ok)
	assert.Equal(t, ast.VarLet, decl.Kind)
	require.Len(t, decl.Decls, 1)
}

func TestParseFunctionDeclAndCall(t *testing.T) {
	prog := parse(t, `function f(a,b){ return a+b; } f(1,2) + f("a","b");`)
	require.Len(t, prog.Body, 2)
	fnDecl, ok := prog.Body[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.Len(t, fnDecl.Fn.Params, 2)
}

func TestParseGenerator(t *testing.T) {
	prog := parse(t, `function* g(){ yield 1; yield 2; } const it = g();`)
	require.Len(t, prog.Body, 2)
	fnDecl, ok := prog.Body[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.True(t, fnDecl.Fn.IsGen)
}

func TestParseTryCatch(t *testing.T) {
	prog := parse(t, `try { null.x; } catch(e) { e.constructor.name; }`)
	require.Len(t, prog.Body, 1)
	_, ok := prog.Body[0].(*ast.TryStmt)
	require.True(t, ok)
}

func TestParseArrowFunctions(t *testing.T) {
	prog := parse(t, `const add = (a, b) => a + b; const id = x => x;`)
	require.Len(t, prog.Body, 2)
}

func TestParseAsyncAwait(t *testing.T) {
	prog := parse(t, `async function f(){ return await Promise.resolve(7); } let r; f().then(v => r = v);`)
	require.Len(t, prog.Body, 3)
	fnDecl, ok := prog.Body[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.True(t, fnDecl.Fn.IsAsync)
}

func TestParseDestructuringAndDefaults(t *testing.T) {
	prog := parse(t, `const {a, b = 2, ...rest} = obj; const [x, , y] = arr;`)
	require.Len(t, prog.Body, 2)
	decl, ok := prog.Body[0].(*ast.VarDecl)
	require.True(t, ok)
	pat, ok := decl.Decls[0].Target.(*ast.ObjectPattern)
	require.True(t, ok)
	assert.Len(t, pat.Props, 2)
	assert.NotNil(t, pat.Rest)
}

func TestParseClass(t *testing.T) {
	prog := parse(t, `class A extends B { #x = 1; constructor() { super(); } get y() { return this.#x; } static z() {} }`)
	require.Len(t, prog.Body, 1)
	decl, ok := prog.Body[0].(*ast.ClassDecl)
	require.True(t, ok)
	assert.NotNil(t, decl.Class.SuperClass)
	assert.True(t, len(decl.Class.Members) >= 4)
}

func TestParseForVariants(t *testing.T) {
	parse(t, `for (let i = 0; i < 10; i++) { i; }`)
	parse(t, `for (const k in obj) { k; }`)
	parse(t, `for (const v of arr) { v; }`)
}

func TestParseObjectLiteralDescriptor(t *testing.T) {
	prog := parse(t, `const o = {}; Object.defineProperty(o, "k", {value:1, writable:false, configurable:false});`)
	require.Len(t, prog.Body, 2)
}

func TestParseUseStrictDirective(t *testing.T) {
	prog := parse(t, `"use strict"; let x = 1;`)
	assert.True(t, prog.Strict)
}

func TestFunctionStrictnessPropagation(t *testing.T) {
	prog := parse(t, `"use strict"; function f() { return 1; }`)
	require.True(t, prog.Strict)
	fnDecl, ok := prog.Body[1].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.True(t, fnDecl.Fn.Strict, "function in a strict script must be strict")

	prog2 := parse(t, `function f() { "use strict"; return 1; }`)
	require.False(t, prog2.Strict)
	fnDecl2, ok := prog2.Body[0].(*ast.FunctionDecl)
	require.True(t, ok)
	assert.True(t, fnDecl2.Fn.Strict, "own use-strict prologue must apply")

	prog3 := parse(t, `function f() { return 1; }`)
	fnDecl3 := prog3.Body[0].(*ast.FunctionDecl)
	assert.False(t, fnDecl3.Fn.Strict)
}

func TestClassMethodsAreStrict(t *testing.T) {
	prog := parse(t, `class A { m() { return 1; } }`)
	decl, ok := prog.Body[0].(*ast.ClassDecl)
	require.True(t, ok)
	m := decl.Class.Members[0]
	require.NotNil(t, m.Value)
	assert.True(t, m.Value.Strict)
}

func TestParseTemplateLiterals(t *testing.T) {
	parse(t, "const s = `hello ${1 + 1} world`;")
}

func TestParseErrorOnUnterminatedString(t *testing.T) {
	in := token.NewInterner()
	_, err := ParseProgram(`"abc`, in, false)
	require.Error(t, err)
}
