package esengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine"
)

func newTestContext(t *testing.T) *esengine.Context {
	t.Helper()
	ctx, err := esengine.New(nil)
	require.NoError(t, err, "esengine.New")
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

// TestArithmeticAndBindings covers the simplest end-to-end path: a
// `let` declaration and a numeric expression statement as the script's
// completion value.
func TestArithmeticAndBindings(t *testing.T) {
	ctx := newTestContext(t)
	result, err := ctx.RunScript("let x = 2; x + 3;", "arith.js")
	require.NoError(t, err)
	assert.True(t, result.IsNumber(), "expected a number, got %#v", result)
	assert.Equal(t, float64(5), result.AsNumber())
}

// TestFunctionCallsAndStringCoercion checks that `+` dispatches to
// numeric addition and string concatenation per its operand types
// within the same function.
func TestFunctionCallsAndStringCoercion(t *testing.T) {
	ctx := newTestContext(t)
	src := `function f(a,b){ return a+b; } f(1,2) + f("a","b");`
	result, err := ctx.RunScript(src, "coerce.js")
	require.NoError(t, err)
	assert.True(t, result.IsString())
	assert.Equal(t, "3ab", result.AsString().Go())
}

// TestGeneratorSuspendResume drives a generator through two yields and
// confirms the third call to next() reports done with an undefined
// value, per spec.md §8 scenario 3.
func TestGeneratorSuspendResume(t *testing.T) {
	ctx := newTestContext(t)
	src := `function* g(){ yield 1; yield 2; } const it = g(); [it.next().value, it.next().value, it.next().done];`
	result, err := ctx.RunScript(src, "gen.js")
	require.NoError(t, err)
	require.True(t, result.IsObject())
	assert.Equal(t, "[ 1, 2, false ]", esengine.Inspect(result))

	src2 := `function* g(){ yield 1; } const it = g(); it.next(); it.next();`
	result2, err := ctx.RunScript(src2, "gen-exhausted.js")
	require.NoError(t, err)
	assert.Equal(t, "{ value: undefined, done: true }", esengine.Inspect(result2))
}

// TestThrownTypeErrorConstructorName confirms a thrown TypeError's
// constructor.name is observable from a catch clause, per spec.md §8
// scenario 4.
func TestThrownTypeErrorConstructorName(t *testing.T) {
	ctx := newTestContext(t)
	src := `try { null.x; } catch(e) { e.constructor.name; }`
	result, err := ctx.RunScript(src, "typeerror.js")
	require.NoError(t, err)
	assert.True(t, result.IsString())
	assert.Equal(t, "TypeError", result.AsString().Go())
}

// TestNonWritablePropertyAssignment checks spec.md §8 scenario 5's
// sloppy-mode silent-failure behavior on a non-writable property.
func TestNonWritablePropertyAssignment(t *testing.T) {
	ctx := newTestContext(t)
	src := `const o = {};
Object.defineProperty(o, "k", {value:1, writable:false, configurable:false});
let t;
try { o.k = 2; t = "soft"; } catch(e) { t = "throw"; }
[o.k, t];`
	result, err := ctx.RunScript(src, "frozen.js")
	require.NoError(t, err)
	assert.Equal(t, `[ 1, "soft" ]`, esengine.Inspect(result))
}

// TestNonWritablePropertyAssignmentStrict is the strict-mode variant
// of the same scenario: the assignment must throw instead of
// silently failing.
func TestNonWritablePropertyAssignmentStrict(t *testing.T) {
	ctx := newTestContext(t)
	src := `"use strict";
const o = {};
Object.defineProperty(o, "k", {value:1, writable:false, configurable:false});
let t;
try { o.k = 2; t = "soft"; } catch(e) { t = "throw"; }
[o.k, t];`
	result, err := ctx.RunScript(src, "frozen-strict.js")
	require.NoError(t, err)
	assert.Equal(t, `[ 1, "throw" ]`, esengine.Inspect(result))
}

// TestAsyncAwaitPromiseResolve drains the microtask queue after an
// async function awaits an already-resolved promise, per spec.md §8
// scenario 6.
func TestAsyncAwaitPromiseResolve(t *testing.T) {
	ctx := newTestContext(t)
	src := `async function f(){ return await Promise.resolve(7); } let r; f().then(v => r = v); r;`
	_, err := ctx.RunScript(src, "async.js")
	require.NoError(t, err)
	ctx.DrainMicrotasks()

	r, ok := ctx.GetGlobal("r")
	require.True(t, ok)
	assert.True(t, r.IsNumber())
	assert.Equal(t, float64(7), r.AsNumber())
}

// TestHostFunctionRoundTrip exercises spec.md §6's host-function and
// value-construction operations together: a native callback invoked
// from script, returning a value built via the Context's constructors.
func TestHostFunctionRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	ctx.RegisterHostFunction("double", 1, func(_ esengine.Value, args []esengine.Value) (esengine.Value, error) {
		if len(args) == 0 {
			return esengine.NewUndefined(), nil
		}
		return esengine.NewNumber(args[0].AsNumber() * 2), nil
	})
	result, err := ctx.RunScript("double(21);", "host.js")
	require.NoError(t, err)
	assert.Equal(t, float64(42), result.AsNumber())
}

// TestObjectIsInvariants pins down spec.md §4.5's Object.is/NaN/±0
// universal invariants.
func TestObjectIsInvariants(t *testing.T) {
	ctx := newTestContext(t)
	result, err := ctx.RunScript(`[NaN !== NaN, Object.is(NaN, NaN), (+0 === -0), Object.is(+0, -0)];`, "isnan.js")
	require.NoError(t, err)
	assert.Equal(t, "[ true, true, true, false ]", esengine.Inspect(result))
}
