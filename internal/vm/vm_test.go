package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/compiler"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/parser"
	"github.com/oxhq/esengine/internal/token"
	"github.com/oxhq/esengine/internal/value"
)

func compileSrc(t *testing.T, src string) *bytecode.CodeBlock {
	t.Helper()
	in := token.NewInterner()
	prog, err := parser.ParseProgram(src, in, false)
	require.NoError(t, err, src)
	cb, err := compiler.New(in, false).Compile(prog)
	require.NoError(t, err, src)
	return cb
}

func run(t *testing.T, src string) (value.Value, *VM) {
	t.Helper()
	v := New(0)
	result, err := v.RunScript(compileSrc(t, src))
	require.NoError(t, err, src)
	return result, v
}

func runErr(t *testing.T, src string) (error, *VM) {
	t.Helper()
	v := New(0)
	_, err := v.RunScript(compileSrc(t, src))
	return err, v
}

func elems(t *testing.T, v value.Value) []value.Value {
	t.Helper()
	arr, ok := v.AsObject().(*object.Object)
	require.True(t, ok, "expected an array object")
	return elementsOf(arr)
}

func TestRunArithmetic(t *testing.T) {
	result, _ := run(t, "let x = 2; x + 3;")
	require.True(t, result.IsNumber())
	assert.Equal(t, float64(5), result.AsNumber())
}

func TestAddDispatchesOnOperandTypes(t *testing.T) {
	result, _ := run(t, `function f(a,b){ return a+b; } f(1,2) + f("a","b");`)
	require.True(t, result.IsString())
	assert.Equal(t, "3ab", result.AsString().Go())
}

func TestHandlerTableCatchesThrow(t *testing.T) {
	result, _ := run(t, `let got; try { throw "boom"; } catch (e) { got = e; } got;`)
	require.True(t, result.IsString())
	assert.Equal(t, "boom", result.AsString().Go())
}

func TestNullDereferenceRaisesTypeError(t *testing.T) {
	err, _ := runErr(t, "null.x;")
	thrown, ok := err.(*Thrown)
	require.True(t, ok, "expected a thrown language value, got %v", err)
	o, ok := thrown.Value.AsObject().(*object.Object)
	require.True(t, ok)
	assert.Equal(t, "TypeError", o.Name)
}

func TestUncaughtThrowUnwindsCallStack(t *testing.T) {
	err, _ := runErr(t, `
		function inner() { null.x; }
		function outer() { inner(); }
		outer();
	`)
	thrown, ok := err.(*Thrown)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(thrown.Backtrace), 2)
	assert.Equal(t, "inner", thrown.Backtrace[0])
	assert.Equal(t, "outer", thrown.Backtrace[1])
}

func TestGeneratorYieldResume(t *testing.T) {
	result, _ := run(t, `
		function* g() { yield 1; yield 2; }
		const it = g();
		[it.next().value, it.next().value, it.next().done];
	`)
	vs := elems(t, result)
	require.Len(t, vs, 3)
	assert.Equal(t, float64(1), vs[0].AsNumber())
	assert.Equal(t, float64(2), vs[1].AsNumber())
	assert.True(t, vs[2].AsBool())
}

func TestGeneratorFirstResumeDiscardsValue(t *testing.T) {
	result, _ := run(t, `
		function* g() { const a = yield 1; yield a; }
		const it = g();
		[it.next(99).value, it.next(42).value];
	`)
	vs := elems(t, result)
	require.Len(t, vs, 2)
	assert.Equal(t, float64(1), vs[0].AsNumber())
	assert.Equal(t, float64(42), vs[1].AsNumber())
}

func TestGeneratorThrowDispatchesToHandler(t *testing.T) {
	result, _ := run(t, `
		function* g() {
			try { yield 1; } catch (e) { yield e; }
		}
		const it = g();
		it.next();
		it.throw("caught").value;
	`)
	require.True(t, result.IsString())
	assert.Equal(t, "caught", result.AsString().Go())
}

func TestForOfOverArray(t *testing.T) {
	result, _ := run(t, `
		let sum = 0;
		for (const v of [1, 2, 3, 4]) { sum = sum + v; }
		sum;
	`)
	assert.Equal(t, float64(10), result.AsNumber())
}

func TestForInVisitsOwnThenInheritedOnce(t *testing.T) {
	result, _ := run(t, `
		const o = { a: 1, b: 2 };
		let keys = "";
		for (const k in o) { keys = keys + k; }
		keys;
	`)
	assert.Equal(t, "ab", result.AsString().Go())
}

func TestStrictModeNonWritableAssignmentThrows(t *testing.T) {
	v := New(0)
	target := object.New(v.ObjectProto)
	_, err := target.DefineOwnProperty(value.NewPropertyKeyFromString("k"), object.PropertyDescriptor{
		Value: value.Num(1), HasValue: true,
		Writable: false, HasWritable: true,
		Configurable: false, HasConfigurable: true,
	})
	require.NoError(t, err)
	object.CreateDataProperty(v.Global, value.NewPropertyKeyFromString("o"), value.ObjectRef(target))

	_, err = v.RunScript(compileSrc(t, `"use strict"; o.k = 2;`))
	thrown, ok := err.(*Thrown)
	require.True(t, ok, "strict-mode write to a non-writable property must throw, got %v", err)
	o, _ := thrown.Value.AsObject().(*object.Object)
	assert.Equal(t, "TypeError", o.Name)

	result, err := v.RunScript(compileSrc(t, `o.k = 2; o.k;`))
	require.NoError(t, err, "sloppy-mode write must fail silently")
	assert.Equal(t, float64(1), result.AsNumber())
}

func TestInstructionBudgetExceeded(t *testing.T) {
	v := New(0)
	v.InstructionBudget = 1000
	_, err := v.RunScript(compileSrc(t, "while (true) {}"))
	assert.Equal(t, ErrBudgetExceeded, err)
}

func TestTypeofUndeclaredGlobal(t *testing.T) {
	result, _ := run(t, "typeof nope;")
	require.True(t, result.IsString())
	assert.Equal(t, "undefined", result.AsString().Go())
}

func TestTypeofOperator(t *testing.T) {
	result, _ := run(t, `[typeof 1, typeof "s", typeof true, typeof undefined, typeof null, typeof {}, typeof (function(){})];`)
	vs := elems(t, result)
	want := []string{"number", "string", "boolean", "undefined", "object", "object", "function"}
	require.Len(t, vs, len(want))
	for i, w := range want {
		assert.Equal(t, w, vs[i].AsString().Go(), "element %d", i)
	}
}

func TestAsyncAwaitResumesThroughMicrotasks(t *testing.T) {
	v := New(0)
	ctor := v.MakePromiseConstructor()
	object.CreateDataProperty(v.Global, value.NewPropertyKeyFromString("Promise"), value.ObjectRef(ctor))
	_, err := v.RunScript(compileSrc(t, `
		async function f() { return await Promise.resolve(7); }
		let r;
		f().then(v => r = v);
	`))
	require.NoError(t, err)
	v.DrainMicrotasks()

	r, err := v.Global.Get(value.NewPropertyKeyFromString("r"), value.ObjectRef(v.Global))
	require.NoError(t, err)
	require.True(t, r.IsNumber(), "await result not delivered: %#v", r)
	assert.Equal(t, float64(7), r.AsNumber())
}

func TestRejectedAwaitDispatchesToCatchClause(t *testing.T) {
	v := New(0)
	ctor := v.MakePromiseConstructor()
	object.CreateDataProperty(v.Global, value.NewPropertyKeyFromString("Promise"), value.ObjectRef(ctor))
	_, err := v.RunScript(compileSrc(t, `
		async function f() {
			try { await Promise.reject("nope"); return "unreachable"; }
			catch (e) { return e; }
		}
		let r;
		f().then(v => r = v);
	`))
	require.NoError(t, err)
	v.DrainMicrotasks()

	r, err := v.Global.Get(value.NewPropertyKeyFromString("r"), value.ObjectRef(v.Global))
	require.NoError(t, err)
	require.True(t, r.IsString())
	assert.Equal(t, "nope", r.AsString().Go())
}

func TestConstructBindsFreshInstance(t *testing.T) {
	result, _ := run(t, `
		function Point(x, y) { this.x = x; this.y = y; }
		const p = new Point(3, 4);
		p.x + p.y;
	`)
	assert.Equal(t, float64(7), result.AsNumber())
}

func TestToInt32Bits(t *testing.T) {
	cases := []struct {
		in   float64
		want int32
	}{
		{0, 0},
		{1, 1},
		{-1, -1},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{4294967296, 0},           // 2^32 wraps to 0
		{2147483648, -2147483648}, // 2^31 wraps negative
		{-2147483649, 2147483647},
		{3.7, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, toInt32Bits(tc.in), "toInt32Bits(%v)", tc.in)
	}
}

func TestStringToNumber(t *testing.T) {
	assert.Equal(t, float64(0), stringToNumber(""))
	assert.Equal(t, float64(0), stringToNumber("   "))
	assert.Equal(t, float64(42), stringToNumber(" 42 "))
	assert.Equal(t, float64(255), stringToNumber("0xff"))
	assert.Equal(t, float64(8), stringToNumber("0o10"))
	assert.Equal(t, float64(5), stringToNumber("0b101"))
	assert.True(t, math.IsInf(stringToNumber("Infinity"), 1))
	assert.True(t, math.IsNaN(stringToNumber("12abc")))
}

func TestAbstractEqualsCoercionLadder(t *testing.T) {
	v := New(0)
	check := func(a, b value.Value, want bool) {
		t.Helper()
		got, err := v.abstractEquals(a, b)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	check(value.Num(5), value.Str("5"), true)
	check(value.Str("5"), value.Num(5), true)
	check(value.Nul(), value.Undef(), true)
	check(value.Nul(), value.Num(0), false)
	check(value.Bool(true), value.Num(1), true)
	check(value.Num(math.NaN()), value.Num(math.NaN()), false)
}

func TestRelationalNaNIsFalse(t *testing.T) {
	result, _ := run(t, "[NaN < 1, NaN > 1, NaN <= NaN];")
	for i, v := range elems(t, result) {
		assert.False(t, v.AsBool(), "element %d", i)
	}
}

func TestCollectReclaimsUnreachableKeepsGlobalGraph(t *testing.T) {
	v := New(0)
	baseline := v.Heap.Len()
	_, err := v.RunScript(compileSrc(t, "keep = {a: 1}; { let temp = {b: 2}; } 0;"))
	require.NoError(t, err)
	require.Greater(t, v.Heap.Len(), baseline, "script allocations must be heap-tracked")

	v.Collect()

	// keep is reachable from the rooted global object; temp and the
	// script's scope environments are not.
	assert.Equal(t, baseline+1, v.Heap.Len())
	keepVal, err := v.Global.Get(value.NewPropertyKeyFromString("keep"), value.ObjectRef(v.Global))
	require.NoError(t, err)
	keepObj, ok := keepVal.AsObject().(*object.Object)
	require.True(t, ok)
	assert.NotNil(t, keepObj.Cell)
}

func TestScriptGlobalsPersistAcrossRuns(t *testing.T) {
	v := New(0)
	_, err := v.RunScript(compileSrc(t, "let counter = 40;"))
	require.NoError(t, err)
	result, err := v.RunScript(compileSrc(t, "counter + 2;"))
	require.NoError(t, err)
	assert.Equal(t, float64(42), result.AsNumber())
}
