package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/parser"
	"github.com/oxhq/esengine/internal/token"
)

func compile(t *testing.T, src string) *bytecode.CodeBlock {
	t.Helper()
	in := token.NewInterner()
	prog, err := parser.ParseProgram(src, in, false)
	require.NoError(t, err, src)
	cb, err := New(in, false).Compile(prog)
	require.NoError(t, err, src)
	return cb
}

func opcodes(cb *bytecode.CodeBlock) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, len(cb.Code))
	for i, instr := range cb.Code {
		ops[i] = instr.Op
	}
	return ops
}

func containsOp(cb *bytecode.CodeBlock, op bytecode.Opcode) bool {
	for _, instr := range cb.Code {
		if instr.Op == op {
			return true
		}
	}
	return false
}

func TestCompileVarDecl(t *testing.T) {
	// Script-top declarations become global-object properties so they
	// persist across RunScript calls and are visible to GetGlobal.
	cb := compile(t, "let x = 1 + 2;")
	assert.True(t, containsOp(cb, bytecode.OpAdd))
	assert.True(t, containsOp(cb, bytecode.OpSetGlobal))
	assert.False(t, containsOp(cb, bytecode.OpDeclareBinding))
}

func TestCompileBlockScopedDecl(t *testing.T) {
	cb := compile(t, "{ let x = 1 + 2; x; }")
	assert.True(t, containsOp(cb, bytecode.OpDeclareBinding))
	assert.True(t, containsOp(cb, bytecode.OpInitBinding))
	assert.True(t, containsOp(cb, bytecode.OpGetBinding))
}

func TestCompileVarHoistAcrossBlock(t *testing.T) {
	cb := compile(t, "function f() { if (true) { var x = 1; } return x; }")
	require.Len(t, cb.Inner, 1)
	inner := cb.Inner[0]
	// x's OpDeclareBinding must happen once, at function-top scope,
	// before the if-block's own OpPushScope.
	declIdx, blockPushIdx, pushes := -1, -1, 0
	for i, instr := range inner.Code {
		if instr.Op == bytecode.OpDeclareBinding && declIdx == -1 {
			declIdx = i
		}
		if instr.Op == bytecode.OpPushScope {
			pushes++
			if pushes == 2 {
				blockPushIdx = i
			}
		}
	}
	require.NotEqual(t, -1, declIdx)
	require.NotEqual(t, -1, blockPushIdx)
	assert.Less(t, declIdx, blockPushIdx)
}

func TestCompileFunctionDeclEmitsInnerCodeBlock(t *testing.T) {
	cb := compile(t, "function add(a, b) { return a + b; } add(1, 2);")
	require.Len(t, cb.Inner, 1)
	inner := cb.Inner[0]
	assert.Equal(t, 2, inner.ParamCount)
	assert.True(t, containsOp(inner, bytecode.OpAdd))
	assert.True(t, containsOp(inner, bytecode.OpReturn))
}

func TestCompileRestParam(t *testing.T) {
	cb := compile(t, "function f(a, ...rest) { return rest; }")
	require.Len(t, cb.Inner, 1)
	assert.True(t, containsOp(cb.Inner[0], bytecode.OpRestArgs))
}

func TestCompileArrayDestructuring(t *testing.T) {
	cb := compile(t, "let [a, b, ...c] = [1, 2, 3, 4];")
	assert.True(t, containsOp(cb, bytecode.OpGetIterator))
	assert.True(t, containsOp(cb, bytecode.OpIteratorNext))
	assert.True(t, containsOp(cb, bytecode.OpArrayPush))
}

func TestCompileObjectDestructuringWithDefault(t *testing.T) {
	cb := compile(t, "let { a, b = 5 } = { a: 1 };")
	assert.True(t, containsOp(cb, bytecode.OpGetProp))
	assert.True(t, containsOp(cb, bytecode.OpStrictEq))
}

func TestCompileSpreadCallArgs(t *testing.T) {
	cb := compile(t, "function f(...a) {} let args = [1, 2]; f(...args, 3);")
	assert.True(t, containsOp(cb, bytecode.OpCallSpread))
}

func TestCompileLogicalShortCircuit(t *testing.T) {
	cb := compile(t, "let x = a() && b();")
	jumps := 0
	for _, op := range opcodes(cb) {
		if op == bytecode.OpJumpIfFalse {
			jumps++
		}
	}
	assert.GreaterOrEqual(t, jumps, 1)
}

func TestCompileNullishCoalescing(t *testing.T) {
	cb := compile(t, "let x = a ?? b;")
	assert.True(t, containsOp(cb, bytecode.OpJumpIfNullish))
}

func TestCompileForOfLoop(t *testing.T) {
	cb := compile(t, "for (const v of [1,2,3]) { v; }")
	assert.True(t, containsOp(cb, bytecode.OpGetIterator))
	assert.True(t, containsOp(cb, bytecode.OpIteratorDone))
}

func TestCompileForInLoop(t *testing.T) {
	cb := compile(t, "for (const k in obj) { k; }")
	assert.True(t, containsOp(cb, bytecode.OpGetForInIterator))
}

func TestCompileBreakContinueWithLabel(t *testing.T) {
	cb := compile(t, `
		outer: for (let i = 0; i < 3; i++) {
			for (let j = 0; j < 3; j++) {
				if (j === 1) continue outer;
				if (i === 2) break outer;
			}
		}
	`)
	assert.True(t, containsOp(cb, bytecode.OpJump))
}

func TestCompileTryCatchFinally(t *testing.T) {
	cb := compile(t, `
		try {
			throw 1;
		} catch (e) {
			e;
		} finally {
			2;
		}
	`)
	require.Len(t, cb.Handlers, 2)
	assert.True(t, containsOp(cb, bytecode.OpThrow))
}

func TestCompileSwitchIsEqualityChain(t *testing.T) {
	cb := compile(t, `
		switch (x) {
		case 1: a(); break;
		case 2: b(); break;
		default: c();
		}
	`)
	strictEqCount := 0
	for _, op := range opcodes(cb) {
		if op == bytecode.OpStrictEq {
			strictEqCount++
		}
	}
	assert.Equal(t, 2, strictEqCount)
}

func TestCompileClassWithMethodsAndFields(t *testing.T) {
	cb := compile(t, `
		class Point {
			x = 0;
			y = 0;
			constructor(x, y) {
				this.x = x;
				this.y = y;
			}
			sum() { return this.x + this.y; }
			static origin() { return new Point(0, 0); }
		}
		new Point(1, 2);
	`)
	assert.True(t, containsOp(cb, bytecode.OpNewFunction))
	assert.True(t, containsOp(cb, bytecode.OpConstruct))
}

func TestCompileDerivedClassSuperCall(t *testing.T) {
	cb := compile(t, `
		class Base {
			constructor(v) { this.v = v; }
			greet() { return this.v; }
		}
		class Derived extends Base {
			constructor(v) {
				super(v);
				this.extra = 1;
			}
			greet() { return super.greet() + "!"; }
		}
		new Derived(1);
	`)
	assert.True(t, containsOp(cb, bytecode.OpSetPrototype))
}

func TestCompileDefaultDerivedConstructorForwardsArgs(t *testing.T) {
	cb := compile(t, `
		class Base { constructor(a, b) { this.a = a; this.b = b; } }
		class Derived extends Base {}
		new Derived(1, 2);
	`)
	assert.True(t, containsOp(cb, bytecode.OpSetPrototype))
	require.Len(t, cb.Inner, 2)
	assert.True(t, containsOp(cb.Inner[1], bytecode.OpCallSpread))
}

func TestCompileUpdateExpressionPostfix(t *testing.T) {
	cb := compile(t, "let i = 0; i++;")
	assert.True(t, containsOp(cb, bytecode.OpInc))
}

func TestCompileCompoundAssignment(t *testing.T) {
	cb := compile(t, "{ let i = 1; i += 2; }")
	assert.True(t, containsOp(cb, bytecode.OpAdd))
	assert.True(t, containsOp(cb, bytecode.OpSetBinding))
}

func TestCompileTemplateLiteral(t *testing.T) {
	cb := compile(t, "let name = `hi`; let s = `hello ${name}!`;")
	assert.True(t, containsOp(cb, bytecode.OpAdd))
}
