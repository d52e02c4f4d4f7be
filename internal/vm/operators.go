// Numeric/string coercion and the binary/relational/equality operators
// spec.md §4.4 describes: ToPrimitive-driven `+`, ToNumber-driven
// arithmetic, abstract (`==`) vs strict (`===`) equality, and relational
// comparison. Grounded on spec.md §4.4's coercion-rule paragraph
// directly; there is no teacher analog for ECMAScript's numeric tower.
package vm

import (
	"math"
	"math/big"
	"strconv"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/value"
)

// toPrimitive implements ECMAScript's ToPrimitive: objects try valueOf
// before toString for hint "number" (and the default hint), toString
// before valueOf for hint "string". Primitives pass through unchanged.
func (vm *VM) toPrimitive(v value.Value, hint string) (value.Value, error) {
	if !v.IsObject() {
		return v, nil
	}
	o, ok := asObject(v)
	if !ok {
		return v, nil
	}
	methods := []string{"valueOf", "toString"}
	if hint == "string" {
		methods = []string{"toString", "valueOf"}
	}
	for _, name := range methods {
		fnVal, err := o.Get(value.NewPropertyKeyFromString(name), v)
		if err != nil {
			return value.Undef(), err
		}
		fn, ok := asObject(fnVal)
		if !ok || !fn.IsCallable() {
			continue
		}
		res, err := fn.Call(v, nil)
		if err != nil {
			return value.Undef(), err
		}
		if !res.IsObject() {
			return res, nil
		}
	}
	return value.Undef(), throwTypeError(vm, "cannot convert object to primitive value")
}

// toNumber implements ECMAScript's ToNumber abstract operation.
func (vm *VM) toNumber(v value.Value) (float64, error) {
	switch v.Type() {
	case value.Undefined:
		return math.NaN(), nil
	case value.Null:
		return 0, nil
	case value.Boolean:
		if v.AsBool() {
			return 1, nil
		}
		return 0, nil
	case value.Number:
		return v.AsNumber(), nil
	case value.String:
		return stringToNumber(v.AsString().Go()), nil
	case value.BigInt:
		return 0, throwTypeError(vm, "cannot convert a BigInt to a number")
	case value.Object:
		prim, err := vm.toPrimitive(v, "number")
		if err != nil {
			return 0, err
		}
		if prim.IsObject() {
			return math.NaN(), nil
		}
		return vm.toNumber(prim)
	}
	return math.NaN(), nil
}

func stringToNumber(s string) float64 {
	s = trimJSWhitespace(s)
	if s == "" {
		return 0
	}
	if s == "Infinity" || s == "+Infinity" {
		return math.Inf(1)
	}
	if s == "-Infinity" {
		return math.Inf(-1)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if f, ok := parseHexOctalBinary(s); ok {
		return f
	}
	return math.NaN()
}

// parseHexOctalBinary handles the "0x"/"0o"/"0b" radix prefixes
// strconv.ParseFloat doesn't accept for Number() string coercion.
func parseHexOctalBinary(s string) (float64, bool) {
	if len(s) < 3 || s[0] != '0' {
		return 0, false
	}
	var base int
	switch s[1] {
	case 'x', 'X':
		base = 16
	case 'o', 'O':
		base = 8
	case 'b', 'B':
		base = 2
	default:
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], base, 64)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

func trimJSWhitespace(s string) string {
	start, end := 0, len(s)
	isWS := func(c byte) bool {
		return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
	}
	for start < end && isWS(s[start]) {
		start++
	}
	for end > start && isWS(s[end-1]) {
		end--
	}
	return s[start:end]
}

// toInt32 implements ECMAScript's ToInt32.
func (vm *VM) toInt32(v value.Value) (int32, error) {
	n, err := vm.toNumber(v)
	if err != nil {
		return 0, err
	}
	return toInt32Bits(n), nil
}

func (vm *VM) toUint32(v value.Value) (uint32, error) {
	n, err := vm.toNumber(v)
	if err != nil {
		return 0, err
	}
	return uint32(toInt32Bits(n)), nil
}

func toInt32Bits(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0
	}
	f = math.Trunc(f)
	const twoTo32 = 4294967296.0
	m := math.Mod(f, twoTo32)
	if m < 0 {
		m += twoTo32
	}
	if m >= 2147483648.0 {
		m -= twoTo32
	}
	return int32(m)
}

// binaryOp dispatches arithmetic and bitwise binary operators. `+` is
// the one operator needing ToPrimitive first (string concatenation if
// either resulting primitive is a string, per spec.md §4.4).
func (vm *VM) binaryOp(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	switch op {
	case bytecode.OpAdd:
		return vm.add(a, b)
	case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr:
		return vm.bitwiseOp(op, a, b)
	case bytecode.OpUShr:
		l, err := vm.toUint32(a)
		if err != nil {
			return value.Undef(), err
		}
		r, err := vm.toUint32(b)
		if err != nil {
			return value.Undef(), err
		}
		return value.Num(float64(l >> (r & 31))), nil
	}

	if a.IsBigInt() || b.IsBigInt() {
		return vm.bigintArith(op, a, b)
	}
	l, err := vm.toNumber(a)
	if err != nil {
		return value.Undef(), err
	}
	r, err := vm.toNumber(b)
	if err != nil {
		return value.Undef(), err
	}
	switch op {
	case bytecode.OpSub:
		return value.Num(l - r), nil
	case bytecode.OpMul:
		return value.Num(l * r), nil
	case bytecode.OpDiv:
		return value.Num(l / r), nil
	case bytecode.OpMod:
		return value.Num(math.Mod(l, r)), nil
	case bytecode.OpPow:
		return value.Num(math.Pow(l, r)), nil
	}
	return value.Undef(), throwTypeError(vm, "unsupported binary operator")
}

func (vm *VM) add(a, b value.Value) (value.Value, error) {
	pa, err := vm.toPrimitive(a, "default")
	if err != nil {
		return value.Undef(), err
	}
	pb, err := vm.toPrimitive(b, "default")
	if err != nil {
		return value.Undef(), err
	}
	if pa.IsString() || pb.IsString() {
		sa, err := vm.toStringValue(pa)
		if err != nil {
			return value.Undef(), err
		}
		sb, err := vm.toStringValue(pb)
		if err != nil {
			return value.Undef(), err
		}
		return value.StrVal(sa.Concat(sb)), nil
	}
	if pa.IsBigInt() || pb.IsBigInt() {
		if !pa.IsBigInt() || !pb.IsBigInt() {
			return value.Undef(), throwTypeError(vm, "cannot mix BigInt and other types")
		}
		return value.BigIntVal(new(big.Int).Add(pa.AsBigInt(), pb.AsBigInt())), nil
	}
	na, err := vm.toNumber(pa)
	if err != nil {
		return value.Undef(), err
	}
	nb, err := vm.toNumber(pb)
	if err != nil {
		return value.Undef(), err
	}
	return value.Num(na + nb), nil
}

func (vm *VM) toStringValue(v value.Value) (*value.JSString, error) {
	switch v.Type() {
	case value.String:
		return v.AsString(), nil
	case value.Number:
		return value.NewString(value.ToNumberString(v.AsNumber())), nil
	case value.Boolean:
		if v.AsBool() {
			return value.NewString("true"), nil
		}
		return value.NewString("false"), nil
	case value.Undefined:
		return value.NewString("undefined"), nil
	case value.Null:
		return value.NewString("null"), nil
	case value.BigInt:
		return value.NewString(v.AsBigInt().String()), nil
	case value.Object:
		prim, err := vm.toPrimitive(v, "string")
		if err != nil {
			return nil, err
		}
		return vm.toStringValue(prim)
	}
	return value.NewString(""), nil
}

func (vm *VM) bigintArith(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	if !a.IsBigInt() || !b.IsBigInt() {
		return value.Undef(), throwTypeError(vm, "cannot mix BigInt and other types, use explicit conversions")
	}
	x, y := a.AsBigInt(), b.AsBigInt()
	r := new(big.Int)
	switch op {
	case bytecode.OpSub:
		r.Sub(x, y)
	case bytecode.OpMul:
		r.Mul(x, y)
	case bytecode.OpDiv:
		if y.Sign() == 0 {
			return value.Undef(), throwRangeError(vm, "division by zero")
		}
		r.Quo(x, y)
	case bytecode.OpMod:
		if y.Sign() == 0 {
			return value.Undef(), throwRangeError(vm, "division by zero")
		}
		r.Rem(x, y)
	case bytecode.OpPow:
		r.Exp(x, y, nil)
	default:
		return value.Undef(), throwTypeError(vm, "unsupported BigInt operator")
	}
	return value.BigIntVal(r), nil
}

func (vm *VM) bitwiseOp(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	l, err := vm.toInt32(a)
	if err != nil {
		return value.Undef(), err
	}
	r, err := vm.toInt32(b)
	if err != nil {
		return value.Undef(), err
	}
	switch op {
	case bytecode.OpBitAnd:
		return value.Num(float64(l & r)), nil
	case bytecode.OpBitOr:
		return value.Num(float64(l | r)), nil
	case bytecode.OpBitXor:
		return value.Num(float64(l ^ r)), nil
	case bytecode.OpShl:
		return value.Num(float64(l << (uint32(r) & 31))), nil
	case bytecode.OpShr:
		return value.Num(float64(l >> (uint32(r) & 31))), nil
	}
	return value.Undef(), throwTypeError(vm, "unsupported bitwise operator")
}

// relational implements `<`, `<=`, `>`, `>=` including the "undefined
// if either side is NaN" rule.
func (vm *VM) relational(op bytecode.Opcode, a, b value.Value) (value.Value, error) {
	pa, err := vm.toPrimitive(a, "number")
	if err != nil {
		return value.Undef(), err
	}
	pb, err := vm.toPrimitive(b, "number")
	if err != nil {
		return value.Undef(), err
	}
	if pa.IsString() && pb.IsString() {
		sa, sb := pa.AsString().Go(), pb.AsString().Go()
		switch op {
		case bytecode.OpLt:
			return value.Bool(sa < sb), nil
		case bytecode.OpLe:
			return value.Bool(sa <= sb), nil
		case bytecode.OpGt:
			return value.Bool(sa > sb), nil
		case bytecode.OpGe:
			return value.Bool(sa >= sb), nil
		}
	}
	na, err := vm.toNumber(pa)
	if err != nil {
		return value.Undef(), err
	}
	nb, err := vm.toNumber(pb)
	if err != nil {
		return value.Undef(), err
	}
	if math.IsNaN(na) || math.IsNaN(nb) {
		return value.Bool(false), nil
	}
	switch op {
	case bytecode.OpLt:
		return value.Bool(na < nb), nil
	case bytecode.OpLe:
		return value.Bool(na <= nb), nil
	case bytecode.OpGt:
		return value.Bool(na > nb), nil
	case bytecode.OpGe:
		return value.Bool(na >= nb), nil
	}
	return value.Bool(false), nil
}

// abstractEquals implements `==`'s coercion ladder.
func (vm *VM) abstractEquals(a, b value.Value) (bool, error) {
	if a.Type() == b.Type() {
		return value.StrictEquals(a, b), nil
	}
	if a.IsNullish() && b.IsNullish() {
		return true, nil
	}
	if a.IsNullish() || b.IsNullish() {
		return false, nil
	}
	if a.IsNumber() && b.IsString() {
		return a.AsNumber() == stringToNumber(b.AsString().Go()), nil
	}
	if a.IsString() && b.IsNumber() {
		return stringToNumber(a.AsString().Go()) == b.AsNumber(), nil
	}
	if a.IsBoolean() {
		n, err := vm.toNumber(a)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(value.Num(n), b)
	}
	if b.IsBoolean() {
		n, err := vm.toNumber(b)
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(a, value.Num(n))
	}
	if (a.IsNumber() || a.IsString() || a.IsBigInt()) && b.IsObject() {
		pb, err := vm.toPrimitive(b, "default")
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(a, pb)
	}
	if a.IsObject() && (b.IsNumber() || b.IsString() || b.IsBigInt()) {
		pa, err := vm.toPrimitive(a, "default")
		if err != nil {
			return false, err
		}
		return vm.abstractEquals(pa, b)
	}
	if a.IsBigInt() && b.IsNumber() {
		return bigIntEqualsNumber(a.AsBigInt(), b.AsNumber()), nil
	}
	if a.IsNumber() && b.IsBigInt() {
		return bigIntEqualsNumber(b.AsBigInt(), a.AsNumber()), nil
	}
	return false, nil
}

func bigIntEqualsNumber(b *big.Int, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return false
	}
	bf := new(big.Float).SetInt(b)
	return bf.Cmp(big.NewFloat(f)) == 0
}

// typeOf implements the `typeof` operator.
func (vm *VM) typeOf(v value.Value) string {
	switch v.Type() {
	case value.Undefined:
		return "undefined"
	case value.Null:
		return "object"
	case value.Boolean:
		return "boolean"
	case value.Number:
		return "number"
	case value.BigInt:
		return "bigint"
	case value.String:
		return "string"
	case value.SymbolType:
		return "symbol"
	case value.Object:
		if o, ok := asObject(v); ok && o.IsCallable() {
			return "function"
		}
		return "object"
	}
	return "undefined"
}
