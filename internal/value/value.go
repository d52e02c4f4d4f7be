// Package value implements the tagged scalar representation described
// in spec.md §3: undefined, null, boolean, number, bigint, string,
// symbol, and object. Object payloads are carried as an opaque `any` so
// this package never imports internal/object — internal/object imports
// this package for its PropertyKey and Value types instead, the same
// layering internal/core/contracts.go uses to keep its data types free
// of any import back onto the packages that consume them.
package value

import (
	"math"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"unicode/utf16"
)

// Type tags the active variant of a Value.
type Type uint8

const (
	Undefined Type = iota
	Null
	Boolean
	Number
	BigInt
	String
	SymbolType
	Object
)

func (t Type) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case Null:
		return "object" // typeof null === "object"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case BigInt:
		return "bigint"
	case String:
		return "string"
	case SymbolType:
		return "symbol"
	case Object:
		return "object"
	}
	return "unknown"
}

// JSString is an immutable UTF-16 string payload. The tracing collector
// (internal/gc) is what actually reclaims unreachable strings; this
// wrapper exists only to hold the UTF-16 code units and a memoized
// UTF-8 form, not to refcount — a second counting scheme on top of a
// tracing GC would just double-book what the collector already does.
type JSString struct {
	units []uint16
	utf8  string
	once  sync.Once
}

// NewString interns nothing by itself (internal/token.Interner owns
// identifier/literal dedup); this just converts host text to the
// engine's UTF-16 representation.
func NewString(s string) *JSString {
	return &JSString{units: utf16.Encode([]rune(s))}
}

func stringFromUnits(units []uint16) *JSString {
	return &JSString{units: units}
}

// Len reports the UTF-16 code unit count, matching JavaScript's
// `"...".length`.
func (s *JSString) Len() int { return len(s.units) }

func (s *JSString) Units() []uint16 { return s.units }

// Go returns the Go (UTF-8) form, decoding (and memoizing) lazily.
func (s *JSString) Go() string {
	s.once.Do(func() {
		s.utf8 = string(utf16.Decode(s.units))
	})
	return s.utf8
}

func (s *JSString) Concat(other *JSString) *JSString {
	units := make([]uint16, 0, len(s.units)+len(other.units))
	units = append(units, s.units...)
	units = append(units, other.units...)
	return stringFromUnits(units)
}

func (s *JSString) Equal(other *JSString) bool {
	if len(s.units) != len(other.units) {
		return false
	}
	for i, u := range s.units {
		if other.units[i] != u {
			return false
		}
	}
	return true
}

// Symbol is a unique identity with an optional description. Equality is
// always by pointer identity, never by description.
type Symbol struct {
	Description string
	HasDesc     bool
}

func NewSymbol(desc string, hasDesc bool) *Symbol {
	return &Symbol{Description: desc, HasDesc: hasDesc}
}

// Value is the tagged union spec.md §3 requires. It is passed by value
// the way the teacher's internal/core/types.go favors
// small value-typed structs for data flowing through a pipeline, rather
// than boxing into an interface.
type Value struct {
	typ    Type
	num    float64
	str    *JSString
	big    *big.Int
	sym    *Symbol
	object any // internal/object.Object's *Object, opaque here
}

var (
	undefinedValue = Value{typ: Undefined}
	nullValue      = Value{typ: Null}
	trueValue      = Value{typ: Boolean, num: 1}
	falseValue     = Value{typ: Boolean, num: 0}
)

func Undef() Value { return undefinedValue }
func Nul() Value   { return nullValue }
func Bool(b bool) Value {
	if b {
		return trueValue
	}
	return falseValue
}
func Num(f float64) Value        { return Value{typ: Number, num: f} }
func Str(s string) Value         { return Value{typ: String, str: NewString(s)} }
func StrVal(s *JSString) Value   { return Value{typ: String, str: s} }
func BigIntVal(b *big.Int) Value { return Value{typ: BigInt, big: b} }
func SymVal(s *Symbol) Value     { return Value{typ: SymbolType, sym: s} }

// ObjectRef wraps an opaque heap object reference (an
// *internal/object.Object in practice) as a Value. internal/object is
// the only expected caller.
func ObjectRef(ref any) Value { return Value{typ: Object, object: ref} }

func (v Value) Type() Type        { return v.typ }
func (v Value) IsUndefined() bool { return v.typ == Undefined }
func (v Value) IsNull() bool      { return v.typ == Null }
func (v Value) IsNullish() bool   { return v.typ == Undefined || v.typ == Null }
func (v Value) IsBoolean() bool   { return v.typ == Boolean }
func (v Value) IsNumber() bool    { return v.typ == Number }
func (v Value) IsBigInt() bool    { return v.typ == BigInt }
func (v Value) IsString() bool    { return v.typ == String }
func (v Value) IsSymbol() bool    { return v.typ == SymbolType }
func (v Value) IsObject() bool    { return v.typ == Object }

func (v Value) AsBool() bool        { return v.num != 0 }
func (v Value) AsNumber() float64   { return v.num }
func (v Value) AsBigInt() *big.Int  { return v.big }
func (v Value) AsString() *JSString { return v.str }
func (v Value) AsSymbol() *Symbol   { return v.sym }
func (v Value) AsObject() any       { return v.object }

// ToBoolean implements ECMAScript's ToBoolean abstract operation.
func (v Value) ToBoolean() bool {
	switch v.typ {
	case Undefined, Null:
		return false
	case Boolean:
		return v.num != 0
	case Number:
		return v.num != 0 && !math.IsNaN(v.num)
	case BigInt:
		return v.big.Sign() != 0
	case String:
		return v.str.Len() > 0
	default:
		return true
	}
}

// SameValue implements the SameValue algorithm: NaN equals NaN; +0 and
// -0 are distinct (spec.md §8 invariant list).
func SameValue(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Undefined, Null:
		return true
	case Boolean:
		return a.num == b.num
	case Number:
		if math.IsNaN(a.num) && math.IsNaN(b.num) {
			return true
		}
		if a.num == 0 && b.num == 0 {
			return math.Signbit(a.num) == math.Signbit(b.num)
		}
		return a.num == b.num
	case BigInt:
		return a.big.Cmp(b.big) == 0
	case String:
		return a.str.Equal(b.str)
	case SymbolType:
		return a.sym == b.sym
	case Object:
		return a.object == b.object
	}
	return false
}

// SameValueZero is SameValue except +0 and -0 compare equal (used by
// Array.prototype.includes, Map/Set key comparison).
func SameValueZero(a, b Value) bool {
	if a.typ == Number && b.typ == Number {
		if math.IsNaN(a.num) && math.IsNaN(b.num) {
			return true
		}
		return a.num == b.num
	}
	return SameValue(a, b)
}

// StrictEquals implements `===`.
func StrictEquals(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Undefined, Null:
		return true
	case Boolean:
		return a.num == b.num
	case Number:
		return a.num == b.num // NaN !== NaN falls out of float64 comparison
	case BigInt:
		return a.big.Cmp(b.big) == 0
	case String:
		return a.str.Equal(b.str)
	case SymbolType:
		return a.sym == b.sym
	case Object:
		return a.object == b.object
	}
	return false
}

// ToNumberString renders a numeric Value per ECMAScript Number::toString
// (a close approximation: shortest round-tripping decimal via strconv).
func ToNumberString(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "0" // ToString never distinguishes -0 from 0
		}
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// CanonicalNumericIndexString reports whether s is the canonical decimal
// rendering of a number (spec.md §3's property-key fast path) and, if so,
// returns that number.
func CanonicalNumericIndexString(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if ToNumberString(f) != s {
		return 0, false
	}
	return f, true
}

// ToArrayIndex reports whether s is a canonical, in-range ("2^32 - 2")
// unsigned 32-bit array index string, per spec.md §3's "a string that
// parses as a canonical 32-bit unsigned integer must be stored as an
// integer key".
func ToArrayIndex(s string) (uint32, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n >= math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// SortStrings sorts ss in place. Nothing in the engine calls it;
// internal/object's OwnPropertyKeys keeps string keys in insertion
// order and does not sort them.
func SortStrings(ss []string) {
	sort.Strings(ss)
}
