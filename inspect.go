package esengine

import (
	"fmt"
	"io"
	"strings"

	"github.com/oxhq/esengine/internal/bytecode"
	"github.com/oxhq/esengine/internal/object"
	"github.com/oxhq/esengine/internal/value"
)

// Inspect renders a Value the way cmd/esrun's `run`/`run-module`
// subcommands display a completion value: a debugging aid, not
// spec.md §1's out-of-scope JSON serializer (no quoting/escaping
// round-trip guarantees are made here, unlike JSON.stringify).
func Inspect(v value.Value) string {
	return inspect(v, make(map[*object.Object]bool))
}

func inspect(v value.Value, seen map[*object.Object]bool) string {
	switch {
	case v.IsUndefined():
		return "undefined"
	case v.IsNull():
		return "null"
	case v.IsBoolean():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return value.ToNumberString(v.AsNumber())
	case v.IsBigInt():
		return v.AsBigInt().String() + "n"
	case v.IsString():
		return fmt.Sprintf("%q", v.AsString().Go())
	case v.IsSymbol():
		return "Symbol(" + v.AsSymbol().Description() + ")"
	case v.IsObject():
		o, ok := v.AsObject().(*object.Object)
		if !ok {
			return "[object]"
		}
		return inspectObject(o, seen)
	default:
		return "?"
	}
}

func inspectObject(o *object.Object, seen map[*object.Object]bool) string {
	if seen[o] {
		return "[Circular]"
	}
	seen[o] = true
	defer delete(seen, o)

	switch o.Kind() {
	case object.KindFunction, object.KindBoundFunction:
		if o.Name != "" {
			return fmt.Sprintf("[Function: %s]", o.Name)
		}
		return "[Function (anonymous)]"
	case object.KindError:
		msg, _ := o.Get(value.NewPropertyKeyFromString("message"), value.ObjectRef(o))
		return fmt.Sprintf("%s: %s", displayName(o), toDisplayString(msg))
	case object.KindArray:
		return inspectArray(o, seen)
	case object.KindPromise:
		return "Promise { <state> }"
	}

	var parts []string
	for _, key := range o.OwnPropertyKeys() {
		d, ok := o.GetOwnProperty(key)
		if !ok || !d.Enumerable {
			continue
		}
		val := d.Value
		if d.IsAccessor {
			parts = append(parts, fmt.Sprintf("%s: [accessor]", key.String()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", key.String(), inspect(val, seen)))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func displayName(o *object.Object) string {
	if o.Name != "" {
		return o.Name
	}
	return "Error"
}

func inspectArray(o *object.Object, seen map[*object.Object]bool) string {
	lengthKey := value.NewPropertyKeyFromString("length")
	d, ok := o.GetOwnProperty(lengthKey)
	if !ok {
		return "[]"
	}
	n := int(d.Value.AsNumber())
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		elem, _ := o.Get(value.NewPropertyKeyIndex(uint32(i)), value.ObjectRef(o))
		parts = append(parts, inspect(elem, seen))
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}

// Disassemble writes cb's instruction stream, one opcode per line,
// followed by each nested CodeBlock (function literals, class static
// blocks), to w — the human-readable view of spec.md §3's "immutable
// after compilation" CodeBlock.
func Disassemble(w io.Writer, cb *bytecode.CodeBlock) {
	disassemble(w, cb, "")
}

func disassemble(w io.Writer, cb *bytecode.CodeBlock, indent string) {
	fmt.Fprintf(w, "%s-- %s (params=%d regs=%d gen=%v async=%v) --\n", indent, blockLabel(cb), cb.ParamCount, cb.RegisterCount, cb.IsGenerator, cb.IsAsync)
	for pc, instr := range cb.Code {
		fmt.Fprintf(w, "%s%4d  %-18s A=%d B=%d C=%d D=%d\n", indent, pc, instr.Op, instr.A, instr.B, instr.C, instr.D)
	}
	for _, h := range cb.Handlers {
		fmt.Fprintf(w, "%shandler [%d,%d) -> pc=%d envDepth=%d finally=%v\n", indent, h.Start, h.End, h.HandlerPC, h.EnvDepth, h.IsFinally)
	}
	for _, inner := range cb.Inner {
		disassemble(w, inner, indent+"  ")
	}
}

func blockLabel(cb *bytecode.CodeBlock) string {
	if cb.Name == "" {
		return "<anonymous>"
	}
	return cb.Name
}
