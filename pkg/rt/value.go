// Package rt is the managed runtime: class model, loader/linker, heap,
// frame/stack arena, bytecode interpreter and native-method registry. These
// concerns are consolidated into one package because they are mutually
// recursive (a class references its loader to resolve supertypes, the
// interpreter allocates through the heap, the heap allocates objects whose
// class needs the loader, and the native registry is consulted from inside
// the dispatch loop) — the same shape the teacher collapses into its own
// single vm package rather than splitting along these lines.
package rt

import "math"

// Kind tags the 64-bit cells that make up the operand stack, local variable
// slots and the stack arena. Wide values (long/double) occupy exactly one
// cell, matching the single-slot convention called out for the operand
// stack width.
type Kind int

const (
	KindInt Kind = iota
	KindLong
	KindFloat
	KindDouble
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Value is one 64-bit cell. Numeric kinds store their bit pattern in Bits;
// KindRef stores the live Go value in Ref (nil means the Java null).
type Value struct {
	Kind Kind
	Bits int64
	Ref  any
}

func IntVal(v int32) Value    { return Value{Kind: KindInt, Bits: int64(v)} }
func LongVal(v int64) Value   { return Value{Kind: KindLong, Bits: v} }
func FloatVal(v float32) Value {
	return Value{Kind: KindFloat, Bits: int64(math.Float32bits(v))}
}
func DoubleVal(v float64) Value {
	return Value{Kind: KindDouble, Bits: int64(math.Float64bits(v))}
}
func RefVal(v any) Value { return Value{Kind: KindRef, Ref: v} }
func NullVal() Value     { return Value{Kind: KindRef, Ref: nil} }
func BoolVal(b bool) Value {
	if b {
		return IntVal(1)
	}
	return IntVal(0)
}

func (v Value) Int() int32      { return int32(v.Bits) }
func (v Value) Long() int64     { return v.Bits }
func (v Value) Float() float32  { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) Double() float64 { return math.Float64frombits(uint64(v.Bits)) }
func (v Value) IsNull() bool    { return v.Kind == KindRef && v.Ref == nil }

// ZeroOf returns the default value for the given kind: numeric zero, or
// null for references. Used to zero-fill freshly allocated payload slots.
func ZeroOf(k Kind) Value {
	switch k {
	case KindInt:
		return IntVal(0)
	case KindLong:
		return LongVal(0)
	case KindFloat:
		return FloatVal(0)
	case KindDouble:
		return DoubleVal(0)
	default:
		return NullVal()
	}
}
