// Package value defines ember's runtime Value representation and its
// heap-allocated Object variants (spec.md §3, §4.3).
//
// Value is a tagged union rather than a NaN-boxed word: spec.md treats the
// two encodings as behaviorally interchangeable and calls NaN-boxing an
// optional optimization (§9 Design Notes), so we take the portable,
// idiomatic-Go rendition. Heap objects are real Go pointers carrying an
// embedded Object header (Mark bit + intrusive Next link); see object.go.
// The VM's garbage collector walks that intrusive list itself rather than
// relying on Go's own collector to decide liveness, so every invariant in
// spec.md §3 is independently enforced and testable (see DESIGN.md).
package value

import (
	"fmt"
	"math"
)

// Kind tags which variant a Value currently holds.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Obj is implemented by every heap-allocated object variant. It exposes
// the embedded Object header the GC needs (mark bit, intrusive next
// link, kind tag) without requiring unsafe pointer reinterpretation: each
// variant simply returns the address of its own embedded header.
type Obj interface {
	Header() *Object
}

// Value is ember's uniform runtime datum.
type Value struct {
	Kind Kind
	Num  float64 // valid when Kind == KindBool (0/1) or KindNumber
	Obj  Obj     // valid when Kind == KindObject
}

// Nil is the singleton nil value.
var Nil = Value{Kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, Num: 1}
	}
	return Value{Kind: KindBool, Num: 0}
}

// Number constructs a numeric Value.
func Number(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// FromObject constructs a Value wrapping a heap object.
func FromObject(o Obj) Value {
	return Value{Kind: KindObject, Obj: o}
}

// IsNil, IsBool, IsNumber, IsObject report the Value's tag.
func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObject() bool { return v.Kind == KindObject }

// AsBool returns the boolean payload; only meaningful when IsBool.
func (v Value) AsBool() bool { return v.Num != 0 }

// AsNumber returns the numeric payload; only meaningful when IsNumber.
func (v Value) AsNumber() float64 { return v.Num }

// IsFalsey implements spec.md §4.3 falsiness: nil and false are falsey,
// everything else is truthy.
func (v Value) IsFalsey() bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// Equal implements spec.md §4.3's type-strict equality: no coercion
// between kinds; strings compare by pointer identity thanks to interning;
// other objects compare by pointer; nil equals nil; numbers compare by
// IEEE-754 ==, so NaN != NaN.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.AsBool() == b.AsBool()
	case KindNumber:
		return a.Num == b.Num
	case KindObject:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// String renders a Value for `print` and diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObject:
		return describeObject(v.Obj)
	default:
		return "<invalid>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
