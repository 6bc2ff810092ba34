// Package metadata implements the typed key-value metadata attached to
// documents and the filter predicates evaluated against it during search.
package metadata

import "fmt"

// Kind tags the concrete type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindArray
)

// Value is a tagged union over the metadata value kinds a document can
// carry: String, Integer (64-bit), Float (64-bit), Boolean, Null, and
// Array of any of the above except Array itself.
type Value struct {
	kind  Kind
	str   string
	i64   int64
	f64   float64
	b     bool
	array []Value
}

func Null() Value               { return Value{kind: KindNull} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Integer(i int64) Value     { return Value{kind: KindInteger, i64: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f64: f} }
func Boolean(b bool) Value      { return Value{kind: KindBoolean, b: b} }
func Array(vals ...Value) Value { return Value{kind: KindArray, array: vals} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload and whether v is a String.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInteger returns the int64 payload and whether v is an Integer.
func (v Value) AsInteger() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i64, true
}

// AsFloat returns the float64 payload and whether v is a Float.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f64, true
}

// AsBoolean returns the bool payload and whether v is a Boolean.
func (v Value) AsBoolean() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

// AsArray returns the element slice and whether v is an Array.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.array, true
}

// numeric reports (value, ok) for Integer and Float, used by numeric
// comparisons that coerce across the two kinds.
func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i64), true
	case KindFloat:
		return v.f64, true
	default:
		return 0, false
	}
}

// Equal reports whether two Values compare equal under the coercion
// rules of spec §4.8: numeric kinds compare by numeric value across
// Integer/Float, Boolean and String compare only within their own kind,
// Null equals only Null, and Arrays compare element-wise in order.
func (v Value) Equal(other Value) bool {
	if vn, ok := v.numeric(); ok {
		if on, ok := other.numeric(); ok {
			return vn == on
		}
		return false
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindBoolean:
		return v.b == other.b
	case KindArray:
		if len(v.array) != len(other.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(other.array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two Values for Lt/Le/Gt/Ge. ok is false when the kinds
// are not ordered against each other (e.g. String vs Integer, or either
// side is Null or Array).
func (v Value) Compare(other Value) (cmp int, ok bool) {
	if vn, okv := v.numeric(); okv {
		if on, oko := other.numeric(); oko {
			switch {
			case vn < on:
				return -1, true
			case vn > on:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if v.kind == KindString && other.kind == KindString {
		switch {
		case v.str < other.str:
			return -1, true
		case v.str > other.str:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindInteger:
		return fmt.Sprintf("%d", v.i64)
	case KindFloat:
		return fmt.Sprintf("%g", v.f64)
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindArray:
		return fmt.Sprintf("%v", v.array)
	default:
		return "<invalid>"
	}
}

// Map is the metadata attached to a Document: a string-keyed bag of
// typed Values.
type Map map[string]Value
