package metadata

import (
	"encoding/json"
	"fmt"
)

// wireValue is Value's on-the-wire shape: a kind tag plus the one
// payload field that applies to it. Tagging the kind explicitly (rather
// than relying on JSON's native number/string/bool/null types) is what
// lets Integer and Float round-trip distinctly instead of collapsing to
// whatever encoding/json's float64 default would pick.
type wireValue struct {
	Kind  string      `json:"kind"`
	Str   string      `json:"str,omitempty"`
	Int   int64       `json:"int,omitempty"`
	Float float64     `json:"float,omitempty"`
	Bool  bool        `json:"bool,omitempty"`
	Array []wireValue `json:"array,omitempty"`
}

func (v Value) toWire() wireValue {
	switch v.kind {
	case KindNull:
		return wireValue{Kind: "null"}
	case KindString:
		return wireValue{Kind: "string", Str: v.str}
	case KindInteger:
		return wireValue{Kind: "integer", Int: v.i64}
	case KindFloat:
		return wireValue{Kind: "float", Float: v.f64}
	case KindBoolean:
		return wireValue{Kind: "boolean", Bool: v.b}
	case KindArray:
		elems := make([]wireValue, len(v.array))
		for i, e := range v.array {
			elems[i] = e.toWire()
		}
		return wireValue{Kind: "array", Array: elems}
	default:
		return wireValue{Kind: "null"}
	}
}

func (w wireValue) toValue() (Value, error) {
	switch w.Kind {
	case "null":
		return Null(), nil
	case "string":
		return String(w.Str), nil
	case "integer":
		return Integer(w.Int), nil
	case "float":
		return Float(w.Float), nil
	case "boolean":
		return Boolean(w.Bool), nil
	case "array":
		elems := make([]Value, len(w.Array))
		for i, e := range w.Array {
			v, err := e.toValue()
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Array(elems...), nil
	default:
		return Value{}, fmt.Errorf("metadata: unknown value kind %q", w.Kind)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toWire())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := w.toValue()
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
