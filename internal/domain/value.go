package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the variants a Value can hold.
type ValueKind uint8

const (
	// ValueNumber holds a float64 score.
	ValueNumber ValueKind = iota + 1

	// ValueBool holds a boolean verdict such as a gate pass flag.
	ValueBool

	// ValueText holds an enumerated string value declared by a derived rule.
	ValueText
)

// String returns the kind name used in logs and scale metadata.
func (k ValueKind) String() string {
	switch k {
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is the tagged scalar carried by an EvaluationResult.
// The zero Value is invalid; use the constructors.
type Value struct {
	kind ValueKind
	num  float64
	flag bool
	text string
}

// NumberValue wraps a numeric score.
func NumberValue(f float64) Value { return Value{kind: ValueNumber, num: f} }

// BoolValue wraps a boolean verdict.
func BoolValue(b bool) Value { return Value{kind: ValueBool, flag: b} }

// TextValue wraps an enumerated string.
func TextValue(s string) Value { return Value{kind: ValueText, text: s} }

// ValueFromAny converts a decoded scalar (YAML or JSON) into a Value.
func ValueFromAny(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case int64:
		return NumberValue(float64(x)), nil
	case uint64:
		return NumberValue(float64(x)), nil
	case float64:
		return NumberValue(x), nil
	case float32:
		return NumberValue(float64(x)), nil
	case string:
		return TextValue(x), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrInvalidScheme, v)
	}
}

// Kind reports the variant held.
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether v was built by a constructor.
func (v Value) IsValid() bool { return v.kind != 0 }

// Number returns the score when v is numeric. Booleans are not numbers here;
// averaging and summing only consider true scores.
func (v Value) Number() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	return v.num, true
}

// Bool returns the flag when v is boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != ValueBool {
		return false, false
	}
	return v.flag, true
}

// Text returns the string when v is textual.
func (v Value) Text() (string, bool) {
	if v.kind != ValueText {
		return "", false
	}
	return v.text, true
}

// Comparable returns a float usable by rule conditions.
// Booleans compare as 1 (true) and 0 (false) so that "== 1" can test a gate.
func (v Value) Comparable() (float64, bool) {
	switch v.kind {
	case ValueNumber:
		return v.num, true
	case ValueBool:
		if v.flag {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String formats the value for reasoning text.
func (v Value) String() string {
	switch v.kind {
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.flag)
	case ValueText:
		return v.text
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.flag)
	case ValueText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a bare JSON scalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = Value{}
		return nil
	}
	parsed, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
