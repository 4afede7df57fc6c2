package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is a single cell: null, a string, or a number.
// The zero Value is null.
//
// Numbers decoded from JSON keep their literal text, which String and
// MarshalJSON reproduce exactly; num may be a rounded copy.
type Value struct {
	kind Kind
	str  string
	num  float64
	lit  string
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Str builds a string Value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Num builds a number Value.
func Num(n float64) Value { return Value{kind: KindNumber, num: n} }

// NumLiteral builds a number Value from a JSON number literal, keeping the
// text as written.
func NumLiteral(lit string) (Value, error) {
	var n json.Number
	if err := json.Unmarshal([]byte(lit), &n); err != nil {
		return Value{}, fmt.Errorf("invalid number %s: %w", truncate(lit, 40), err)
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %s: %w", truncate(lit, 40), err)
	}
	return Value{kind: KindNumber, num: f, lit: n.String()}, nil
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the string payload and whether v is a string.
func (v Value) Text() (string, bool) { return v.str, v.kind == KindString }

// Number returns the numeric payload and whether v is a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// String stringifies v for pattern tests and exports.
// Null becomes the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.lit != "" {
			return v.lit
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same variant and payload.
// Two numbers that both carry literal text compare by that text.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		if v.lit != "" && o.lit != "" {
			return v.lit == o.lit
		}
		return v.num == o.num
	default:
		return true
	}
}

// MarshalJSON encodes v as null, a JSON string or a JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if v.lit != "" {
			return []byte(v.lit), nil
		}
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, strings, numbers and booleans.
// Booleans are kept as their string form; objects and arrays are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Str(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Str(strconv.FormatBool(b))
	case '{', '[':
		return fmt.Errorf("unsupported cell value %s", truncate(string(data), 40))
	default:
		n, err := NumLiteral(string(data))
		if err != nil {
			return err
		}
		*v = n
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
