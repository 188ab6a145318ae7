package browser

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NullText is the placeholder rendered for absent or null cells.
const NullText = "NULL"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindNull is an absent or JSON null value. It is the zero Kind.
	KindNull Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindNumber is a JSON number, kept as the server sent it.
	KindNumber
	// KindString is a string, possibly empty.
	KindString
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a single cell of a row. The zero Value is Null.
//
// Numbers keep their textual form so large integer ids survive a round trip
// without float rounding.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value from its JSON text, e.g. "42" or "3.5".
func Number(text string) Value { return Value{kind: KindNumber, s: text} }

// String returns a string value. String("") is not Null.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsNumber returns the number text and whether v holds one.
func (v Value) AsNumber() (json.Number, bool) { return json.Number(v.s), v.kind == KindNumber }

// Display returns the text shown in a grid cell. Null renders as NullText,
// the empty string renders as an empty cell.
func (v Value) Display() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber, KindString:
		return v.s
	default:
		return NullText
	}
}

// UnmarshalJSON decodes any JSON scalar. Objects and arrays are not
// interpreted; they are kept as their compact JSON text in a string value.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("browser: empty JSON value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*v = String(buf.String())
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n.String())
		return nil
	}
}

// MarshalJSON encodes v back to JSON, preserving null versus "".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return []byte(v.s), nil
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// RowRecord maps column names to cell values.
type RowRecord map[string]Value

// Get returns the value for column, or Null when the row has no such field.
func (r RowRecord) Get(column string) Value {
	return r[column]
}
