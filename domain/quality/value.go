package quality

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType defines the storage type of a cell
type ValueType string

const (
	ValueTypeNull    ValueType = "null"
	ValueTypeInteger ValueType = "integer"
	ValueTypeFloat   ValueType = "float"
	ValueTypeString  ValueType = "string"
)

// Value is a single typed cell. The zero Value is null.
type Value struct {
	typ ValueType
	i   int64
	f   float64
	s   string
}

// NewNullValue returns a missing cell
func NewNullValue() Value {
	return Value{typ: ValueTypeNull}
}

// NewIntValue returns an integer cell
func NewIntValue(v int64) Value {
	return Value{typ: ValueTypeInteger, i: v}
}

// NewFloatValue returns a float cell. NaN is stored as null.
func NewFloatValue(v float64) Value {
	if math.IsNaN(v) {
		return NewNullValue()
	}
	return Value{typ: ValueTypeFloat, f: v}
}

// NewStringValue returns a string cell
func NewStringValue(v string) Value {
	return Value{typ: ValueTypeString, s: v}
}

// Type reports the storage type; the zero Value reports null
func (v Value) Type() ValueType {
	if v.typ == "" {
		return ValueTypeNull
	}
	return v.typ
}

// IsNull reports whether the cell is missing
func (v Value) IsNull() bool {
	return v.Type() == ValueTypeNull
}

// IsNumeric reports whether the cell holds an integer or a float
func (v Value) IsNumeric() bool {
	return v.typ == ValueTypeInteger || v.typ == ValueTypeFloat
}

// Float64 returns the numeric content of the cell
func (v Value) Float64() (float64, bool) {
	switch v.typ {
	case ValueTypeInteger:
		return float64(v.i), true
	case ValueTypeFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Int64 returns the integer content of the cell
func (v Value) Int64() (int64, bool) {
	if v.typ == ValueTypeInteger {
		return v.i, true
	}
	return 0, false
}

// Native returns the cell as a plain Go value (nil, int64, float64 or string)
func (v Value) Native() any {
	switch v.typ {
	case ValueTypeInteger:
		return v.i
	case ValueTypeFloat:
		return v.f
	case ValueTypeString:
		return v.s
	default:
		return nil
	}
}

// Key returns a canonical encoding used for row identity.
// Integers and floats holding the same number share a key; nulls share one key.
func (v Value) Key() string {
	switch v.typ {
	case ValueTypeInteger:
		return "n:" + strconv.FormatInt(v.i, 10)
	case ValueTypeFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(v.f), 10)
		}
		return "n:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueTypeString:
		return "s:" + strconv.Quote(v.s)
	default:
		return "null"
	}
}

// String renders the cell for messages
func (v Value) String() string {
	switch v.typ {
	case ValueTypeInteger:
		return strconv.FormatInt(v.i, 10)
	case ValueTypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueTypeString:
		return v.s
	default:
		return "null"
	}
}

// MarshalJSON encodes the cell as its native JSON value
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes null, numbers and strings. Whole numbers become integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = NewNullValue()
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = NewIntValue(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", t, err)
		}
		*v = NewFloatValue(f)
	case string:
		*v = NewStringValue(t)
	default:
		return fmt.Errorf("unsupported cell value %T", raw)
	}
	return nil
}
