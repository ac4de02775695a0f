package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a Value holds
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
	KindBool
)

// Value is a scalar attribute value: text, number, boolean or null
type Value struct {
	kind ValueKind
	text string
	num  float64
	b    bool
}

// Null returns the null value
func Null() Value { return Value{} }

// Text wraps a string
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a float64
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts a decoded scalar (from JSON, SQLite or DBF) into a Value.
// Unknown types are stringified so no attribute is lost.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case Value:
		return x
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Null()
	}
	return Text(string(b))
}

// Kind returns the variant of the value
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsText returns the string payload and whether the value is text
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsNumber returns the numeric payload and whether the value is a number
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload and whether the value is a boolean
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// String renders the value the way attribute comparison sees it
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return "null"
}

// Interface returns the value as a plain Go scalar (nil, string, float64, bool)
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	}
	return nil
}

// MarshalJSON encodes the value as its JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Attribute is a single key/value pair of a feature
type Attribute struct {
	Key   string
	Value Value
}

// Attributes is an ordered mapping of attribute names to values.
// The zero value is an empty mapping.
type Attributes struct {
	pairs []Attribute
	index map[string]int
}

// NewAttributes builds an ordered mapping. A repeated key keeps its first
// position and takes the last value.
func NewAttributes(pairs ...Attribute) Attributes {
	a := Attributes{
		pairs: make([]Attribute, 0, len(pairs)),
		index: make(map[string]int, len(pairs)),
	}
	for _, p := range pairs {
		if i, ok := a.index[p.Key]; ok {
			a.pairs[i].Value = p.Value
			continue
		}
		a.index[p.Key] = len(a.pairs)
		a.pairs = append(a.pairs, p)
	}
	return a
}

// Len returns the number of attributes
func (a Attributes) Len() int { return len(a.pairs) }

// Get returns the value for key
func (a Attributes) Get(key string) (Value, bool) {
	i, ok := a.index[key]
	if !ok {
		return Value{}, false
	}
	return a.pairs[i].Value, true
}

// Has reports whether key is present
func (a Attributes) Has(key string) bool {
	_, ok := a.index[key]
	return ok
}

// Keys returns the attribute names in order
func (a Attributes) Keys() []string {
	keys := make([]string, len(a.pairs))
	for i, p := range a.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the ordered key/value pairs
func (a Attributes) Pairs() []Attribute {
	out := make([]Attribute, len(a.pairs))
	copy(out, a.pairs)
	return out
}

// Map returns the attributes as a plain map, losing order
func (a Attributes) Map() map[string]any {
	m := make(map[string]any, len(a.pairs))
	for _, p := range a.pairs {
		m[p.Key] = p.Value.Interface()
	}
	return m
}

// Equal reports whether both mappings hold the same pairs in the same order
func (a Attributes) Equal(b Attributes) bool {
	if len(a.pairs) != len(b.pairs) {
		return false
	}
	for i := range a.pairs {
		if a.pairs[i].Key != b.pairs[i].Key || a.pairs[i].Value != b.pairs[i].Value {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the attributes as a JSON object, keeping key order
func (a Attributes) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range a.pairs {
		if i > 0 {
			sb.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		sb.Write(k)
		sb.WriteByte(':')
		sb.Write(v)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}
