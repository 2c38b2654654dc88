package firestore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ============================================================
// Typed value codec for the Firestore REST wire format
// ============================================================

// Value is one typed field value as Firestore represents it on the wire.
// Exactly one member is set. Integers travel as decimal strings.
type Value struct {
	NullValue      json.RawMessage `json:"nullValue,omitempty"`
	StringValue    *string         `json:"stringValue,omitempty"`
	IntegerValue   *string         `json:"integerValue,omitempty"`
	DoubleValue    *float64        `json:"doubleValue,omitempty"`
	BooleanValue   *bool           `json:"booleanValue,omitempty"`
	TimestampValue *string         `json:"timestampValue,omitempty"`
	MapValue       *MapValue       `json:"mapValue,omitempty"`
	ArrayValue     *ArrayValue     `json:"arrayValue,omitempty"`
}

// MapValue is a nested document value.
type MapValue struct {
	Fields map[string]Value `json:"fields,omitempty"`
}

// ArrayValue is an ordered list value.
type ArrayValue struct {
	Values []Value `json:"values,omitempty"`
}

// Document is a stored document: its full resource name plus typed fields.
type Document struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]Value `json:"fields,omitempty"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

// ID returns the last path segment of the document resource name.
func (d *Document) ID() string {
	if d == nil || d.Name == "" {
		return ""
	}
	for i := len(d.Name) - 1; i >= 0; i-- {
		if d.Name[i] == '/' {
			return d.Name[i+1:]
		}
	}
	return d.Name
}

// Data decodes the document fields into plain Go values.
func (d *Document) Data() map[string]any {
	if d == nil {
		return nil
	}
	return decodeFields(d.Fields)
}

// encodeValue converts a plain Go value into its wire representation.
func encodeValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Value{NullValue: json.RawMessage("null")}
	case string:
		return Value{StringValue: &x}
	case bool:
		return Value{BooleanValue: &x}
	case int:
		s := strconv.FormatInt(int64(x), 10)
		return Value{IntegerValue: &s}
	case int64:
		s := strconv.FormatInt(x, 10)
		return Value{IntegerValue: &s}
	case float64:
		return Value{DoubleValue: &x}
	case time.Time:
		s := x.UTC().Format(time.RFC3339Nano)
		return Value{TimestampValue: &s}
	case map[string]any:
		return Value{MapValue: &MapValue{Fields: encodeFields(x)}}
	case []any:
		values := make([]Value, 0, len(x))
		for _, item := range x {
			values = append(values, encodeValue(item))
		}
		return Value{ArrayValue: &ArrayValue{Values: values}}
	default:
		// Fall back to the string form for anything exotic.
		s := fmt.Sprintf("%v", x)
		return Value{StringValue: &s}
	}
}

// decodeValue converts a wire value back into a plain Go value.
func decodeValue(v Value) any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err != nil {
			return *v.IntegerValue
		}
		return n
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.BooleanValue != nil:
		return *v.BooleanValue
	case v.TimestampValue != nil:
		t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
		if err != nil {
			return *v.TimestampValue
		}
		return t
	case v.MapValue != nil:
		return decodeFields(v.MapValue.Fields)
	case v.ArrayValue != nil:
		items := make([]any, 0, len(v.ArrayValue.Values))
		for _, item := range v.ArrayValue.Values {
			items = append(items, decodeValue(item))
		}
		return items
	default:
		return nil
	}
}

func encodeFields(fields map[string]any) map[string]Value {
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v)
	}
	return out
}

func decodeFields(fields map[string]Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = decodeValue(v)
	}
	return out
}
