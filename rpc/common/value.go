package common

import (
	"fmt"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Typed Values
// --------------------------------------------------------------------------

// ValueKind is the type tag of a Value
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindBytes
	KindTime
)

// String returns the string representation of a ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a single column value or statement argument on the wire.
// Bools and times are carried in Int (0/1 and unix nanoseconds in UTC).
type Value struct {
	Kind  ValueKind `json:"k,omitempty"`
	Int   int64     `json:"i,omitempty"`
	Float float64   `json:"f,omitempty"`
	Str   string    `json:"s,omitempty"`
	Bytes []byte    `json:"b,omitempty"`
}

// ValueOf converts a Go value into a Value.
// Supported are nil, all integer and float types, bool, string, []byte and time.Time.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case int:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int64:
		return Value{Kind: KindInt, Int: x}, nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint64:
		return uintValue(x)
	case float32:
		return Value{Kind: KindFloat, Float: float64(x)}, nil
	case float64:
		return Value{Kind: KindFloat, Float: x}, nil
	case bool:
		if x {
			return Value{Kind: KindBool, Int: 1}, nil
		}
		return Value{Kind: KindBool}, nil
	case string:
		return Value{Kind: KindString, Str: x}, nil
	case []byte:
		if x == nil {
			return Value{Kind: KindNull}, nil
		}
		return Value{Kind: KindBytes, Bytes: x}, nil
	case time.Time:
		return Value{Kind: KindTime, Int: x.UTC().UnixNano()}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustValueOf is like ValueOf but panics on unsupported types
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Any returns the Go representation of the value: nil, int64, float64, bool,
// string, []byte or time.Time
func (v Value) Any() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Int != 0
	case KindString:
		return v.Str
	case KindBytes:
		if v.Bytes == nil {
			return []byte{}
		}
		return v.Bytes
	case KindTime:
		return time.Unix(0, v.Int).UTC()
	default:
		return nil
	}
}

// String returns a printable form of the value
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBytes:
		return fmt.Sprintf("%x", v.Bytes)
	case KindTime:
		return v.Any().(time.Time).Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v.Any())
	}
}

// ValuesOf converts a list of Go values
func ValuesOf(vs []any) ([]Value, error) {
	out := make([]Value, len(vs))
	for i, v := range vs {
		val, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

// AnyOf converts a list of Values to Go values
func AnyOf(vs []Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Any()
	}
	return out
}

func uintValue(x uint64) (Value, error) {
	if x > math.MaxInt64 {
		return Value{}, fmt.Errorf("unsigned value %d overflows int64", x)
	}
	return Value{Kind: KindInt, Int: int64(x)}, nil
}
