package memengine

import (
	"bytes"
	"cmp"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/engine"
	"golang.org/x/text/collate"
	"strings"
	"time"
)

// Database type names of the supported column types
const (
	TypeBigInt    = "BIGINT"
	TypeDouble    = "DOUBLE"
	TypeVarchar   = "VARCHAR"
	TypeBoolean   = "BOOLEAN"
	TypeBlob      = "BLOB"
	TypeTimestamp = "TIMESTAMP"
)

// columnType maps a declared column type to its database type name
func columnType(declared string) (string, error) {
	switch strings.ToUpper(declared) {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		return TypeBigInt, nil
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return TypeDouble, nil
	case "TEXT", "VARCHAR", "CHAR", "STRING":
		return TypeVarchar, nil
	case "BOOL", "BOOLEAN":
		return TypeBoolean, nil
	case "BLOB", "BYTES", "BINARY", "VARBINARY":
		return TypeBlob, nil
	case "TIMESTAMP", "DATETIME":
		return TypeTimestamp, nil
	}
	return "", fmt.Errorf("%w: unknown column type %s", engine.ErrSyntax, declared)
}

// normalize converts an argument to the representation stored in tables
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

// coerce checks that v can be stored in a column of the given type
func coerce(v any, typ string) (any, error) {
	if v == nil {
		return nil, nil
	}
	ok := false
	switch typ {
	case TypeBigInt:
		_, ok = v.(int64)
	case TypeDouble:
		if n, isInt := v.(int64); isInt {
			return float64(n), nil
		}
		_, ok = v.(float64)
	case TypeVarchar:
		_, ok = v.(string)
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeBlob:
		if s, isString := v.(string); isString {
			return []byte(s), nil
		}
		_, ok = v.([]byte)
	case TypeTimestamp:
		_, ok = v.(time.Time)
	}
	if !ok {
		return nil, fmt.Errorf("%w: value %v (%T) does not fit a %s column", engine.ErrArgs, v, v, typ)
	}
	return v, nil
}

// compare orders two values, NULL sorts first. ok is false for values that cannot be compared.
func compare(a, b any, coll *collate.Collator) (c int, ok bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y), true
		case float64:
			return cmp.Compare(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmp.Compare(x, y), true
		case int64:
			return cmp.Compare(x, float64(y)), true
		}
	case string:
		if y, isString := b.(string); isString {
			if coll == nil {
				return strings.Compare(x, y), true
			}
			return coll.CompareString(x, y), true
		}
	case bool:
		if y, isBool := b.(bool); isBool {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case []byte:
		if y, isBytes := b.([]byte); isBytes {
			return bytes.Compare(x, y), true
		}
	case time.Time:
		if y, isTime := b.(time.Time); isTime {
			return x.Compare(y), true
		}
	}
	return 0, false
}

// matches evaluates a comparison, comparisons with NULL never match
func matches(v any, op string, operand any, coll *collate.Collator) bool {
	if v == nil || operand == nil {
		return false
	}
	c, ok := compare(v, operand, coll)
	if !ok {
		return false
	}
	switch op {
	case "=":
		return c == 0
	case "!=", "<>":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}
