package values

// Package values converts between the host value model (nil, integers, floats,
// strings, byte slices, times, bools) and the engine's storage classes, and
// provides the per-column type tags reported by the driver-adapter contract.

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SafeIntegerBound is the largest integer magnitude the original consumers'
// number model represents exactly (2^53).
const SafeIntegerBound = int64(1) << 53

// TimeFormat is the text encoding used when a time value is bound as a
// parameter or crosses a serialization boundary.
const TimeFormat = time.RFC3339Nano

// ColumnType tags a result column for consumers that need one type per column
// independent of per-row values.
type ColumnType int

const (
	TypeInt32 ColumnType = iota
	TypeInt64
	TypeDouble
	TypeText
	TypeBytes
	TypeBoolean
	TypeDateTime
)

var columnTypeNames = [...]string{
	TypeInt32:    "Int32",
	TypeInt64:    "Int64",
	TypeDouble:   "Double",
	TypeText:     "Text",
	TypeBytes:    "Bytes",
	TypeBoolean:  "Boolean",
	TypeDateTime: "DateTime",
}

func (t ColumnType) String() string {
	if int(t) < 0 || int(t) >= len(columnTypeNames) {
		return "Text"
	}
	return columnTypeNames[t]
}

// ParseColumnType maps a tag name back to its ColumnType. Unknown names report
// ok == false.
func ParseColumnType(name string) (ColumnType, bool) {
	for t, n := range columnTypeNames {
		if n == name {
			return ColumnType(t), true
		}
	}
	return TypeText, false
}

// ToStorable normalizes a host value to the set the engine binds directly:
// nil, int64, float64, string and []byte. Integer types bind as true 64-bit
// values and are never narrowed. Values outside the host model fall back to
// their string form.
func ToStorable(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows a 64-bit integer binding", val)
		}
		return int64(val), nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		return val, nil
	case []byte:
		return val, nil
	case time.Time:
		return val.UTC().Format(TimeFormat), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// ReadInteger applies the integer read policy: with safe-integers mode on the
// value stays a 64-bit integer; with it off, magnitudes beyond 2^53 degrade to
// a float the way the original consumers' number model would.
func ReadInteger(v int64, safeInts bool) any {
	if safeInts || (v <= SafeIntegerBound && v >= -SafeIntegerBound) {
		return v
	}
	return float64(v)
}

// Infer classifies a representative value into a column type tag.
func Infer(sample any) ColumnType {
	switch sample.(type) {
	case int64, int, int32:
		return TypeInt64
	case float64, float32:
		return TypeDouble
	case string:
		return TypeText
	case []byte:
		return TypeBytes
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeDateTime
	default:
		return TypeText
	}
}

// FromDecl refines a column type tag using the column's declared SQL type,
// falling back to the supplied tag when the declaration is absent or unknown.
func FromDecl(decl string, fallback ColumnType) ColumnType {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case d == "":
		return fallback
	case strings.Contains(d, "BOOL"):
		return TypeBoolean
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return TypeDateTime
	case strings.Contains(d, "BIGINT"):
		return TypeInt64
	case strings.Contains(d, "INT"):
		return TypeInt32
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return TypeText
	case strings.Contains(d, "BLOB"):
		return TypeBytes
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "DEC"), strings.Contains(d, "NUMERIC"):
		return TypeDouble
	default:
		return fallback
	}
}

// CoerceArg applies an explicit argument type tag to a parameter before it is
// bound. Tags arrive with driver-adapter queries and with bridge requests,
// where byte slices travel base64-encoded and times travel as text.
func CoerceArg(tag ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch tag {
	case TypeBytes:
		switch val := v.(type) {
		case []byte:
			return val, nil
		case string:
			raw, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return nil, fmt.Errorf("decoding base64 bytes argument: %w", err)
			}
			return raw, nil
		}
	case TypeDateTime:
		switch val := v.(type) {
		case time.Time:
			return val, nil
		case string:
			t, err := parseTime(val)
			if err != nil {
				return nil, err
			}
			return t, nil
		case float64:
			return time.UnixMilli(int64(val)).UTC(), nil
		case int64:
			return time.UnixMilli(val).UTC(), nil
		}
	case TypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case float64:
			return val != 0, nil
		case int64:
			return val != 0, nil
		case string:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("parsing boolean argument %q: %w", val, err)
			}
			return b, nil
		}
	case TypeInt32, TypeInt64:
		switch val := v.(type) {
		case float64:
			if val != math.Trunc(val) {
				return nil, fmt.Errorf("integer argument has a fractional part: %v", val)
			}
			return int64(val), nil
		case string:
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing integer argument %q: %w", val, err)
			}
			return n, nil
		}
	case TypeDouble:
		switch val := v.(type) {
		case string:
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing float argument %q: %w", val, err)
			}
			return f, nil
		}
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeFormat, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing time argument %q", s)
}

// ReadValue applies a column tag to a stored value on the way out of the
// engine: Boolean tags map 0/1 integers to bool, DateTime tags parse stored
// text and unix-milli integers into time.Time. Values that do not match the
// tag pass through unchanged.
func ReadValue(tag ColumnType, v any) any {
	if v == nil {
		return nil
	}
	switch tag {
	case TypeBoolean:
		switch val := v.(type) {
		case int64:
			return val != 0
		case float64:
			return val != 0
		}
	case TypeDateTime:
		switch val := v.(type) {
		case string:
			if t, err := parseTime(val); err == nil {
				return t
			}
		case int64:
			return time.UnixMilli(val).UTC()
		}
	}
	return v
}

// JSONValue converts a coerced row value into a JSON-safe representation:
// byte slices become base64 text and times become RFC3339Nano text, everything
// else passes through unchanged.
func JSONValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case time.Time:
		return val.Format(TimeFormat)
	default:
		return v
	}
}

// NormalizeNumber maps a JSON number onto the engine's integer storage class
// when it is whole and exactly representable, so numeric arguments arriving
// through a JSON boundary round-trip as integers rather than floats.
func NormalizeNumber(f float64) any {
	if f == math.Trunc(f) && f >= -float64(SafeIntegerBound) && f <= float64(SafeIntegerBound) {
		return int64(f)
	}
	return f
}
