package values

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestToStorable(t *testing.T) {
	when := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", int(42), int64(42)},
		{"int8", int8(-7), int64(-7)},
		{"int32", int32(123456), int64(123456)},
		{"int64", int64(math.MaxInt64), int64(math.MaxInt64)},
		{"uint32", uint32(7), int64(7)},
		{"float32", float32(1.5), float64(1.5)},
		{"float64", 2.75, 2.75},
		{"bool true", true, int64(1)},
		{"bool false", false, int64(0)},
		{"string", "hello", "hello"},
		{"time", when, "2025-03-14T09:26:53Z"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToStorable(tc.in)
			if err != nil {
				t.Fatalf("ToStorable(%v) returned error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ToStorable(%v) = %v (%T), want %v (%T)", tc.in, got, got, tc.want, tc.want)
			}
		})
	}
}

func TestToStorableBytes(t *testing.T) {
	in := []byte{0x00, 0xff, 0x10}
	got, err := ToStorable(in)
	if err != nil {
		t.Fatalf("ToStorable(bytes) returned error: %v", err)
	}
	b, ok := got.([]byte)
	if !ok {
		t.Fatalf("ToStorable(bytes) = %T, want []byte", got)
	}
	if !bytes.Equal(b, in) {
		t.Errorf("ToStorable(bytes) = %v, want %v", b, in)
	}
}

func TestToStorableUint64Overflow(t *testing.T) {
	if _, err := ToStorable(uint64(math.MaxInt64) + 1); err == nil {
		t.Error("expected an error for a uint64 beyond the 64-bit integer range")
	}
	got, err := ToStorable(uint64(12))
	if err != nil {
		t.Fatalf("ToStorable(uint64(12)) returned error: %v", err)
	}
	if got != int64(12) {
		t.Errorf("ToStorable(uint64(12)) = %v, want 12", got)
	}
}

func TestToStorableFallbackStringifies(t *testing.T) {
	type odd struct{ A int }
	got, err := ToStorable(odd{A: 3})
	if err != nil {
		t.Fatalf("ToStorable(struct) returned error: %v", err)
	}
	if _, ok := got.(string); !ok {
		t.Errorf("ToStorable(struct) = %T, want a stringified fallback", got)
	}
}

func TestReadInteger(t *testing.T) {
	tests := []struct {
		name     string
		v        int64
		safeInts bool
		want     any
	}{
		{"small stays integer", 41, false, int64(41)},
		{"boundary stays integer", SafeIntegerBound, false, int64(SafeIntegerBound)},
		{"beyond boundary degrades", SafeIntegerBound + 1, false, float64(SafeIntegerBound + 1)},
		{"negative beyond boundary degrades", -SafeIntegerBound - 1, false, float64(-SafeIntegerBound - 1)},
		{"safe mode keeps large integers", SafeIntegerBound + 1, true, int64(SafeIntegerBound + 1)},
		{"safe mode keeps small integers", 41, true, int64(41)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ReadInteger(tc.v, tc.safeInts)
			if got != tc.want {
				t.Errorf("ReadInteger(%d, %v) = %v (%T), want %v (%T)",
					tc.v, tc.safeInts, got, got, tc.want, tc.want)
			}
		})
	}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		in   any
		want ColumnType
	}{
		{int64(1), TypeInt64},
		{1.5, TypeDouble},
		{"x", TypeText},
		{[]byte{1}, TypeBytes},
		{true, TypeBoolean},
		{time.Now(), TypeDateTime},
		{nil, TypeText},
	}
	for _, tc := range tests {
		if got := Infer(tc.in); got != tc.want {
			t.Errorf("Infer(%T) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFromDecl(t *testing.T) {
	tests := []struct {
		decl string
		want ColumnType
	}{
		{"BOOLEAN", TypeBoolean},
		{"bool", TypeBoolean},
		{"DATETIME", TypeDateTime},
		{"TIMESTAMP", TypeDateTime},
		{"DATE", TypeDateTime},
		{"BIGINT", TypeInt64},
		{"INTEGER", TypeInt32},
		{"int", TypeInt32},
		{"SMALLINT", TypeInt32},
		{"VARCHAR(32)", TypeText},
		{"TEXT", TypeText},
		{"CLOB", TypeText},
		{"BLOB", TypeBytes},
		{"REAL", TypeDouble},
		{"DOUBLE PRECISION", TypeDouble},
		{"FLOAT", TypeDouble},
		{"NUMERIC(10,2)", TypeDouble},
		{"", TypeInt64},
		{"WIDGET", TypeInt64},
	}
	for _, tc := range tests {
		if got := FromDecl(tc.decl, TypeInt64); got != tc.want {
			t.Errorf("FromDecl(%q) = %v, want %v", tc.decl, got, tc.want)
		}
	}
}

func TestCoerceArg(t *testing.T) {
	raw, err := CoerceArg(TypeBytes, "AAEC")
	if err != nil {
		t.Fatalf("CoerceArg(bytes) returned error: %v", err)
	}
	if !bytes.Equal(raw.([]byte), []byte{0, 1, 2}) {
		t.Errorf("CoerceArg(bytes) = %v, want [0 1 2]", raw)
	}

	if _, err := CoerceArg(TypeBytes, "not base64!!"); err == nil {
		t.Error("expected an error for invalid base64 bytes argument")
	}

	ts, err := CoerceArg(TypeDateTime, "2025-03-14T09:26:53Z")
	if err != nil {
		t.Fatalf("CoerceArg(datetime) returned error: %v", err)
	}
	if got := ts.(time.Time); !got.Equal(time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)) {
		t.Errorf("CoerceArg(datetime) = %v", got)
	}

	b, err := CoerceArg(TypeBoolean, float64(1))
	if err != nil {
		t.Fatalf("CoerceArg(boolean) returned error: %v", err)
	}
	if b != true {
		t.Errorf("CoerceArg(boolean, 1) = %v, want true", b)
	}

	n, err := CoerceArg(TypeInt64, "9007199254740995")
	if err != nil {
		t.Fatalf("CoerceArg(int64 string) returned error: %v", err)
	}
	if n != int64(9007199254740995) {
		t.Errorf("CoerceArg(int64 string) = %v", n)
	}

	if _, err := CoerceArg(TypeInt64, 1.5); err == nil {
		t.Error("expected an error for a fractional integer argument")
	}

	f, err := CoerceArg(TypeDouble, "2.5")
	if err != nil {
		t.Fatalf("CoerceArg(double string) returned error: %v", err)
	}
	if f != 2.5 {
		t.Errorf("CoerceArg(double string) = %v, want 2.5", f)
	}

	if v, err := CoerceArg(TypeText, "plain"); err != nil || v != "plain" {
		t.Errorf("CoerceArg(text) = %v, %v", v, err)
	}
}

func TestJSONValue(t *testing.T) {
	if got := JSONValue([]byte{0, 1, 2}); got != "AAEC" {
		t.Errorf("JSONValue(bytes) = %v, want AAEC", got)
	}
	when := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	if got := JSONValue(when); got != "2025-03-14T09:26:53Z" {
		t.Errorf("JSONValue(time) = %v", got)
	}
	if got := JSONValue(int64(5)); got != int64(5) {
		t.Errorf("JSONValue(int64) = %v", got)
	}
}

func TestReadValue(t *testing.T) {
	if got := ReadValue(TypeBoolean, int64(1)); got != true {
		t.Errorf("ReadValue(bool, 1) = %#v, want true", got)
	}
	if got := ReadValue(TypeBoolean, int64(0)); got != false {
		t.Errorf("ReadValue(bool, 0) = %#v, want false", got)
	}

	when := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := ReadValue(TypeDateTime, "2025-03-14T09:26:53Z")
	if ts, ok := got.(time.Time); !ok || !ts.Equal(when) {
		t.Errorf("ReadValue(datetime, text) = %#v", got)
	}
	got = ReadValue(TypeDateTime, when.UnixMilli())
	if ts, ok := got.(time.Time); !ok || !ts.Equal(when) {
		t.Errorf("ReadValue(datetime, millis) = %#v", got)
	}

	if got := ReadValue(TypeDateTime, "not a date"); got != "not a date" {
		t.Errorf("ReadValue(datetime, junk) = %#v, want pass-through", got)
	}
	if got := ReadValue(TypeInt64, int64(7)); got != int64(7) {
		t.Errorf("ReadValue(int64) = %#v, want pass-through", got)
	}
	if got := ReadValue(TypeBoolean, nil); got != nil {
		t.Errorf("ReadValue(bool, nil) = %#v, want nil", got)
	}
}

func TestNormalizeNumber(t *testing.T) {
	if got := NormalizeNumber(5); got != int64(5) {
		t.Errorf("NormalizeNumber(5) = %v (%T), want int64 5", got, got)
	}
	if got := NormalizeNumber(5.25); got != 5.25 {
		t.Errorf("NormalizeNumber(5.25) = %v, want 5.25", got)
	}
	huge := float64(SafeIntegerBound) * 4
	if got := NormalizeNumber(huge); got != huge {
		t.Errorf("NormalizeNumber(%v) = %v, want unchanged float", huge, got)
	}
}

func TestParseColumnType(t *testing.T) {
	for _, name := range []string{"Int32", "Int64", "Double", "Text", "Bytes", "Boolean", "DateTime"} {
		tag, ok := ParseColumnType(name)
		if !ok {
			t.Fatalf("ParseColumnType(%q) not recognized", name)
		}
		if tag.String() != name {
			t.Errorf("round-trip %q = %q", name, tag.String())
		}
	}
	if _, ok := ParseColumnType("Widget"); ok {
		t.Error("ParseColumnType accepted an unknown name")
	}
}
