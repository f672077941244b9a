package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Value is a typed cell: exactly one of the DataType payloads, or an
// explicit null. Null values still carry the type of their column.
//
// Values are immutable; the byte payload is copied on construction and on
// access.
type Value struct {
	typ  DataType
	null bool

	str   string
	b     bool
	i     int64
	dec   pgtype.Numeric
	t     time.Time
	d     time.Duration
	g     uuid.UUID
	bytes []byte
}

// StringValue returns a String value.
func StringValue(s string) Value { return Value{typ: TypeString, str: s} }

// BoolValue returns a Boolean value.
func BoolValue(b bool) Value { return Value{typ: TypeBoolean, b: b} }

// Int64Value returns an Int64 value.
func Int64Value(i int64) Value { return Value{typ: TypeInt64, i: i} }

// DecimalValue returns a Decimal value. An invalid numeric becomes null.
func DecimalValue(n pgtype.Numeric) Value {
	if !n.Valid || n.Int == nil {
		return NullValue(TypeDecimal)
	}
	return Value{typ: TypeDecimal, dec: n}
}

// DateTimeValue returns a DateTime value.
func DateTimeValue(t time.Time) Value { return Value{typ: TypeDateTime, t: t} }

// TimeSpanValue returns a TimeSpan value.
func TimeSpanValue(d time.Duration) Value { return Value{typ: TypeTimeSpan, d: d} }

// GuidValue returns a Guid value.
func GuidValue(g uuid.UUID) Value { return Value{typ: TypeGuid, g: g} }

// BytesValue returns a ByteArray value holding a copy of b.
func BytesValue(b []byte) Value {
	return Value{typ: TypeByteArray, bytes: append([]byte{}, b...)}
}

// NullValue returns the explicit null marker for a column of type t.
func NullValue(t DataType) Value { return Value{typ: t, null: true} }

// Zero returns the zero value of t: empty string, false, 0, the zero
// decimal, the zero time, a zero duration, the nil UUID or an empty slice.
func Zero(t DataType) Value {
	switch t {
	case TypeString:
		return StringValue("")
	case TypeBoolean:
		return BoolValue(false)
	case TypeInt64:
		return Int64Value(0)
	case TypeDecimal:
		return DecimalValue(zeroDecimal())
	case TypeDateTime:
		return DateTimeValue(time.Time{})
	case TypeTimeSpan:
		return TimeSpanValue(0)
	case TypeGuid:
		return GuidValue(uuid.Nil)
	case TypeByteArray:
		return BytesValue(nil)
	default:
		return NullValue(t)
	}
}

// Type returns the data type of v.
func (v Value) Type() DataType { return v.typ }

// IsNull reports whether v is the explicit null marker.
func (v Value) IsNull() bool { return v.null }

// Text returns the payload of a String value.
func (v Value) Text() string { return v.str }

// Bool returns the payload of a Boolean value.
func (v Value) Bool() bool { return v.b }

// Int64 returns the payload of an Int64 value.
func (v Value) Int64() int64 { return v.i }

// Decimal returns the payload of a Decimal value.
func (v Value) Decimal() pgtype.Numeric { return v.dec }

// Time returns the payload of a DateTime value.
func (v Value) Time() time.Time { return v.t }

// Duration returns the payload of a TimeSpan value.
func (v Value) Duration() time.Duration { return v.d }

// Guid returns the payload of a Guid value.
func (v Value) Guid() uuid.UUID { return v.g }

// Bytes returns a copy of the payload of a ByteArray value.
func (v Value) Bytes() []byte { return append([]byte{}, v.bytes...) }

// Equal reports whether v and o hold the same type and value.
// Decimals compare numerically, so 12.50 equals 12.5.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.null != o.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.typ {
	case TypeString:
		return v.str == o.str
	case TypeBoolean:
		return v.b == o.b
	case TypeInt64:
		return v.i == o.i
	case TypeDecimal:
		return compareDecimal(v.dec, o.dec) == 0
	case TypeDateTime:
		return v.t.Equal(o.t)
	case TypeTimeSpan:
		return v.d == o.d
	case TypeGuid:
		return v.g == o.g
	case TypeByteArray:
		return bytes.Equal(v.bytes, o.bytes)
	default:
		return false
	}
}

// String renders v as flat-file text. Null renders as the empty string and
// byte arrays as standard Base64.
func (v Value) String() string {
	if v.null {
		return ""
	}
	switch v.typ {
	case TypeString:
		return v.str
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeInt64:
		return strconv.FormatInt(v.i, 10)
	case TypeDecimal:
		return formatDecimal(v.dec)
	case TypeDateTime:
		return formatDateTime(v.t)
	case TypeTimeSpan:
		return formatTimeSpan(v.d)
	case TypeGuid:
		return v.g.String()
	case TypeByteArray:
		return base64.StdEncoding.EncodeToString(v.bytes)
	default:
		return fmt.Sprintf("%v", v.typ)
	}
}

// Any returns v as a plain Go value for encoders and database drivers:
// nil for null, text for decimals, timespans and guids, and the native
// payload otherwise.
func (v Value) Any() any {
	if v.null {
		return nil
	}
	switch v.typ {
	case TypeString:
		return v.str
	case TypeBoolean:
		return v.b
	case TypeInt64:
		return v.i
	case TypeDateTime:
		return v.t
	case TypeByteArray:
		return v.Bytes()
	default:
		return v.String()
	}
}
