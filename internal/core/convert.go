package core

// convert.go turns raw flat-file fields into typed Values.
//
// Parsing is locale-invariant and strict compared to a spreadsheet import:
//   - Booleans are "true" or "false" in any case
//   - Integers are base-10 and must fit in 64 bits
//   - Decimals are plain digits with an optional sign and point (no exponent,
//     no currency symbols, no thousands separators)
//   - Dates accept ISO 8601 and US month/day/year layouts
//   - Timespans accept [-][d.]hh:mm[:ss[.fffffffff]], a bare day count, or
//     Go duration syntax ("1h30m")
//   - Guids accept every textual form uuid.Parse understands
//   - Byte arrays are standard Base64
//
// Decimal rounding is half away from zero: 2.345 -> 2.35, -2.345 -> -2.35.

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// decimalRegex validates decimal text before it is scanned into pgtype.Numeric.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// timeSpanRegex matches [-][d.]hh:mm[:ss[.fraction]].
var timeSpanRegex = regexp.MustCompile(`^(-)?(?:(\d+)\.)?(\d{1,2}):(\d{1,2})(?::(\d{1,2})(?:\.(\d{1,9}))?)?$`)

// dayCountRegex matches a timespan given as a whole number of days.
var dayCountRegex = regexp.MustCompile(`^-?\d+$`)

// maxTimeSpanDays keeps day counts inside time.Duration's range.
const maxTimeSpanDays = int64(math.MaxInt64 / int64(24*time.Hour))

// dateTimeLayouts are tried in order; the first layout that parses wins.
// Layouts without a zone parse as UTC.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Convert converts one raw field to the type of col.
//
// String columns keep the raw text unchanged. Every other type is trimmed
// first; a blank field becomes an explicit null when col.AllowNull is set.
// A field that does not parse is a soft failure: one error entry naming the
// column and raw value is logged and ok is false. The returned value is the
// type's zero value whenever conversion does not succeed.
func Convert(raw string, col Column, line int, log *AuditLog) (Value, bool) {
	value := Zero(col.Type)

	if col.Type == TypeString {
		return StringValue(raw), true
	}

	data := strings.TrimSpace(raw)
	if data == "" && col.AllowNull {
		return NullValue(col.Type), true
	}

	parsed, err := ParseValue(data, col.Type, col.DecimalSize)
	if err != nil || data == "" {
		log.Error(CategoryConversion, line, col,
			fmt.Sprintf("Failed to convert '%s' to a %s.", data, col.Type))
		return value, false
	}
	return parsed, true
}

// ParseValue parses already-trimmed text as type t. Decimals are rounded to
// decimalSize fractional digits when decimalSize >= 0.
func ParseValue(s string, t DataType, decimalSize int) (Value, error) {
	invalid := func() error {
		return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidValue, s, t)
	}

	switch t {
	case TypeString:
		return StringValue(s), nil

	case TypeBoolean:
		switch {
		case strings.EqualFold(s, "true"):
			return BoolValue(true), nil
		case strings.EqualFold(s, "false"):
			return BoolValue(false), nil
		}
		return Value{}, invalid()

	case TypeInt64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, invalid()
		}
		return Int64Value(i), nil

	case TypeDecimal:
		n, ok := parseDecimal(s)
		if !ok {
			return Value{}, invalid()
		}
		return DecimalValue(roundDecimal(n, decimalSize)), nil

	case TypeDateTime:
		for _, layout := range dateTimeLayouts {
			if tm, err := time.Parse(layout, s); err == nil {
				return DateTimeValue(tm), nil
			}
		}
		return Value{}, invalid()

	case TypeTimeSpan:
		d, ok := parseTimeSpan(s)
		if !ok {
			return Value{}, invalid()
		}
		return TimeSpanValue(d), nil

	case TypeGuid:
		g, err := uuid.Parse(s)
		if err != nil {
			return Value{}, invalid()
		}
		return GuidValue(g), nil

	case TypeByteArray:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Value{}, invalid()
		}
		return BytesValue(b), nil

	default:
		return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedType, t)
	}
}

// ----------------------------------------------------------------------------
// Decimal helpers
// ----------------------------------------------------------------------------

func zeroDecimal() pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(0), Valid: true}
}

func parseDecimal(s string) (pgtype.Numeric, bool) {
	if !decimalRegex.MatchString(s) {
		return pgtype.Numeric{}, false
	}
	s = strings.TrimPrefix(s, "+")

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil || !n.Valid || n.Int == nil {
		return pgtype.Numeric{}, false
	}
	return n, true
}

// roundDecimal rounds n half away from zero to places fractional digits.
// Values that already have no more than places digits are returned as is,
// so rounding is idempotent.
func roundDecimal(n pgtype.Numeric, places int) pgtype.Numeric {
	if places < 0 || !n.Valid || n.Int == nil || int(-n.Exp) <= places {
		return n
	}

	div := pow10(int(-n.Exp) - places)
	q, r := new(big.Int).QuoRem(new(big.Int).Abs(n.Int), div, new(big.Int))
	if r.Lsh(r, 1).Cmp(div) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if n.Int.Sign() < 0 {
		q.Neg(q)
	}
	return pgtype.Numeric{Int: q, Exp: int32(-places), Valid: true}
}

// formatDecimal renders n in plain notation, keeping the fractional digits
// it was parsed or rounded with.
func formatDecimal(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return ""
	}
	if n.Int.Sign() == 0 && n.Exp >= 0 {
		return "0"
	}

	digits := new(big.Int).Abs(n.Int).String()
	var s string
	if n.Exp >= 0 {
		s = digits + strings.Repeat("0", int(n.Exp))
	} else {
		frac := int(-n.Exp)
		if len(digits) <= frac {
			digits = strings.Repeat("0", frac-len(digits)+1) + digits
		}
		s = digits[:len(digits)-frac] + "." + digits[len(digits)-frac:]
	}

	if n.Int.Sign() < 0 {
		s = "-" + s
	}
	return s
}

// compareDecimal compares a and b numerically.
func compareDecimal(a, b pgtype.Numeric) int {
	if a.Int == nil || b.Int == nil {
		switch {
		case a.Int == nil && b.Int == nil:
			return 0
		case a.Int == nil:
			return -1
		default:
			return 1
		}
	}

	ai, bi := new(big.Int).Set(a.Int), new(big.Int).Set(b.Int)
	switch {
	case a.Exp > b.Exp:
		ai.Mul(ai, pow10(int(a.Exp-b.Exp)))
	case b.Exp > a.Exp:
		bi.Mul(bi, pow10(int(b.Exp-a.Exp)))
	}
	return ai.Cmp(bi)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ----------------------------------------------------------------------------
// DateTime and TimeSpan helpers
// ----------------------------------------------------------------------------

// formatDateTime renders dates without a clock as yyyy-mm-dd, UTC or
// zone-less times as yyyy-mm-dd hh:mm:ss[.fraction], and anything with a
// non-zero offset as RFC 3339 so the offset survives a round trip.
func formatDateTime(t time.Time) string {
	if _, offset := t.Zone(); offset != 0 {
		return t.Format(time.RFC3339Nano)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}

func parseTimeSpan(s string) (time.Duration, bool) {
	if dayCountRegex.MatchString(s) {
		days, err := strconv.ParseInt(s, 10, 64)
		if err != nil || days >= maxTimeSpanDays || days <= -maxTimeSpanDays {
			return 0, false
		}
		return time.Duration(days) * 24 * time.Hour, true
	}

	if m := timeSpanRegex.FindStringSubmatch(s); m != nil {
		var days int64
		if m[2] != "" {
			var err error
			days, err = strconv.ParseInt(m[2], 10, 64)
			if err != nil || days >= maxTimeSpanDays {
				return 0, false
			}
		}
		hh, _ := strconv.Atoi(m[3])
		mm, _ := strconv.Atoi(m[4])
		ss := 0
		if m[5] != "" {
			ss, _ = strconv.Atoi(m[5])
		}
		if hh > 23 || mm > 59 || ss > 59 {
			return 0, false
		}

		var nanos int64
		if m[6] != "" {
			frac := m[6] + strings.Repeat("0", 9-len(m[6]))
			nanos, _ = strconv.ParseInt(frac, 10, 64)
		}

		d := time.Duration(days)*24*time.Hour +
			time.Duration(hh)*time.Hour +
			time.Duration(mm)*time.Minute +
			time.Duration(ss)*time.Second +
			time.Duration(nanos)
		if m[1] == "-" {
			d = -d
		}
		return d, true
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// formatTimeSpan renders d as [-][d.]hh:mm:ss[.fraction].
func formatTimeSpan(d time.Duration) string {
	neg := d < 0
	u := uint64(d)
	if neg {
		u = 0 - u
	}

	const (
		day  = uint64(24 * time.Hour)
		hour = uint64(time.Hour)
		min  = uint64(time.Minute)
		sec  = uint64(time.Second)
	)

	days := u / day
	u %= day
	hh := u / hour
	u %= hour
	mm := u / min
	u %= min
	ss := u / sec
	nanos := u % sec

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if days > 0 {
		fmt.Fprintf(&b, "%d.", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hh, mm, ss)
	if nanos > 0 {
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(fmt.Sprintf("%09d", nanos), "0"))
	}
	return b.String()
}
