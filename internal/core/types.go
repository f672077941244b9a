package core

import (
	"fmt"
	"strings"
)

// DataType is the closed set of column types a flat file field converts to.
type DataType int

const (
	TypeString DataType = iota
	TypeBoolean
	TypeInt64
	TypeDecimal
	TypeDateTime
	TypeTimeSpan
	TypeGuid
	TypeByteArray
)

// dataTypeNames is indexed by DataType.
var dataTypeNames = [...]string{
	TypeString:    "String",
	TypeBoolean:   "Boolean",
	TypeInt64:     "Int64",
	TypeDecimal:   "Decimal",
	TypeDateTime:  "DateTime",
	TypeTimeSpan:  "TimeSpan",
	TypeGuid:      "Guid",
	TypeByteArray: "ByteArray",
}

// Valid reports whether t is one of the supported data types.
func (t DataType) Valid() bool {
	return t >= TypeString && t <= TypeByteArray
}

func (t DataType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// ParseDataType converts a case-insensitive type name to a DataType.
// A few common aliases are accepted ("bool", "int", "bytes", "uuid", ...).
func ParseDataType(name string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "text":
		return TypeString, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "int64", "int", "integer":
		return TypeInt64, nil
	case "decimal", "numeric":
		return TypeDecimal, nil
	case "datetime", "date", "timestamp":
		return TypeDateTime, nil
	case "timespan", "duration":
		return TypeTimeSpan, nil
	case "guid", "uuid":
		return TypeGuid, nil
	case "bytearray", "bytes", "base64":
		return TypeByteArray, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}
}

// Format identifies the layout of a flat text file.
type Format int

const (
	// FormatUnset is the sentinel for "no format chosen"; pipelines reject it.
	FormatUnset Format = iota
	CommaDelimited
	SemicolonDelimited
	TabDelimited
	QuoteCommaDelimited
	FixedLength
)

func (f Format) String() string {
	switch f {
	case CommaDelimited:
		return "comma"
	case SemicolonDelimited:
		return "semicolon"
	case TabDelimited:
		return "tab"
	case QuoteCommaDelimited:
		return "quote-comma"
	case FixedLength:
		return "fixed"
	default:
		return "unset"
	}
}

// Valid reports whether f is a concrete file format.
func (f Format) Valid() bool {
	return f > FormatUnset && f <= FixedLength
}

// Delimiter returns the field separator for delimited formats.
// Fixed-length and unset formats have none.
func (f Format) Delimiter() (string, bool) {
	switch f {
	case CommaDelimited, QuoteCommaDelimited:
		return ",", true
	case SemicolonDelimited:
		return ";", true
	case TabDelimited:
		return "\t", true
	default:
		return "", false
	}
}

// ParseFormat converts a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "comma", "csv", "comma-delimited":
		return CommaDelimited, nil
	case "semicolon", "semicolon-delimited":
		return SemicolonDelimited, nil
	case "tab", "tsv", "tab-delimited":
		return TabDelimited, nil
	case "quote-comma", "quotecomma", "quote-comma-delimited":
		return QuoteCommaDelimited, nil
	case "fixed", "fixed-length", "fixedwidth", "fixed-width":
		return FixedLength, nil
	default:
		return FormatUnset, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}
