package core

import "strings"

// Column describes one field of a flat file: its name, target type, width
// and the constraints its converted values must satisfy.
//
// Size is advisory for String columns in delimited files (it becomes the
// table's max length) and authoritative for every column in fixed-length
// files. DecimalSize >= 0 rounds Decimal values to that many fractional
// digits on load and on save; a negative DecimalSize leaves them as parsed.
//
// Build columns with NewColumn: the zero value has DecimalSize 0, which
// rounds decimals to whole numbers.
type Column struct {
	Name        string
	Type        DataType
	Size        int
	DecimalSize int

	// AllowNull turns a blank field into an explicit null instead of a
	// conversion failure.
	AllowNull bool

	// AllowedValues restricts converted values. Empty means unconstrained.
	AllowedValues []Value

	empty bool
}

// NewColumn returns a column definition. Pass decimalSize -1 for no rounding.
func NewColumn(name string, dataType DataType, size, decimalSize int) Column {
	return Column{
		Name:        name,
		Type:        dataType,
		Size:        size,
		DecimalSize: decimalSize,
	}
}

// EmptyColumn returns the sentinel used by audit entries that are not about
// a specific column.
func EmptyColumn() Column {
	return Column{DecimalSize: -1, empty: true}
}

// IsEmpty reports whether c is the EmptyColumn sentinel.
func (c Column) IsEmpty() bool {
	return c.empty
}

// Nullable returns a copy of c that accepts blank fields as null.
func (c Column) Nullable() Column {
	c.AllowNull = true
	return c
}

// Allow returns a copy of c restricted to the given values.
func (c Column) Allow(values ...Value) Column {
	c.AllowedValues = append([]Value(nil), values...)
	return c
}

// allows reports whether v is in the allowed set. An empty set allows all.
func (c Column) allows(v Value) bool {
	if len(c.AllowedValues) == 0 {
		return true
	}
	for _, av := range c.AllowedValues {
		if av.Equal(v) {
			return true
		}
	}
	return false
}

// allowedList renders the allowed set for error messages.
func (c Column) allowedList() string {
	parts := make([]string, len(c.AllowedValues))
	for i, v := range c.AllowedValues {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}
