package core

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// TableColumn is one registered column of a Table.
type TableColumn struct {
	Name     string   `json:"name"`
	Type     DataType `json:"-"`
	TypeName string   `json:"type"`
	Nullable bool     `json:"nullable"`
	// MaxLength limits String values, in runes. Zero means unlimited.
	MaxLength int `json:"maxLength,omitempty"`
}

// Row holds one value per table column, in column order.
type Row []Value

// Table is the in-memory store of typed rows produced by Load and read by Save.
// A Table is owned by one run and is not safe for concurrent mutation.
type Table struct {
	name    string
	columns []TableColumn
	index   map[string]int
	rows    []Row
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{name: name, index: make(map[string]int)}
}

// TableNameFromFile derives a table name from a file name by dropping every
// character that is not an ASCII letter or digit.
func TableNameFromFile(file string) string {
	return nonAlphanumeric.ReplaceAllString(file, "")
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// AddColumn registers a column. Columns cannot be added once rows exist.
func (t *Table) AddColumn(name string, dataType DataType, nullable bool, maxLength int) error {
	if !dataType.Valid() {
		return fmt.Errorf("column %q: %w: %v", name, ErrUnsupportedType, dataType)
	}
	if name == "" {
		return fmt.Errorf("column name is empty: %w", ErrInvalidValue)
	}
	if _, dup := t.index[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	if len(t.rows) > 0 {
		return fmt.Errorf("column %q: table already has rows", name)
	}

	t.index[name] = len(t.columns)
	t.columns = append(t.columns, TableColumn{
		Name:      name,
		Type:      dataType,
		TypeName:  dataType.String(),
		Nullable:  nullable,
		MaxLength: max(maxLength, 0),
	})
	return nil
}

// AppendRow stores one row given as values by column name. Every column needs
// exactly one value of its type; nulls need a nullable column and strings
// must fit MaxLength.
func (t *Table) AppendRow(values map[string]Value) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: %d values for %d columns", ErrColumnCount, len(values), len(t.columns))
	}

	row := make(Row, len(t.columns))
	for i, col := range t.columns {
		v, ok := values[col.Name]
		if !ok {
			return fmt.Errorf("%w: no value for column %q", ErrColumnCount, col.Name)
		}
		if v.Type() != col.Type {
			return fmt.Errorf("column %q: %w: got %s, want %s", col.Name, ErrTypeMismatch, v.Type(), col.Type)
		}
		if v.IsNull() && !col.Nullable {
			return fmt.Errorf("column %q: %w", col.Name, ErrNullNotAllowed)
		}
		if col.Type == TypeString && col.MaxLength > 0 && !v.IsNull() {
			if n := utf8.RuneCountInString(v.Text()); n > col.MaxLength {
				return fmt.Errorf("column %q: %w: %d > %d", col.Name, ErrTooLong, n, col.MaxLength)
			}
		}
		row[i] = v
	}

	t.rows = append(t.rows, row)
	return nil
}

// Columns returns a copy of the registered columns.
func (t *Table) Columns() []TableColumn {
	return append([]TableColumn(nil), t.columns...)
}

// ColumnNames returns the column names in registration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Rows returns the stored rows in insertion order. Callers must not modify them.
func (t *Table) Rows() []Row { return t.rows }

// Len returns the number of stored rows.
func (t *Table) Len() int { return len(t.rows) }

// Value returns the value of the named column in row i.
func (t *Table) Value(i int, name string) (Value, bool) {
	c, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.rows) {
		return Value{}, false
	}
	return t.rows[i][c], true
}
