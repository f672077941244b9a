package core

import (
	"strings"
	"unicode/utf8"
)

// RenderCell renders v as output text for col. Null renders empty and
// decimals are rounded to col.DecimalSize first.
func RenderCell(v Value, col Column) string {
	if v.IsNull() {
		return ""
	}
	if v.Type() == TypeDecimal && col.DecimalSize >= 0 {
		return formatDecimal(roundDecimal(v.Decimal(), col.DecimalSize))
	}
	return v.String()
}

// FormatLine joins rendered cells into one output line.
//
// Delimited formats join with the delimiter. Quote-comma wraps the whole
// comma-joined line in a single pair of quotes, which Tokenize reads back as
// one field. Fixed-length pads each cell with spaces or truncates it to its
// width, in runes, so the line is always the sum of widths long.
func FormatLine(cells []string, format Format, widths []int) string {
	switch format {
	case FixedLength:
		var b strings.Builder
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			b.WriteString(fitWidth(cell, w))
		}
		return b.String()
	case QuoteCommaDelimited:
		return `"` + strings.Join(cells, ",") + `"`
	default:
		sep, _ := format.Delimiter()
		return strings.Join(cells, sep)
	}
}

func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := utf8.RuneCountInString(s)
	switch {
	case n == width:
		return s
	case n > width:
		return string([]rune(s)[:width])
	default:
		return s + strings.Repeat(" ", width-n)
	}
}

// outputColumn maps one output field to its table column and, when there is
// one, the column definition that governs rendering and checks.
type outputColumn struct {
	name      string
	index     int
	def       Column
	hasDef    bool
	tableType DataType
}

// rowFormatter renders table rows for one Save run.
type rowFormatter struct {
	format  Format
	trim    bool
	columns []outputColumn
	widths  []int
}

// newRowFormatter plans the output columns, logging a save error and
// returning nil when the table and definitions cannot produce the output.
//
// With SchemaColumnsOnly, output is exactly the definitions in order and each must
// name a table column. Otherwise output is every table column in order, with
// the definition of the same name applied when present; fixed-length output
// then needs a definition for every table column to know its width, and
// every width must be positive.
func newRowFormatter(table *Table, opts SaveOptions, log *AuditLog) *rowFormatter {
	none := EmptyColumn()
	defs := make(map[string]Column, len(opts.Columns))
	for _, c := range opts.Columns {
		defs[c.Name] = c
	}
	tableCols := table.Columns()

	var out []outputColumn
	if opts.SchemaColumnsOnly {
		if len(opts.Columns) == 0 {
			log.Error(CategorySave, NoLocation, none, "No column definitions have been set.")
			return nil
		}
		for _, c := range opts.Columns {
			idx, ok := table.ColumnIndex(c.Name)
			if !ok {
				log.Errorf(CategorySave, NoLocation, c, "Column '%s' is defined but missing from table '%s'.", c.Name, table.Name())
				return nil
			}
			out = append(out, outputColumn{name: c.Name, index: idx, def: c, hasDef: true, tableType: tableCols[idx].Type})
		}
	} else {
		for i, tc := range tableCols {
			def, ok := defs[tc.Name]
			if !ok && opts.Format == FixedLength {
				log.Errorf(CategorySave, i, none, "Column '%s' has no definition; fixed-length output needs its size.", tc.Name)
				return nil
			}
			out = append(out, outputColumn{name: tc.Name, index: i, def: def, hasDef: ok, tableType: tc.Type})
		}
	}

	f := &rowFormatter{
		format:  opts.Format,
		trim:    opts.TrimValues,
		columns: out,
		widths:  make([]int, len(out)),
	}
	for i, oc := range out {
		if oc.hasDef && oc.def.Type != oc.tableType {
			log.Errorf(CategorySave, i, oc.def, "Column '%s' is defined as %s but the table holds %s.", oc.name, oc.def.Type, oc.tableType)
			return nil
		}
		if f.format == FixedLength && oc.def.Size <= 0 {
			log.Errorf(CategorySave, i, oc.def, "Column '%s' has no size; fixed-length output needs one.", oc.name)
			return nil
		}
		f.widths[i] = oc.def.Size
	}
	return f
}

// render formats one row, logging a save error and returning false if any
// cell fails its checks.
func (f *rowFormatter) render(row Row, lineNo int, log *AuditLog) (string, bool) {
	cells := make([]string, len(f.columns))
	for i, oc := range f.columns {
		v := row[oc.index]

		def := oc.def
		if !oc.hasDef {
			def = Column{Name: oc.name, Type: oc.tableType, DecimalSize: -1, AllowNull: true}
		}
		if !Validate(v, def, lineNo, log) {
			return "", false
		}

		cell := RenderCell(v, def)
		if f.trim {
			cell = strings.TrimSpace(cell)
		}
		if oc.hasDef && f.format != FixedLength && def.Type == TypeString && def.Size > 0 {
			if n := utf8.RuneCountInString(cell); n > def.Size {
				log.Errorf(CategorySave, lineNo, def, "Value '%s' in '%s' is %d characters, longer than %d.",
					cell, def.Name, n, def.Size)
				return "", false
			}
		}
		cells[i] = cell
	}
	return FormatLine(cells, f.format, f.widths), true
}
