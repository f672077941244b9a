package core

import "strings"

// Tokenize splits one raw line into fields according to format.
//
// Delimited formats split on the literal delimiter with no escaping.
// Quote-comma takes the text strictly between successive pairs of '"' and
// stops at an unmatched trailing quote. Fixed-length consumes each column's
// Size runes in order, so it always returns len(columns) fields; a short line
// yields a partial field followed by empty ones.
//
// Tokenize never checks the field count against the columns.
func Tokenize(line string, format Format, trim bool, columns []Column) []string {
	var fields []string

	switch format {
	case FixedLength:
		fields = splitFixed(line, columns)
	case QuoteCommaDelimited:
		fields = splitQuoted(line)
	default:
		sep, ok := format.Delimiter()
		if !ok {
			return nil
		}
		fields = strings.Split(line, sep)
	}

	if trim {
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
	}
	return fields
}

func splitQuoted(line string) []string {
	var fields []string
	rest := line
	for {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			return fields
		}
		rest = rest[open+1:]

		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return fields
		}
		fields = append(fields, rest[:end])
		rest = rest[end+1:]
	}
}

func splitFixed(line string, columns []Column) []string {
	runes := []rune(line)
	fields := make([]string, len(columns))

	pos := 0
	for i, col := range columns {
		if col.Size <= 0 || pos >= len(runes) {
			continue
		}
		end := min(pos+col.Size, len(runes))
		fields[i] = string(runes[pos:end])
		pos = end
	}
	return fields
}
