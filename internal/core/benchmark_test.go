package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// Conversion Benchmarks
// ============================================================================

// BenchmarkParseValue covers the per-field hot path of Load.
func BenchmarkParseValue(b *testing.B) {
	cases := []struct {
		raw string
		typ DataType
	}{
		{"12345", TypeInt64},
		{"-1234.5678", TypeDecimal},
		{"true", TypeBoolean},
		{"2024-03-01T10:15:00Z", TypeDateTime},
		{"1.02:03:04", TypeTimeSpan},
		{"0f8fad5b-d9cb-469f-a165-70867728950e", TypeGuid},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cases {
			ParseValue(c.raw, c.typ, 2)
		}
	}
}

// ============================================================================
// Tokenizer Benchmarks
// ============================================================================

func BenchmarkTokenize_Delimited(b *testing.B) {
	line := strings.Repeat("field,", 19) + "field"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Tokenize(line, CommaDelimited, true, nil)
	}
}

func BenchmarkTokenize_QuoteComma(b *testing.B) {
	line := strings.Repeat(`"field, with comma",`, 9) + `"last"`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Tokenize(line, QuoteCommaDelimited, false, nil)
	}
}

func BenchmarkTokenize_FixedLength(b *testing.B) {
	cols := make([]Column, 10)
	for i := range cols {
		cols[i] = NewColumn(fmt.Sprintf("C%d", i), TypeString, 8, -1)
	}
	line := strings.Repeat("abcdefgh", 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Tokenize(line, FixedLength, true, cols)
	}
}

// ============================================================================
// Pipeline Benchmarks
// ============================================================================

func benchColumns() []Column {
	return []Column{
		NewColumn("Id", TypeInt64, 0, -1),
		NewColumn("Name", TypeString, 20, -1),
		NewColumn("Amount", TypeDecimal, 0, 2),
		NewColumn("Active", TypeBoolean, 0, -1),
	}
}

func writeBenchFile(b *testing.B, rows int) string {
	b.Helper()
	var sb strings.Builder
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "%d,Item %d,%d.%02d,true\n", i, i, i*3, i%100)
	}
	path := filepath.Join(b.TempDir(), "bench.txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		b.Fatal(err)
	}
	return path
}

// BenchmarkLoad_10kRows measures a full delimited Load.
func BenchmarkLoad_10kRows(b *testing.B) {
	path := writeBenchFile(b, 10_000)
	svc := NewService(nil, nil)
	opts := LoadOptions{Format: CommaDelimited, Columns: benchColumns()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := svc.Load(context.Background(), path, opts)
		if !res.OK {
			b.Fatalf("load failed: %v", res.Log.Errors())
		}
	}
}

// BenchmarkSave_10kRows measures writing a loaded table back out.
func BenchmarkSave_10kRows(b *testing.B) {
	path := writeBenchFile(b, 10_000)
	svc := NewService(nil, nil)
	res := svc.Load(context.Background(), path, LoadOptions{Format: CommaDelimited, Columns: benchColumns()})
	if !res.OK {
		b.Fatalf("load failed: %v", res.Log.Errors())
	}
	out := filepath.Join(b.TempDir(), "out.txt")
	opts := SaveOptions{Format: TabDelimited, Columns: benchColumns(), Overwrite: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if s := svc.Save(context.Background(), res.Table, out, opts); !s.OK {
			b.Fatalf("save failed: %v", s.Log.Errors())
		}
	}
}
