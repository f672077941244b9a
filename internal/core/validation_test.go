package core

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	status := NewColumn("Status", TypeString, 0, -1).
		Allow(StringValue("open"), StringValue("closed"))
	amount := NewColumn("Amount", TypeInt64, 0, -1).
		Allow(Int64Value(1), Int64Value(2))

	tests := []struct {
		name  string
		value Value
		col   Column
		want  bool
	}{
		{"allowed string", StringValue("open"), status, true},
		{"disallowed string", StringValue("pending"), status, false},
		{"allowed values are case sensitive", StringValue("OPEN"), status, false},
		{"allowed int", Int64Value(2), amount, true},
		{"disallowed int", Int64Value(3), amount, false},
		{"unconstrained", StringValue("anything"), NewColumn("Free", TypeString, 0, -1), true},
		{"null in nullable column", NullValue(TypeInt64), amount.Nullable(), true},
		{"null in required column", NullValue(TypeInt64), amount, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewAuditLog(nil)
			if got := Validate(tt.value, tt.col, 3, log); got != tt.want {
				t.Fatalf("Validate = %v, want %v", got, tt.want)
			}
			wantErrors := 0
			if !tt.want {
				wantErrors = 1
			}
			if got := len(log.Errors()); got != wantErrors {
				t.Errorf("error entries = %d, want %d", got, wantErrors)
			}
		})
	}
}

func TestValidate_MessageNamesAllowedSet(t *testing.T) {
	log := NewAuditLog(nil)
	col := NewColumn("Status", TypeString, 0, -1).Allow(StringValue("A"), StringValue("B"))

	Validate(StringValue("C"), col, 4, log)

	e := log.Errors()[0]
	want := "Invalid Data in 'Status'. Value found was: 'C' and allowed values must be within: (A,B)"
	if e.Message != want {
		t.Errorf("message = %q, want %q", e.Message, want)
	}
	if e.Category != CategoryValidation || e.Location != 4 || e.ColumnName != "Status" {
		t.Errorf("entry = %+v", e)
	}
}

func TestAuditLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log := NewAuditLog(logger)
	log.Info(CategoryFile, NoLocation, EmptyColumn(), "found file")
	log.Errorf(CategoryRow, 2, EmptyColumn(), "line %d: bad", 2)

	if log.Len() != 2 || !log.HasErrors() || len(log.Errors()) != 1 {
		t.Fatalf("Len=%d HasErrors=%v Errors=%d", log.Len(), log.HasErrors(), len(log.Errors()))
	}

	entries := log.Entries()
	entries[0].Message = "mutated"
	if log.Entries()[0].Message != "found file" {
		t.Error("Entries should return a copy")
	}

	out := buf.String()
	if strings.Count(out, log.RunID()) != 2 {
		t.Errorf("expected run_id on both mirrored records, got %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"level":"DEBUG"`) {
		t.Errorf("unexpected levels in %s", out)
	}

	if NewAuditLog(nil).RunID() == log.RunID() {
		t.Error("each log should get a fresh run id")
	}
}

func TestAuditEntry_JSON(t *testing.T) {
	log := NewAuditLog(nil)
	log.Error(CategoryConversion, 5, NewColumn("Amt", TypeDecimal, 0, 2), "Failed")

	data, err := json.Marshal(log.Entries()[0])
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"severity":"error"`, `"category":"column_conversion"`, `"column":"Amt"`, `"location":5`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}
