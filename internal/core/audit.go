package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Severity is the level of an audit entry.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// MarshalText encodes the severity as "info" or "error".
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuditCategory groups audit entries by the pipeline stage that wrote them.
type AuditCategory string

const (
	CategoryFile             AuditCategory = "file"
	CategoryColumnDefinition AuditCategory = "column_definition"
	CategoryRow              AuditCategory = "row"
	CategoryColumn           AuditCategory = "column"
	CategoryConversion       AuditCategory = "column_conversion"
	CategoryValidation       AuditCategory = "data_validation"
	CategorySave             AuditCategory = "save"
)

// NoLocation marks entries that are not tied to a line or column index.
const NoLocation = -1

// AuditEntry is one immutable record of a pipeline run.
type AuditEntry struct {
	Time       time.Time     `json:"time"`
	Category   AuditCategory `json:"category"`
	Location   int           `json:"location"`
	Message    string        `json:"message"`
	Severity   Severity      `json:"severity"`
	Column     Column        `json:"-"`
	ColumnName string        `json:"column,omitempty"`
}

// AuditLog is the append-only report of one Load or Save run.
//
// Every entry is also mirrored to the run's slog.Logger: info entries at
// debug level and error entries at warn level, tagged with the run id.
// An AuditLog is owned by a single run and is not safe for concurrent use.
type AuditLog struct {
	runID   string
	logger  *slog.Logger
	entries []AuditEntry
	errors  int
}

// NewAuditLog starts an empty log with a fresh run id. A nil logger discards
// the mirrored records.
func NewAuditLog(logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := uuid.NewString()
	return &AuditLog{
		runID:  id,
		logger: logger.With("run_id", id),
	}
}

// RunID identifies the run this log belongs to.
func (l *AuditLog) RunID() string { return l.runID }

// Info appends an informational entry.
func (l *AuditLog) Info(category AuditCategory, location int, col Column, message string) {
	l.add(SeverityInfo, category, location, col, message)
}

// Error appends an error entry.
func (l *AuditLog) Error(category AuditCategory, location int, col Column, message string) {
	l.add(SeverityError, category, location, col, message)
}

// Infof is Info with a format string.
func (l *AuditLog) Infof(category AuditCategory, location int, col Column, format string, args ...any) {
	l.add(SeverityInfo, category, location, col, fmt.Sprintf(format, args...))
}

// Errorf is Error with a format string.
func (l *AuditLog) Errorf(category AuditCategory, location int, col Column, format string, args ...any) {
	l.add(SeverityError, category, location, col, fmt.Sprintf(format, args...))
}

func (l *AuditLog) add(sev Severity, category AuditCategory, location int, col Column, message string) {
	entry := AuditEntry{
		Time:     time.Now(),
		Category: category,
		Location: location,
		Message:  message,
		Severity: sev,
		Column:   col,
	}
	if !col.IsEmpty() {
		entry.ColumnName = col.Name
	}
	l.entries = append(l.entries, entry)

	level := slog.LevelDebug
	if sev == SeverityError {
		l.errors++
		level = slog.LevelWarn
	}
	attrs := []any{"category", string(category)}
	if location != NoLocation {
		attrs = append(attrs, "location", location)
	}
	if entry.ColumnName != "" {
		attrs = append(attrs, "column", entry.ColumnName)
	}
	l.logger.Log(context.Background(), level, message, attrs...)
}

// Entries returns a copy of every entry in append order.
func (l *AuditLog) Entries() []AuditEntry {
	return append([]AuditEntry(nil), l.entries...)
}

// Errors returns a copy of the error entries in append order.
func (l *AuditLog) Errors() []AuditEntry {
	out := make([]AuditEntry, 0, l.errors)
	for _, e := range l.entries {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any error entry was written.
func (l *AuditLog) HasErrors() bool { return l.errors > 0 }

// Len returns the number of entries.
func (l *AuditLog) Len() int { return len(l.entries) }
