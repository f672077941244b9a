package core

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// LoadOptions configures one Load run.
type LoadOptions struct {
	Format  Format
	Columns []Column

	// TrimValues trims every field after tokenizing.
	TrimValues bool

	// FirstRowIsHeader skips the first line of the file.
	FirstRowIsHeader bool

	// TraceRows adds an info entry per line and per field to the audit log.
	TraceRows bool
}

// LoadResult reports one Load run. Table is nil when the run stopped before
// columns were registered; otherwise it holds every row that loaded, even
// when OK is false.
type LoadResult struct {
	Table       *Table
	Log         *AuditLog
	OK          bool
	RowsRead    int
	RowsLoaded  int
	RowsSkipped int
	Duration    time.Duration
}

// Load reads path line by line into a new Table typed by opts.Columns.
//
// Configuration problems (no columns, no format, no path, missing file,
// column registration failure) end the run before any line is read. A line
// with the wrong field count, a field that fails conversion or validation,
// or a row the table rejects is skipped and marks the run failed; loading
// continues with the next line. Read errors and cancellation of ctx end the
// run with the rows loaded so far.
func (s *Service) Load(ctx context.Context, path string, opts LoadOptions) (res *LoadResult) {
	start := time.Now()
	res = &LoadResult{
		Log: NewAuditLog(s.runLogger(ctx, "load", path)),
	}
	defer func() {
		res.Duration = time.Since(start)
		s.logger.Info("load finished",
			"run_id", res.Log.RunID(),
			"file", path,
			"ok", res.OK,
			"rows_loaded", res.RowsLoaded,
			"rows_skipped", res.RowsSkipped,
			"duration", res.Duration,
		)
	}()
	defer recoverRun(res.Log, CategoryFile, &res.OK)

	res.OK = s.load(ctx, path, opts, res)
	return res
}

func (s *Service) load(ctx context.Context, path string, opts LoadOptions, res *LoadResult) bool {
	log := res.Log
	none := EmptyColumn()

	if len(opts.Columns) == 0 {
		log.Error(CategoryColumnDefinition, NoLocation, none, "No column definitions have been set.")
		return false
	}
	if !opts.Format.Valid() {
		log.Error(CategoryFile, NoLocation, none, "File type has not been set.")
		return false
	}
	if strings.TrimSpace(path) == "" {
		log.Error(CategoryFile, NoLocation, none, "No file path has been set.")
		return false
	}
	if !s.files.Exists(path) {
		log.Errorf(CategoryFile, NoLocation, none, "File '%s' Missing", path)
		return false
	}

	name := TableNameFromFile(filepath.Base(path))
	log.Infof(CategoryFile, NoLocation, none, "file: '%s' exists and table name will be called: '%s'", path, name)

	table := NewTable(name)
	for i, col := range opts.Columns {
		maxLen := 0
		if col.Type == TypeString {
			maxLen = col.Size
		}
		if err := table.AddColumn(col.Name, col.Type, col.AllowNull, maxLen); err != nil {
			log.Errorf(CategoryColumnDefinition, i, col, "Failed to add '%s' to table: %v", col.Name, err)
			return false
		}
		log.Infof(CategoryColumnDefinition, i, col, "Added '%s' to table successfully.", col.Name)
	}
	res.Table = table

	lines, err := s.files.OpenLines(path)
	if err != nil {
		log.Errorf(CategoryFile, NoLocation, none, "Failed to open '%s': %v", path, err)
		return false
	}
	defer lines.Close()

	hadIssue := false
	lineNo := 0
	for lines.Scan() {
		if lineNo%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				log.Errorf(CategoryFile, lineNo, none, "Load stopped after line %d: %v", lineNo, err)
				return false
			}
		}
		lineNo++

		if lineNo == 1 && opts.FirstRowIsHeader {
			log.Info(CategoryRow, lineNo, none, "Skipping first row, since it's a header.")
			continue
		}

		res.RowsRead++
		if !loadLine(lines.Text(), lineNo, opts, table, log) {
			hadIssue = true
			res.RowsSkipped++
			continue
		}
		res.RowsLoaded++
	}

	if err := lines.Err(); err != nil {
		log.Errorf(CategoryFile, lineNo, none, "Failed reading '%s' after line %d: %v", path, lineNo, err)
		return false
	}
	return !hadIssue
}

// loadLine tokenizes, converts and validates one line and appends it to
// table. It returns false if the row was rejected.
func loadLine(line string, lineNo int, opts LoadOptions, table *Table, log *AuditLog) bool {
	none := EmptyColumn()

	if opts.TraceRows {
		log.Infof(CategoryRow, lineNo, none, "Loading line with %db in size, without trim. %db trimmed.",
			len(line), len(strings.TrimSpace(line)))
	}

	fields := Tokenize(line, opts.Format, opts.TrimValues, opts.Columns)
	if len(fields) != len(opts.Columns) {
		log.Errorf(CategoryRow, lineNo, none, "line %d: %d fields found vs %d expected",
			lineNo, len(fields), len(opts.Columns))
		return false
	}

	values := make(map[string]Value, len(fields))
	for i, col := range opts.Columns {
		if opts.TraceRows {
			log.Infof(CategoryColumn, i, col, "Processing Line# %d Column #%d Name: '%s' Column Type: %s",
				lineNo, i+1, col.Name, col.Type)
		}

		v, ok := Convert(fields[i], col, lineNo, log)
		if !ok || !Validate(v, col, lineNo, log) {
			return false
		}
		values[col.Name] = v
	}

	if err := table.AppendRow(values); err != nil {
		log.Errorf(CategoryRow, lineNo, none, "line %d: row rejected: %v", lineNo, err)
		return false
	}
	return true
}
