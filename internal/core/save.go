package core

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"
)

// SaveOptions configures one Save run.
type SaveOptions struct {
	Format  Format
	Columns []Column

	// TrimValues trims every rendered cell.
	TrimValues bool

	// SchemaColumnsOnly writes exactly the Columns, in order, instead of
	// every table column.
	SchemaColumnsOnly bool

	// Overwrite replaces an existing destination file.
	Overwrite bool

	// CreateDirectories creates missing parent directories.
	CreateDirectories bool
}

// SaveResult reports one Save run.
type SaveResult struct {
	Log         *AuditLog
	OK          bool
	RowsWritten int
	Duration    time.Duration
}

// Save writes every row of table to path in opts.Format.
//
// All preconditions are checked before the file system is touched. Unlike
// Load, any row that fails to render aborts the whole save, and a partially
// written file is removed. A failure to remove it is logged without hiding
// the original error.
func (s *Service) Save(ctx context.Context, table *Table, path string, opts SaveOptions) (res *SaveResult) {
	start := time.Now()
	res = &SaveResult{
		Log: NewAuditLog(s.runLogger(ctx, "save", path)),
	}
	defer func() {
		res.Duration = time.Since(start)
		s.logger.Info("save finished",
			"run_id", res.Log.RunID(),
			"file", path,
			"ok", res.OK,
			"rows_written", res.RowsWritten,
			"duration", res.Duration,
		)
	}()
	defer recoverRun(res.Log, CategorySave, &res.OK)

	res.OK = s.save(ctx, table, path, opts, res)
	return res
}

func (s *Service) save(ctx context.Context, table *Table, path string, opts SaveOptions, res *SaveResult) bool {
	log := res.Log
	none := EmptyColumn()

	if table == nil || len(table.Columns()) == 0 {
		log.Error(CategorySave, NoLocation, none, "Table has no columns.")
		return false
	}
	if table.Len() == 0 {
		log.Error(CategorySave, NoLocation, none, "Table has no rows.")
		return false
	}
	if strings.TrimSpace(path) == "" {
		log.Error(CategorySave, NoLocation, none, "No file path has been set.")
		return false
	}
	if !opts.Format.Valid() {
		log.Error(CategorySave, NoLocation, none, "File type has not been set.")
		return false
	}
	exists := s.files.Exists(path)
	if exists && !opts.Overwrite {
		log.Errorf(CategorySave, NoLocation, none, "File '%s' already exists and overwrite is not enabled.", path)
		return false
	}

	formatter := newRowFormatter(table, opts, log)
	if formatter == nil {
		return false
	}

	if opts.CreateDirectories {
		if dir := parentDir(path); dir != "" {
			if err := s.files.EnsureDir(dir); err != nil {
				log.Errorf(CategorySave, NoLocation, none, "Failed to create directory '%s': %v", dir, err)
				return false
			}
		}
	}
	if exists {
		if err := s.files.Remove(path); err != nil {
			log.Errorf(CategorySave, NoLocation, none, "Failed to remove existing file '%s': %v", path, err)
			return false
		}
		log.Infof(CategorySave, NoLocation, none, "Removed existing file '%s'.", path)
	}

	w, err := s.files.CreateLines(path)
	if err != nil {
		log.Errorf(CategorySave, NoLocation, none, "Failed to create '%s': %v", path, err)
		return false
	}

	ok := s.writeRows(ctx, w, table, formatter, res)
	if err := w.Close(); err != nil && ok {
		log.Errorf(CategorySave, NoLocation, none, "Failed to finish writing '%s': %v", path, err)
		ok = false
	}
	if !ok {
		s.discard(path, log)
		res.RowsWritten = 0
		return false
	}

	log.Infof(CategorySave, NoLocation, none, "Saved %d rows to '%s'.", res.RowsWritten, path)
	return true
}

func (s *Service) writeRows(ctx context.Context, w LineWriter, table *Table, f *rowFormatter, res *SaveResult) bool {
	log := res.Log
	none := EmptyColumn()

	for i, row := range table.Rows() {
		lineNo := i + 1
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				log.Errorf(CategorySave, lineNo, none, "Save stopped before row %d: %v", lineNo, err)
				return false
			}
		}

		line, ok := f.render(row, lineNo, log)
		if !ok {
			return false
		}
		if err := w.WriteLine(line); err != nil {
			log.Errorf(CategorySave, lineNo, none, "Failed to write row %d: %v", lineNo, err)
			return false
		}
		res.RowsWritten++
	}
	return true
}

// discard removes a partially written file.
func (s *Service) discard(path string, log *AuditLog) {
	none := EmptyColumn()
	if err := s.files.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Errorf(CategorySave, NoLocation, none, "Failed to remove partial file '%s': %v", path, err)
		return
	}
	log.Infof(CategorySave, NoLocation, none, "Removed partial file '%s'.", path)
}
