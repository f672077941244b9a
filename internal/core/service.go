package core

import (
	"fmt"
	"log/slog"
	"time"
)

// ConvertTimeout bounds one conversion request when the configuration sets
// no timeout of its own.
var ConvertTimeout = 10 * time.Minute

// ContextCheckInterval is how many lines pass between cancellation checks.
var ContextCheckInterval = 100

// Service runs Load and Save pipelines against a FileStore.
//
// A Service holds no per-run state: options are passed by value to every
// call and each run owns its Table and AuditLog, so one Service may be
// shared by concurrent callers.
type Service struct {
	files  FileStore
	logger *slog.Logger
}

// NewService creates a Service. A nil files uses the local file system and a
// nil logger uses slog.Default().
func NewService(files FileStore, logger *slog.Logger) *Service {
	if files == nil {
		files = OSFiles{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{files: files, logger: logger}
}

// recoverRun turns a panic inside a pipeline into a fatal audit entry so
// that Load and Save never panic into their callers.
func recoverRun(log *AuditLog, category AuditCategory, ok *bool) {
	if r := recover(); r != nil {
		log.Error(category, NoLocation, EmptyColumn(), fmt.Sprintf("Unexpected failure: %v", r))
		*ok = false
	}
}
