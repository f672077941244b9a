package core

import "errors"

// Sentinel errors returned by the table and parsing collaborators.
// Pipelines never return these to callers directly; they are recorded in
// the audit log and mapped to user messages by MapError.
var (
	ErrUnsupportedType = errors.New("unsupported data type")
	ErrUnknownFormat   = errors.New("unknown file format")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrColumnCount     = errors.New("column count mismatch")
	ErrNullNotAllowed  = errors.New("null not allowed")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrTooLong         = errors.New("value exceeds max length")
	ErrInvalidValue    = errors.New("invalid value")
)
