// Package core provides the schema-driven row pipeline for flat text files.
//
// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. HTTP responses and the CLI show the code so a failing
// conversion can be diagnosed from a screenshot.
//
// # File Errors (FILE001-FILE005)
//
//	FILE001 - File exceeds the configured size limit     ("file exceeds maximum size")
//	FILE002 - No file in the request                     ("no file provided")
//	FILE003 - File has no lines                          ("empty file")
//	FILE004 - Source file is missing                     ("file not found", "no such file")
//	FILE005 - Destination exists without overwrite       ("already exists")
//
// # Schema Errors (SCH001-SCH005)
//
//	SCH001 - Unsupported column type                     ("unsupported data type")
//	SCH002 - Unknown file format                         ("unknown file format")
//	SCH003 - Two columns share a name                    ("duplicate column")
//	SCH004 - Named schema is not registered              ("schema not found")
//	SCH005 - Schema document does not parse or validate  ("invalid schema")
//
// # Validation Errors (VAL001-VAL005)
//
//	VAL001 - Line has the wrong number of fields         ("column count mismatch")
//	VAL002 - Blank value in a non-nullable column        ("null not allowed")
//	VAL003 - Value type differs from its column          ("type mismatch")
//	VAL004 - Text longer than the column size            ("exceeds max length")
//	VAL005 - Value does not parse or is not allowed      ("invalid value")
//
// # Conversion Errors (UPL001-UPL003)
//
//	UPL001 - All conversion slots are busy               ("too many concurrent conversions")
//	UPL002 - Request was cancelled                       ("context canceled")
//	UPL003 - Request timed out                           ("context deadline exceeded")
//
// # Sink Errors (DB001-DB003)
//
//	DB001 - Unknown sink driver                          ("unknown sink driver")
//	DB002 - Database unreachable                         ("connection refused")
//	DB003 - Export requested without a sink              ("sink not configured")
//
// ERR000 is the fallback when nothing matches; check the server log for the
// technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file exceeds maximum size",
		msg:     UserMessage{Message: "File exceeds the maximum size limit", Action: "Split the file into smaller parts", Code: "FILE001"},
	},
	{
		pattern: "no file provided",
		msg:     UserMessage{Message: "No file was provided", Action: "Attach the flat file in the 'file' form field", Code: "FILE002"},
	},
	{
		pattern: "empty file",
		msg:     UserMessage{Message: "The file is empty", Action: "Upload a file with at least one data line", Code: "FILE003"},
	},
	{
		pattern: "file not found",
		msg:     UserMessage{Message: "The source file was not found", Action: "Check the file path", Code: "FILE004"},
	},
	{
		pattern: "no such file",
		msg:     UserMessage{Message: "The source file was not found", Action: "Check the file path", Code: "FILE004"},
	},
	{
		pattern: "already exists",
		msg:     UserMessage{Message: "The destination file already exists", Action: "Enable overwrite or choose another path", Code: "FILE005"},
	},

	// Schema errors
	{
		pattern: "unsupported data type",
		msg:     UserMessage{Message: "A column uses an unsupported type", Action: "Use String, Boolean, Int64, Decimal, DateTime, TimeSpan, Guid or ByteArray", Code: "SCH001"},
	},
	{
		pattern: "unknown file format",
		msg:     UserMessage{Message: "Unknown file format", Action: "Use comma, semicolon, tab, quote-comma or fixed", Code: "SCH002"},
	},
	{
		pattern: "duplicate column",
		msg:     UserMessage{Message: "Two columns have the same name", Action: "Rename one of the columns", Code: "SCH003"},
	},
	{
		pattern: "schema not found",
		msg:     UserMessage{Message: "The named schema is not registered", Action: "List schemas with GET /api/schemas", Code: "SCH004"},
	},
	{
		pattern: "invalid schema",
		msg:     UserMessage{Message: "The schema document is not valid", Action: "Check the column names, types and sizes", Code: "SCH005"},
	},

	// Validation errors
	{
		pattern: "column count mismatch",
		msg:     UserMessage{Message: "A line has the wrong number of fields", Action: "Check the delimiter and the column list", Code: "VAL001"},
	},
	{
		pattern: "null not allowed",
		msg:     UserMessage{Message: "A required value is blank", Action: "Fill the value or allow null for the column", Code: "VAL002"},
	},
	{
		pattern: "type mismatch",
		msg:     UserMessage{Message: "A value does not match its column type", Action: "Check the column types", Code: "VAL003"},
	},
	{
		pattern: "exceeds max length",
		msg:     UserMessage{Message: "A value is longer than its column size", Action: "Increase the column size or shorten the value", Code: "VAL004"},
	},
	{
		pattern: "invalid value",
		msg:     UserMessage{Message: "A value could not be read", Action: "Review the audit log for the line and column", Code: "VAL005"},
	},

	// Conversion errors
	{
		pattern: "too many concurrent conversions",
		msg:     UserMessage{Message: "The server is busy with other conversions", Action: "Please wait a moment and try again", Code: "UPL001"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "UPL002"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Request timed out", Action: "Try a smaller file", Code: "UPL003"},
	},

	// Sink errors
	{
		pattern: "unknown sink driver",
		msg:     UserMessage{Message: "Unknown database driver", Action: "Use sqlite, postgres or mysql", Code: "DB001"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB002"},
	},
	{
		pattern: "sink not configured",
		msg:     UserMessage{Message: "No database is configured for export", Action: "Set SINK_DRIVER and SINK_DSN", Code: "DB003"},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. It returns
// the zero UserMessage for a nil error and ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
