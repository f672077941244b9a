package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "file too large",
			err:         fmt.Errorf("read upload: %w", ErrFileTooLarge),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum size limit",
		},
		{
			name:        "missing source file",
			err:         errors.New("open /tmp/x.txt: no such file or directory"),
			wantCode:    "FILE004",
			wantMessage: "The source file was not found",
		},
		{
			name:        "unsupported type",
			err:         fmt.Errorf("column %q: %w", "Amt", ErrUnsupportedType),
			wantCode:    "SCH001",
			wantMessage: "A column uses an unsupported type",
		},
		{
			name:        "duplicate column",
			err:         fmt.Errorf("%w: %q", ErrDuplicateColumn, "Id"),
			wantCode:    "SCH003",
			wantMessage: "Two columns have the same name",
		},
		{
			name:        "column count",
			err:         fmt.Errorf("%w: 3 values for 2 columns", ErrColumnCount),
			wantCode:    "VAL001",
			wantMessage: "A line has the wrong number of fields",
		},
		{
			name:        "too long",
			err:         fmt.Errorf("column %q: %w: 12 > 10", "Name", ErrTooLong),
			wantCode:    "VAL004",
			wantMessage: "A value is longer than its column size",
		},
		{
			name:        "limiter busy",
			err:         ErrTooManyConversions,
			wantCode:    "UPL001",
			wantMessage: "The server is busy with other conversions",
		},
		{
			name:        "deadline",
			err:         context.DeadlineExceeded,
			wantCode:    "UPL003",
			wantMessage: "Request timed out",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE COLUMN \"Id\""),
			wantCode:    "SCH003",
			wantMessage: "Two columns have the same name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrDuplicateColumn)

	expected := "Two columns have the same name (Code: SCH003). Rename one of the columns"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrNullNotAllowed, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
