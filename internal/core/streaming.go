package core

// streaming.go prepares raw file bytes for line scanning.
//
// Flat files arrive from Windows tools, mainframe exports and browser
// uploads, so the input side tolerates a few common problems:
//
//   - BOMSkippingReader: removes a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - SanitizeLine: replaces invalid UTF-8 with '?'
//   - CountingReader: tracks bytes read and enforces an optional size cap

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrFileTooLarge is returned by a CountingReader once its limit is exceeded.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and drops the UTF-8 BOM if the
// stream starts with one.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader. The first call checks for and discards the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := r.br.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return r.br.Read(p)
}

// SanitizeLine replaces each run of invalid UTF-8 bytes with '?'.
// Valid lines are returned unchanged without allocating.
func SanitizeLine(line string) string {
	if utf8.ValidString(line) {
		return line
	}
	return strings.ToValidUTF8(line, "?")
}

// CountingReader wraps an io.Reader to track bytes read. When Limit is
// positive, reading past it fails with ErrFileTooLarge.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64
}

// NewCountingReader creates a counting reader. A limit <= 0 disables the cap.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, ErrFileTooLarge
	}
	return n, err
}

// WrapForScanning strips a BOM and counts bytes, in that order.
func WrapForScanning(r io.Reader, limit int64) *CountingReader {
	return NewCountingReader(NewBOMSkippingReader(r), limit)
}
