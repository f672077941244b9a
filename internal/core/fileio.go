package core

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultMaxLineBytes is the longest line OSFiles will scan.
const DefaultMaxLineBytes = 1 << 20

// LineScanner yields the lines of a file once, in order, without line
// terminators. It follows the bufio.Scanner protocol.
type LineScanner interface {
	Scan() bool
	Text() string
	Err() error
	Close() error
}

// LineWriter writes newline-terminated lines to a new file.
type LineWriter interface {
	WriteLine(line string) error
	Close() error
}

// FileStore is the file system seen by the pipelines.
type FileStore interface {
	Exists(path string) bool
	OpenLines(path string) (LineScanner, error)
	CreateLines(path string) (LineWriter, error)
	Remove(path string) error
	EnsureDir(dir string) error
}

// OSFiles is the FileStore backed by the local file system.
//
// Input lines go through BOM skipping and UTF-8 sanitization; both "\n" and
// "\r\n" terminators are accepted. Output lines end with "\n".
type OSFiles struct {
	// MaxLineBytes caps a single line. Zero means DefaultMaxLineBytes.
	MaxLineBytes int
	// MaxFileBytes caps the bytes read from one file. Zero means no cap.
	MaxFileBytes int64
}

// Exists reports whether path names an existing regular file.
func (OSFiles) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// OpenLines opens path for line scanning.
func (o OSFiles) OpenLines(path string) (LineScanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	maxLine := o.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(WrapForScanning(f, o.MaxFileBytes))
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	return &osLineScanner{f: f, sc: sc}, nil
}

// CreateLines creates path for writing. It fails if the file already exists.
func (OSFiles) CreateLines(path string) (LineWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &osLineWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Remove deletes path.
func (OSFiles) Remove(path string) error {
	return os.Remove(path)
}

// EnsureDir creates dir and any missing parents.
func (OSFiles) EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

type osLineScanner struct {
	f  *os.File
	sc *bufio.Scanner
}

func (s *osLineScanner) Scan() bool   { return s.sc.Scan() }
func (s *osLineScanner) Text() string { return SanitizeLine(s.sc.Text()) }
func (s *osLineScanner) Err() error   { return s.sc.Err() }
func (s *osLineScanner) Close() error { return s.f.Close() }

type osLineWriter struct {
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func (w *osLineWriter) WriteLine(line string) error {
	if _, err := w.w.WriteString(line); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *osLineWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.w.Flush(), w.f.Close())
}

// parentDir returns the directory part of path, or "" for a bare file name.
func parentDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}
