package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/textconv/internal/core"
	"github.com/JonMunkholm/textconv/internal/schemafile"
)

// multipartMemory is how much of a multipart form is kept in memory; the
// rest goes to temporary files.
const multipartMemory = 8 << 20

// formOverhead is the request body allowance on top of the file size limit
// for the other form fields and multipart framing.
const formOverhead = 1 << 20

// parseForm limits the body and parses the multipart form.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Convert.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return fmt.Errorf("%w: expected a multipart form", errNoFile)
		}
		return fmt.Errorf("parse form: %w", err)
	}
	return nil
}

// spoolUpload copies the form field named field into dir, keeping the
// uploaded file name so the loaded table is named after it.
func (s *Server) spoolUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", errNoFile
		}
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload.txt"
	}
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, core.NewCountingReader(file, s.cfg.Convert.MaxFileSize))
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if n == 0 {
		return "", errEmptyFile
	}
	return path, nil
}

// definition resolves the schema for a request from, in order, a registered
// name, an inline document or an uploaded document. prefix selects the
// field set: "" for the input schema, "to" for the output schema of a
// conversion (toSchemaName, toSchema, toSchemaFile).
func (s *Server) definition(r *http.Request, prefix string) (*schemafile.Definition, error) {
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + strings.ToUpper(name[:1]) + name[1:]
	}

	if name := strings.TrimSpace(r.FormValue(field("schemaName"))); name != "" {
		return s.deps.Schemas.Get(name)
	}

	if doc := strings.TrimSpace(r.FormValue(field("schema"))); doc != "" {
		ext := ".yaml"
		if strings.HasPrefix(doc, "{") {
			ext = ".json"
		}
		return schemafile.Parse([]byte(doc), ext)
	}

	file, header, err := r.FormFile(field("schemaFile"))
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, formOverhead))
		if err != nil {
			return nil, fmt.Errorf("read schema file: %w", err)
		}
		return schemafile.Parse(data, filepath.Ext(header.Filename))
	}

	return nil, fmt.Errorf("%w: set %s, %s or %s",
		schemafile.ErrSchemaNotFound, field("schemaName"), field("schema"), field("schemaFile"))
}

// loadOptions applies the optional format, header and trim overrides.
func loadOptions(r *http.Request, def *schemafile.Definition) (core.LoadOptions, error) {
	opts := def.LoadOptions()

	if f := r.FormValue("format"); f != "" {
		format, err := core.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	if v, ok := formBool(r, "header"); ok {
		opts.FirstRowIsHeader = v
	}
	if v, ok := formBool(r, "trim"); ok {
		opts.TrimValues = v
	}
	return opts, nil
}

// formBool parses a boolean form field. ok is false when the field is
// absent or not a boolean.
func formBool(r *http.Request, name string) (value, ok bool) {
	raw := r.FormValue(name)
	if raw == "" {
		return false, false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}
