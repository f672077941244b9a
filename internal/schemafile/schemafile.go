// Package schemafile reads column definitions from YAML or JSON documents.
//
// A document names a file layout and its columns:
//
//	name: orders
//	format: comma
//	firstRowIsHeader: true
//	columns:
//	  - name: Id
//	    type: int64
//	  - name: Amount
//	    type: decimal
//	    decimals: 2
//	  - name: Status
//	    type: string
//	    size: 10
//	    allowedValues: [open, closed]
//
// Allowed values are written as text and converted with the column's own
// type, so "12" on an int64 column is the number 12.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/textconv/internal/core"
)

var (
	ErrInvalidSchema  = errors.New("invalid schema")
	ErrSchemaNotFound = errors.New("schema not found")
)

// Document is the on-disk form of a column-definition file.
type Document struct {
	Name              string           `yaml:"name" json:"name"`
	Format            string           `yaml:"format,omitempty" json:"format,omitempty"`
	TrimValues        bool             `yaml:"trimValues,omitempty" json:"trimValues,omitempty"`
	FirstRowIsHeader  bool             `yaml:"firstRowIsHeader,omitempty" json:"firstRowIsHeader,omitempty"`
	SchemaColumnsOnly bool             `yaml:"schemaColumnsOnly,omitempty" json:"schemaColumnsOnly,omitempty"`
	Columns           []ColumnDocument `yaml:"columns" json:"columns"`
}

// ColumnDocument is one column entry of a Document.
type ColumnDocument struct {
	Name          string   `yaml:"name" json:"name"`
	Type          string   `yaml:"type" json:"type"`
	Size          int      `yaml:"size,omitempty" json:"size,omitempty"`
	Decimals      *int     `yaml:"decimals,omitempty" json:"decimals,omitempty"`
	AllowNull     bool     `yaml:"allowNull,omitempty" json:"allowNull,omitempty"`
	AllowedValues []string `yaml:"allowedValues,omitempty" json:"allowedValues,omitempty"`
}

// Definition is a validated Document, ready to drive Load and Save.
type Definition struct {
	Name              string
	Format            core.Format
	TrimValues        bool
	FirstRowIsHeader  bool
	SchemaColumnsOnly bool
	Columns           []core.Column
}

// LoadOptions returns the options for loading a file described by d.
func (d *Definition) LoadOptions() core.LoadOptions {
	return core.LoadOptions{
		Format:           d.Format,
		Columns:          d.Columns,
		TrimValues:       d.TrimValues,
		FirstRowIsHeader: d.FirstRowIsHeader,
	}
}

// SaveOptions returns the options for writing a file described by d.
func (d *Definition) SaveOptions(overwrite bool) core.SaveOptions {
	return core.SaveOptions{
		Format:            d.Format,
		Columns:           d.Columns,
		TrimValues:        d.TrimValues,
		SchemaColumnsOnly: d.SchemaColumnsOnly,
		Overwrite:         overwrite,
	}
}

// Document converts d back to its on-disk form.
func (d *Definition) Document() Document {
	doc := Document{
		Name:              d.Name,
		TrimValues:        d.TrimValues,
		FirstRowIsHeader:  d.FirstRowIsHeader,
		SchemaColumnsOnly: d.SchemaColumnsOnly,
		Columns:           make([]ColumnDocument, len(d.Columns)),
	}
	if d.Format.Valid() {
		doc.Format = d.Format.String()
	}
	for i, c := range d.Columns {
		cd := ColumnDocument{
			Name:      c.Name,
			Type:      c.Type.String(),
			Size:      c.Size,
			AllowNull: c.AllowNull,
		}
		if c.DecimalSize >= 0 {
			places := c.DecimalSize
			cd.Decimals = &places
		}
		for _, v := range c.AllowedValues {
			cd.AllowedValues = append(cd.AllowedValues, v.String())
		}
		doc.Columns[i] = cd
	}
	return doc
}

// Parse decodes a definition. ext selects the decoder: ".yaml" and ".yml"
// for YAML, ".json" for JSON. Unknown fields are rejected by both.
func Parse(data []byte, ext string) (*Definition, error) {
	var doc Document

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidSchema, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidSchema, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidSchema, ext)
	}

	return doc.Definition()
}

// Load reads and parses the definition file at path.
// The name defaults to the file name without its extension.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}

	ext := filepath.Ext(path)
	def, err := Parse(data, ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return def, nil
}

// Definition validates doc and converts it to a Definition.
// Every problem found is reported, not just the first.
func (doc Document) Definition() (*Definition, error) {
	var errs []string

	def := &Definition{
		Name:              strings.TrimSpace(doc.Name),
		TrimValues:        doc.TrimValues,
		FirstRowIsHeader:  doc.FirstRowIsHeader,
		SchemaColumnsOnly: doc.SchemaColumnsOnly,
	}

	if doc.Format != "" {
		f, err := core.ParseFormat(doc.Format)
		if err != nil {
			errs = append(errs, err.Error())
		}
		def.Format = f
	}

	if len(doc.Columns) == 0 {
		errs = append(errs, "no columns defined")
	}

	seen := make(map[string]bool, len(doc.Columns))
	for i, cd := range doc.Columns {
		col, colErrs := cd.column(def.Format)
		for _, e := range colErrs {
			errs = append(errs, fmt.Sprintf("column %d (%q): %s", i+1, cd.Name, e))
		}
		if col.Name != "" {
			if seen[col.Name] {
				errs = append(errs, fmt.Sprintf("column %d: duplicate column %q", i+1, col.Name))
			}
			seen[col.Name] = true
		}
		def.Columns = append(def.Columns, col)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n  - %s", ErrInvalidSchema, strings.Join(errs, "\n  - "))
	}
	return def, nil
}

func (cd ColumnDocument) column(format core.Format) (core.Column, []string) {
	var errs []string

	name := strings.TrimSpace(cd.Name)
	if name == "" {
		errs = append(errs, "name is required")
	}

	dataType, err := core.ParseDataType(cd.Type)
	if err != nil {
		errs = append(errs, err.Error())
	}

	if cd.Size < 0 {
		errs = append(errs, "size must not be negative")
	}
	if format == core.FixedLength && cd.Size == 0 {
		errs = append(errs, "fixed-length columns need a size")
	}

	decimals := -1
	if cd.Decimals != nil {
		decimals = *cd.Decimals
		if decimals < 0 {
			errs = append(errs, "decimals must not be negative")
		}
	}

	col := core.NewColumn(name, dataType, cd.Size, decimals)
	col.AllowNull = cd.AllowNull

	if err == nil {
		for _, raw := range cd.AllowedValues {
			v, perr := core.ParseValue(raw, dataType, decimals)
			if perr != nil {
				errs = append(errs, fmt.Sprintf("allowed value: %v", perr))
				continue
			}
			col.AllowedValues = append(col.AllowedValues, v)
		}
	}

	return col, errs
}
