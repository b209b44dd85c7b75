package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/nomina-receipts/constants"
)

// Manifest is the optional manifest.json at the archive root.
type Manifest struct {
	PeriodType   string         `json:"periodType,omitempty"`
	PeriodID     string         `json:"periodId,omitempty"`
	FechaPeriodo string         `json:"fechaPeriodo,omitempty"`
	Counts       *Counts        `json:"counts,omitempty"`
	Files        []DeclaredFile `json:"files"`
}

type Counts struct {
	PDF   int `json:"pdf"`
	XML   int `json:"xml"`
	Total int `json:"total"`
}

type DeclaredFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FileType maps the declared type to the stored document type.
func (f DeclaredFile) FileType() constants.FileType {
	return constants.MapExtToFileType(f.Type)
}

// ManifestError reports a manifest that cannot be read or does not match the schema.
// The resolver recovers from it by scanning.
type ManifestError struct {
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest: %s: %v", e.Reason, e.Err)
	}
	return "manifest: " + e.Reason
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// SchemaMap is the JSON Schema for manifest.json.
func SchemaMap() map[string]any {
	count := map[string]any{"type": "integer", "minimum": 0}
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []any{"files"},
		"properties": map[string]any{
			"periodType":   map[string]any{"type": "string"},
			"periodId":     map[string]any{"type": "string"},
			"fechaPeriodo": map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`},
			"counts": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pdf":   count,
					"xml":   count,
					"total": count,
				},
			},
			"files": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name", "type"},
					"properties": map[string]any{
						"name": map[string]any{"type": "string", "minLength": 1},
						"type": map[string]any{"type": "string", "enum": []any{"pdf", "xml", "PDF", "XML"}},
					},
				},
			},
		},
	}
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(SchemaMap())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("manifest.schema.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("manifest.schema.json")
	})
	return compiled, compileErr
}

// Parse validates data against the manifest schema and decodes it.
func Parse(data []byte) (*Manifest, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	s, err := schema()
	if err != nil {
		return nil, &ManifestError{Reason: "schema unavailable", Err: err}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &ManifestError{Reason: "invalid json", Err: err}
	}
	if err := s.Validate(v); err != nil {
		return nil, &ManifestError{Reason: "does not match schema", Err: err}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Reason: "decode", Err: err}
	}
	for i := range m.Files {
		m.Files[i].Type = strings.ToLower(m.Files[i].Type)
	}
	return &m, nil
}

// CountWarnings compares declared counts with the declared file list.
func (m *Manifest) CountWarnings() []string {
	if m.Counts == nil {
		return nil
	}
	var pdfs, xmls int
	for _, f := range m.Files {
		switch f.FileType() {
		case constants.FileTypePDF:
			pdfs++
		case constants.FileTypeXML:
			xmls++
		}
	}
	var out []string
	if m.Counts.PDF != pdfs {
		out = append(out, fmt.Sprintf("manifest declares %d pdf files but lists %d", m.Counts.PDF, pdfs))
	}
	if m.Counts.XML != xmls {
		out = append(out, fmt.Sprintf("manifest declares %d xml files but lists %d", m.Counts.XML, xmls))
	}
	if m.Counts.Total != len(m.Files) {
		out = append(out, fmt.Sprintf("manifest declares %d files in total but lists %d", m.Counts.Total, len(m.Files)))
	}
	return out
}
