// Package ingest decodes uploaded schema documents into version candidates
// and orders them for insertion.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	yamlv3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"

	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/core/relationship"
)

// Extension keys read from a schema document.
const (
	KeyID           = "$id"
	KeyTitle        = "title"
	KeySubtitle     = "x-cr-subtitle"
	KeyVersion      = "x-cr-version"
	KeyValidFrom    = "x-cr-valid-from"
	KeyValidUntil   = "x-cr-valid-until"
	KeyUnique       = "x-cr-unique"
	KeySubschema    = "x-cr-subschema"
	KeyChildSchema  = "x-cr-childschema"
	KeyParentSchema = "x-cr-parentschema"
)

// Document is one uploaded file: its name and raw JSON or YAML content.
type Document struct {
	Name string
	Raw  []byte
}

// Entry is a decoded document ready for the version resolver.
type Entry struct {
	Candidate    lineage.Candidate
	Declarations relationship.Declarations
}

// IsYAML reports whether name carries a YAML extension.
func IsYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Decode parses doc and extracts the registry fields. YAML documents are
// converted to JSON first so the stored payload is always JSON. Decoding
// problems come back as *lineage.ValidationError.
func Decode(doc Document) (Entry, error) {
	raw := doc.Raw
	if IsYAML(doc.Name) {
		retagged, err := keepStringScalars(raw)
		if err != nil {
			return Entry{}, invalid(doc, fmt.Sprintf("invalid YAML: %v", err))
		}
		converted, err := yaml.YAMLToJSON(retagged)
		if err != nil {
			return Entry{}, invalid(doc, fmt.Sprintf("invalid YAML: %v", err))
		}
		raw = converted
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Entry{}, invalid(doc, fmt.Sprintf("invalid JSON: %v", err))
	}
	if fields == nil {
		return Entry{}, invalid(doc, "document must be a JSON object")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return Entry{}, invalid(doc, fmt.Sprintf("invalid JSON: %v", err))
	}

	e := Entry{Candidate: lineage.Candidate{Name: doc.Name, Document: compact.Bytes()}}
	var err error
	if e.Candidate.IDString, err = stringField(fields, KeyID); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Candidate.Title, err = stringField(fields, KeyTitle); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Candidate.Subtitle, err = stringField(fields, KeySubtitle); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Candidate.Version, err = stringField(fields, KeyVersion); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Candidate.ValidFrom, err = dateField(fields, KeyValidFrom); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Candidate.ValidUntil, err = dateField(fields, KeyValidUntil); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if v, ok := fields[KeyUnique]; ok && v != nil {
		b, isBool := v.(bool)
		if !isBool {
			return Entry{}, invalid(doc, fmt.Sprintf("%s must be a boolean", KeyUnique))
		}
		e.Candidate.Unique = b
	}

	if e.Declarations.Subschema, err = patternField(fields, KeySubschema); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Declarations.ChildSchema, err = patternField(fields, KeyChildSchema); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}
	if e.Declarations.ParentSchema, err = patternField(fields, KeyParentSchema); err != nil {
		return Entry{}, invalid(doc, err.Error())
	}

	return e, nil
}

// Declarations re-reads the relationship patterns from a stored JSON payload.
func Declarations(document []byte) (relationship.Declarations, error) {
	var fields map[string]any
	if err := json.Unmarshal(document, &fields); err != nil {
		return relationship.Declarations{}, fmt.Errorf("failed to decode stored document: %w", err)
	}

	var (
		d   relationship.Declarations
		err error
	)
	if d.Subschema, err = patternField(fields, KeySubschema); err != nil {
		return d, err
	}
	if d.ChildSchema, err = patternField(fields, KeyChildSchema); err != nil {
		return d, err
	}
	if d.ParentSchema, err = patternField(fields, KeyParentSchema); err != nil {
		return d, err
	}
	return d, nil
}

// stringKeys are the top-level keys whose values are read as text.
var stringKeys = map[string]bool{
	KeyID: true, KeyTitle: true, KeySubtitle: true,
	KeyVersion: true, KeyValidFrom: true, KeyValidUntil: true,
}

// keepStringScalars retags unquoted numbers and dates under stringKeys as
// strings, so "x-cr-version: 1.10" stays "1.10" instead of becoming 1.1.
func keepStringScalars(raw []byte) ([]byte, error) {
	var root yamlv3.Node
	if err := yamlv3.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	if root.Kind != yamlv3.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yamlv3.MappingNode {
		return raw, nil
	}

	m := root.Content[0]
	changed := false
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		if !stringKeys[key.Value] || val.Kind != yamlv3.ScalarNode {
			continue
		}
		switch val.ShortTag() {
		case "!!int", "!!float", "!!timestamp":
			val.Tag = "!!str"
			val.Style = yamlv3.DoubleQuotedStyle
			changed = true
		}
	}
	if !changed {
		return raw, nil
	}
	return yamlv3.Marshal(&root)
}

func invalid(doc Document, reason string) *lineage.ValidationError {
	return &lineage.ValidationError{Document: doc.Name, Reason: reason}
}

func stringField(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), nil
	case json.Number:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%s must be a string", key)
	}
}

// dateField accepts YYYY-MM-DD and, for YAML timestamps, full RFC 3339 values.
func dateField(fields map[string]any, key string) (string, error) {
	s, err := stringField(fields, key)
	if err != nil || s == "" {
		return s, err
	}
	if t, perr := time.Parse(time.RFC3339, s); perr == nil {
		return t.UTC().Format(lineage.DateLayout), nil
	}
	return s, nil
}

func patternField(fields map[string]any, key string) ([]string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch p := v.(type) {
	case string:
		if strings.TrimSpace(p) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(p)}, nil
	case []any:
		out := make([]string, 0, len(p))
		for _, item := range p {
			s, isString := item.(string)
			if !isString {
				return nil, fmt.Errorf("%s must contain only strings", key)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a string or an array of strings", key)
	}
}
