// Package schemas provides JSON Schema validation for skill catalogs and
// extraction results.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFiles embed.FS

const (
	// SkillCatalog validates taxonomy catalog files.
	SkillCatalog = "skill_catalog"
	// ExtractionResult validates the JSON written by the extract command and API.
	ExtractionResult = "extraction_result"
)

// compiled holds each embedded schema, parsed on first use.
var compiled = map[string]func() (*gojsonschema.Schema, error){
	SkillCatalog:     compileOnce(SkillCatalog),
	ExtractionResult: compileOnce(ExtractionResult),
}

func compileOnce(name string) func() (*gojsonschema.Schema, error) {
	return sync.OnceValues(func() (*gojsonschema.Schema, error) {
		raw, err := Schema(name)
		if err != nil {
			return nil, err
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, &SchemaLoadError{Name: name, Message: "invalid schema", Cause: err}
		}
		return schema, nil
	})
}

// FieldError is one violation. Field is a dotted path such as
// "skills.0.category", or "(root)".
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation of a document against Schema.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s validation failed:", e.Schema)
	for i, fe := range e.Errors {
		fmt.Fprintf(&b, "\n  %d. %s: %s", i+1, fe.Field, fe.Message)
	}
	return b.String()
}

// First returns the first violation.
func (e *ValidationError) First() FieldError {
	if len(e.Errors) == 0 {
		return FieldError{Field: "(root)"}
	}
	return e.Errors[0]
}

// SchemaLoadError reports an unknown or unparsable embedded schema.
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error { return e.Cause }

// MalformedError is returned when the document is not JSON at all.
type MalformedError struct {
	Schema string
	Cause  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s document is not valid JSON: %v", e.Schema, e.Cause)
}

func (e *MalformedError) Unwrap() error { return e.Cause }

// Schema returns the raw content of an embedded schema by name.
func Schema(name string) (string, error) {
	data, err := schemaFiles.ReadFile(name + ".schema.json")
	if err != nil {
		return "", &SchemaLoadError{Name: name, Message: "unknown schema", Cause: err}
	}
	return string(data), nil
}

// Validate checks a JSON document against the named embedded schema.
func Validate(name string, document []byte) error {
	compile, ok := compiled[name]
	if !ok {
		return &SchemaLoadError{Name: name, Message: "unknown schema"}
	}
	schema, err := compile()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &MalformedError{Schema: name, Cause: err}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
