package taxonomy

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/skill-extractor/internal/parsing"
	"github.com/jonathan/skill-extractor/internal/schemas"
)

//go:embed data/default_catalog.json
var defaultCatalog embed.FS

const defaultCatalogPath = "data/default_catalog.json"

// Format is the encoding of a catalog file.
type Format string

const (
	// FormatJSON is a JSON catalog.
	FormatJSON Format = "json"
	// FormatYAML is a YAML catalog.
	FormatYAML Format = "yaml"
)

// CatalogRecord is one skill as it appears in a catalog file or the skills
// table. The canonical name is always registered as a surface form; aliases
// add more.
type CatalogRecord struct {
	ID       string   `json:"id" yaml:"id" validate:"required"`
	Name     string   `json:"name" yaml:"name" validate:"required"`
	Category string   `json:"category" yaml:"category" validate:"required,oneof=HARD_SKILL SOFT_SKILL CERTIFICATION"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases,omitempty" validate:"dive,required"`
}

// Catalog is the on-disk taxonomy format.
type Catalog struct {
	Version string          `json:"version,omitempty" yaml:"version,omitempty"`
	Skills  []CatalogRecord `json:"skills" yaml:"skills" validate:"required,min=1,dive"`
}

// FormatFromPath picks a catalog format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// LoadFile reads and builds a taxonomy from a JSON or YAML catalog file.
func LoadFile(path string) (*Taxonomy, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &LoadError{Message: "cannot determine catalog format", Cause: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("failed to read catalog file %s", path), Cause: err}
	}

	return ParseCatalog(data, format)
}

// LoadDefault builds the taxonomy from the catalog compiled into the binary.
func LoadDefault() (*Taxonomy, error) {
	data, err := defaultCatalog.ReadFile(defaultCatalogPath)
	if err != nil {
		return nil, &LoadError{Message: "failed to read embedded catalog", Cause: err}
	}
	return ParseCatalog(data, FormatJSON)
}

// Load builds a taxonomy from path, or from the embedded catalog when path is
// empty.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return LoadDefault()
	}
	return LoadFile(path)
}

// ParseCatalog decodes, schema-validates and builds a taxonomy from catalog
// bytes.
func ParseCatalog(data []byte, format Format) (*Taxonomy, error) {
	jsonData, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	if err := schemas.Validate(schemas.SkillCatalog, jsonData); err != nil {
		loadErr := &LoadError{Message: "catalog does not match schema", Cause: err}
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			loadErr.Field = verr.First().Field
		}
		return nil, loadErr
	}

	var catalog Catalog
	if err := json.Unmarshal(jsonData, &catalog); err != nil {
		return nil, &LoadError{Message: "failed to decode catalog", Cause: err}
	}

	return FromCatalog(&catalog)
}

// FromCatalog validates catalog records and builds a taxonomy.
func FromCatalog(catalog *Catalog) (*Taxonomy, error) {
	validate := validator.New()
	if err := validate.Struct(catalog); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, &LoadError{Field: fieldErrs[0].Namespace(), Message: "invalid catalog record", Cause: err}
		}
		return nil, &LoadError{Message: "invalid catalog", Cause: err}
	}
	return FromRecords(catalog.Skills)
}

// FromRecords converts catalog records into skill entries, tokenizing names
// and aliases with the document tokenizer so forms and documents agree.
func FromRecords(records []CatalogRecord) (*Taxonomy, error) {
	entries := make([]SkillEntry, 0, len(records))
	for _, rec := range records {
		category, err := ParseCategory(rec.Category)
		if err != nil {
			return nil, &LoadError{EntryID: rec.ID, Field: "category", Message: "invalid category", Cause: err}
		}

		phrases := append([]string{rec.Name}, rec.Aliases...)
		forms := make([][]string, 0, len(phrases))
		for _, phrase := range phrases {
			tokens := parsing.Words(phrase)
			if len(tokens) == 0 {
				return nil, &LoadError{
					EntryID: rec.ID,
					Field:   "aliases",
					Message: fmt.Sprintf("surface form %q has no tokens", phrase),
				}
			}
			forms = append(forms, tokens)
		}

		entries = append(entries, SkillEntry{
			ID:            rec.ID,
			CanonicalName: rec.Name,
			Category:      category,
			SurfaceForms:  forms,
		})
	}
	return New(entries)
}

// Records converts the taxonomy back into catalog records. Aliases are the
// registered surface forms other than the canonical name, space-joined.
func (t *Taxonomy) Records() []CatalogRecord {
	records := make([]CatalogRecord, 0, len(t.entries))
	for _, e := range t.entries {
		canonical := formKey(parsing.Words(e.CanonicalName))
		rec := CatalogRecord{ID: e.ID, Name: e.CanonicalName, Category: string(e.Category)}
		for _, form := range e.SurfaceForms {
			if key := formKey(form); key != canonical {
				rec.Aliases = append(rec.Aliases, key)
			}
		}
		records = append(records, rec)
	}
	return records
}

func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &LoadError{Message: "failed to parse YAML catalog", Cause: err}
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, &LoadError{Message: "failed to convert YAML catalog", Cause: err}
		}
		return out, nil
	default:
		return nil, &LoadError{Message: fmt.Sprintf("unsupported catalog format %q", format)}
	}
}
