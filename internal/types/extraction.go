// Package types provides the request and response shapes of the HTTP API.
package types

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxTextBytes caps the text of an ExtractRequest.
const MaxTextBytes = 2 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ExtractRequest asks for the skills in a job description given either as
// text or as a posting URL. Text wins when both are set.
type ExtractRequest struct {
	Text      string  `json:"text" validate:"required_without=URL,max=2097152"`
	URL       string  `json:"url,omitempty" validate:"omitempty,http_url"`
	Threshold float64 `json:"threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	// HTML asks for the highlighted, sanitized rendering in the response.
	HTML bool `json:"html,omitempty"`
	// Persist stores the result when the server has a database.
	Persist bool `json:"persist,omitempty"`
}

// Validate validates the ExtractRequest using the validator.
func (r *ExtractRequest) Validate() error {
	return validate.Struct(r)
}

// IsEmpty reports whether the request carries no job description at all.
func (r *ExtractRequest) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.URL) == ""
}

// ListExtractionsQuery holds the query parameters of GET /extractions.
type ListExtractionsQuery struct {
	Skill  string `json:"skill" validate:"omitempty,max=64"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
	Offset int    `json:"offset" validate:"gte=0"`
}

// Validate validates the ListExtractionsQuery using the validator.
func (q *ListExtractionsQuery) Validate() error {
	return validate.Struct(q)
}

// FieldError describes the first failing field of a validation error.
// ok is false when err is not a validator error.
func FieldError(err error) (field, message string, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", "", false
	}
	fe := verrs[0]
	return fe.Field(), describeTag(fe), true
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "http_url":
		return "must be an absolute http or https URL"
	case "gt", "gte":
		return "must be greater than " + orEqual(fe.Tag()) + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func orEqual(tag string) string {
	if tag == "gte" {
		return "or equal to "
	}
	return ""
}
