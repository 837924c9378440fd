// Package server provides the HTTP API and the browser form for skill extraction.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/skill-extractor/internal/fetch"
	"github.com/jonathan/skill-extractor/internal/ingestion"
	"github.com/jonathan/skill-extractor/internal/matching"
)

// EmptyInputMessage is shown when a request carries no usable job description.
const EmptyInputMessage = "Please enter a job description to extract skills."

// BlockedURLMessage explains why a URL pointing inside the network was refused.
const BlockedURLMessage = "URL must point to a public host"

// URLNeedsTokenMessage is shown when the form is asked to fetch a URL while
// the API requires bearer tokens.
const URLNeedsTokenMessage = "Fetching a URL requires an API token. Paste the job description instead."

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnavailable indicates a feature that needs a dependency the server was
// started without, such as the database.
type ErrUnavailable struct {
	Feature string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not available: server started without a database", e.Feature)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *ErrValidation
		invalid     *matching.InvalidInputError
		notFound    *ErrNotFound
		unavailable *ErrUnavailable
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &invalid), errors.Is(err, ingestion.ErrInvalidURL),
		errors.Is(err, fetch.ErrBlockedAddress):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ingestion.ErrHTTPRequestFailed), errors.Is(err, ingestion.ErrContentExtractionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine-readable "error" field for a status.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusBadGateway:
		return "upstream_failed"
	case http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	default:
		return "internal_error"
	}
}
