package server

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/jonathan/skill-extractor/internal/fetch"
	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/pipeline"
)

//go:embed templates/form.html.tmpl
var templateFS embed.FS

// formPage is the data of the form template.
type formPage struct {
	Text string
	URL  string
	// URLDisabled hides the URL field when the API requires tokens.
	URLDisabled bool
	Warning     string
	Degraded    bool
	// Result is the renderer's output, which is sanitized before it gets here.
	Result template.HTML
}

// handleForm serves the empty extraction form
func (s *Server) handleForm(w http.ResponseWriter, _ *http.Request) {
	s.renderForm(w, http.StatusOK, formPage{URLDisabled: s.jwtService != nil})
}

// handleFormSubmit runs an extraction from the form and shows the
// highlighted job description
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		s.renderForm(w, http.StatusBadRequest, formPage{Warning: "Could not read the submitted form."})
		return
	}

	page := formPage{
		Text:        r.PostForm.Get("text"),
		URL:         strings.TrimSpace(r.PostForm.Get("url")),
		URLDisabled: s.jwtService != nil,
	}
	// The form is public; URL extraction goes through POST /extract when
	// tokens are required.
	if page.URLDisabled && page.URL != "" {
		page.URL = ""
		page.Warning = URLNeedsTokenMessage
		s.renderForm(w, http.StatusForbidden, page)
		return
	}
	if strings.TrimSpace(page.Text) == "" && page.URL == "" {
		page.Warning = EmptyInputMessage
		s.renderForm(w, http.StatusOK, page)
		return
	}

	out, err := s.runner.Run(r.Context(), pipeline.RunOptions{
		Text:       page.Text,
		URL:        page.URL,
		RenderHTML: true,
	})
	if err != nil {
		var invalid *matching.InvalidInputError
		status := HTTPStatus(err)
		switch {
		case errors.As(err, &invalid):
			page.Warning = EmptyInputMessage
			status = http.StatusOK
		case errors.Is(err, fetch.ErrBlockedAddress):
			page.Warning = BlockedURLMessage
		case status == http.StatusInternalServerError:
			log.Printf("Form extraction failed: %v", err)
			page.Warning = "Extraction failed. Please try again."
		default:
			page.Warning = err.Error()
		}
		s.renderForm(w, status, page)
		return
	}

	page.Degraded = out.Degraded
	page.Result = template.HTML(out.HTML) //nolint:gosec // RenderHTML always sanitizes its output
	s.renderForm(w, http.StatusOK, page)
}

// renderForm executes the form template into a buffer so a template error
// never leaves a half-written page.
func (s *Server) renderForm(w http.ResponseWriter, status int, page formPage) {
	var buf bytes.Buffer
	if err := s.form.Execute(&buf, page); err != nil {
		log.Printf("Error rendering form: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
