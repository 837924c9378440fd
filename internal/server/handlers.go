package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/skill-extractor/internal/db"
	"github.com/jonathan/skill-extractor/internal/pipeline"
	"github.com/jonathan/skill-extractor/internal/server/middleware"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
	"github.com/jonathan/skill-extractor/internal/types"
)

// parseQueryInt reads a non-negative integer query parameter, falling back to
// defaultValue when it is missing or invalid and capping it at maxValue when
// maxValue is positive.
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:   "ok",
		Skills:   s.engine.Taxonomy().Len(),
		Database: "disabled",
		Time:     time.Now().UTC(),
	}
	status := http.StatusOK

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	s.jsonResponse(w, status, resp)
}

// handleExtract runs the matcher over a posted job description
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req types.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.IsEmpty() {
		s.errorResponse(w, http.StatusBadRequest, EmptyInputMessage)
		return
	}
	if err := req.Validate(); err != nil {
		field, message, _ := types.FieldError(err)
		s.handleError(w, &ErrValidation{Field: field, Message: message})
		return
	}

	if subject, err := middleware.GetSubject(r); err == nil {
		log.Printf("[auth] %s requested extraction (persist=%t)", subject, req.Persist)
	}

	out, err := s.runner.Run(r.Context(), pipeline.RunOptions{
		Text:       req.Text,
		URL:        req.URL,
		Threshold:  req.Threshold,
		RenderHTML: req.HTML,
		Persist:    req.Persist,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, out)
}

// skillResponse converts a taxonomy entry for the API.
func skillResponse(e taxonomy.SkillEntry) types.Skill {
	forms := make([]string, len(e.SurfaceForms))
	for i, f := range e.SurfaceForms {
		forms[i] = strings.Join(f, " ")
	}
	return types.Skill{
		ID:           e.ID,
		Name:         e.CanonicalName,
		Category:     string(e.Category),
		SurfaceForms: forms,
	}
}

// handleListSkills lists the taxonomy, optionally filtered by category or a
// case-insensitive name/surface-form substring (?q=)
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	var category taxonomy.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		parsed, err := taxonomy.ParseCategory(raw)
		if err != nil {
			s.handleError(w, &ErrValidation{Field: "category", Message: err.Error()})
			return
		}
		category = parsed
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	skills := make([]types.Skill, 0)
	for _, e := range s.engine.Taxonomy().Entries() {
		if category != "" && e.Category != category {
			continue
		}
		skill := skillResponse(e)
		if query != "" && !matchesQuery(skill, query) {
			continue
		}
		skills = append(skills, skill)
	}

	if r.URL.Query().Get("sort") == "name" {
		sort.SliceStable(skills, func(i, j int) bool {
			return strings.ToLower(skills[i].Name) < strings.ToLower(skills[j].Name)
		})
	}

	s.jsonResponse(w, http.StatusOK, types.SkillList{Skills: skills, Count: len(skills)})
}

func matchesQuery(skill types.Skill, query string) bool {
	if strings.Contains(strings.ToLower(skill.Name), query) || strings.Contains(strings.ToLower(skill.ID), query) {
		return true
	}
	for _, form := range skill.SurfaceForms {
		if strings.Contains(form, query) {
			return true
		}
	}
	return false
}

// handleGetSkill retrieves one taxonomy entry by its ID
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := s.engine.Taxonomy().Entry(id)
	if !ok {
		s.handleError(w, &ErrNotFound{Resource: "skill", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, skillResponse(entry))
}

// handleListExtractions lists stored extractions with optional skill filter and pagination
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.handleError(w, &ErrUnavailable{Feature: "extraction history"})
		return
	}

	query := types.ListExtractionsQuery{
		Skill:  r.URL.Query().Get("skill"),
		Limit:  parseQueryInt(r, "limit", db.DefaultListLimit, db.MaxListLimit),
		Offset: parseQueryInt(r, "offset", 0, 0),
	}
	if err := query.Validate(); err != nil {
		field, message, _ := types.FieldError(err)
		s.handleError(w, &ErrValidation{Field: field, Message: message})
		return
	}

	items, total, err := s.store.ListExtractions(r.Context(), db.ListExtractionsOptions{
		SkillID: query.Skill,
		Limit:   query.Limit,
		Offset:  query.Offset,
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	if items == nil {
		items = []db.ExtractionSummary{}
	}

	s.jsonResponse(w, http.StatusOK, types.Page[db.ExtractionSummary]{
		Items:  items,
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

// extractionID parses the {id} path value.
func (s *Server) extractionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.handleError(w, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// handleGetExtraction retrieves a stored extraction by its ID
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.handleError(w, &ErrUnavailable{Feature: "extraction history"})
		return
	}
	id, ok := s.extractionID(w, r)
	if !ok {
		return
	}

	extraction, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if extraction == nil {
		s.handleError(w, &ErrNotFound{Resource: "extraction", ID: id.String()})
		return
	}

	s.jsonResponse(w, http.StatusOK, extraction)
}

// handleDeleteExtraction deletes a stored extraction
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.handleError(w, &ErrUnavailable{Feature: "extraction history"})
		return
	}
	id, ok := s.extractionID(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteExtraction(r.Context(), id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if !deleted {
		s.handleError(w, &ErrNotFound{Resource: "extraction", ID: id.String()})
		return
	}
	if subject, err := middleware.GetSubject(r); err == nil {
		log.Printf("[auth] %s deleted extraction %s", subject, id)
	}

	w.WriteHeader(http.StatusNoContent)
}
