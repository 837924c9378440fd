package types

import "time"

// Skill is one taxonomy entry as served by GET /skills.
type Skill struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	SurfaceForms []string `json:"surface_forms"`
}

// SkillList is the body of GET /skills.
type SkillList struct {
	Skills []Skill `json:"skills"`
	Count  int     `json:"count"`
}

// Page wraps one page of a list endpoint.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string    `json:"status"`
	Skills   int       `json:"skills"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}
