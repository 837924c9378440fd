// Package rendering turns annotated job descriptions into highlighted HTML
// and JSON views.
package rendering

import (
	"fmt"
	"strings"
)

// Stage names the rendering step that failed.
type Stage string

const (
	StageAnnotate  Stage = "annotate"
	StageHighlight Stage = "highlight"
	StageTemplate  Stage = "template"
	StageSanitize  Stage = "sanitize"
)

// RenderError reports a rendering failure. SkillID is set when a single
// annotation caused it.
type RenderError struct {
	Stage   Stage
	SkillID string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "render %s", e.Stage)
	if e.SkillID != "" {
		fmt.Fprintf(&b, " [%s]", e.SkillID)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
