package rendering

import (
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/parsing"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

//go:embed templates/extraction.html.tmpl
var templateFS embed.FS

var extractionTemplate = template.Must(template.ParseFS(templateFS, "templates/extraction.html.tmpl"))

// templateData is passed to the extraction template
type templateData struct {
	Body    template.HTML
	Legend  []LegendGroup
	classes map[string]string
}

// ClassFor returns the category class of a skill shown in the legend.
func (d templateData) ClassFor(id string) string {
	return d.classes[id]
}

// RenderHTML renders doc.Text with every annotation wrapped in a <mark>
// element, followed by a legend grouped by category. The result is always
// passed through Sanitize.
func RenderHTML(doc parsing.Document, set matching.AnnotationSet, tax *taxonomy.Taxonomy) (string, error) {
	annotations, err := Annotations(doc, set, tax)
	if err != nil {
		return "", err
	}

	body, err := highlight(doc.Text, annotations)
	if err != nil {
		return "", err
	}

	data := templateData{
		Body:    template.HTML(body),
		Legend:  Legend(annotations),
		classes: make(map[string]string, len(annotations)),
	}
	for _, a := range annotations {
		data.classes[a.SkillID] = CategoryClass(a.Category)
	}

	var out strings.Builder
	if err := extractionTemplate.Execute(&out, data); err != nil {
		return "", &RenderError{Stage: StageTemplate, Message: "failed to execute template", Cause: err}
	}

	return Sanitize(out.String())
}

// highlight escapes text and wraps each annotated byte range in a mark
// element. Annotations must be ordered by offset and must not overlap.
func highlight(text string, annotations []Annotation) (string, error) {
	var b strings.Builder
	b.Grow(len(text) + len(annotations)*160)

	pos := 0
	for _, a := range annotations {
		if a.Start < pos || a.End > len(text) || a.Start >= a.End {
			return "", &RenderError{Stage: StageHighlight, SkillID: a.SkillID, Message: fmt.Sprintf("bytes [%d,%d) overlap or exceed the text", a.Start, a.End)}
		}
		b.WriteString(html.EscapeString(text[pos:a.Start]))
		fmt.Fprintf(&b, `<mark class="skill %s" data-skill-id="%s" data-category="%s" data-score="%s" data-kind="%s" title="%s">%s</mark>`,
			CategoryClass(a.Category),
			html.EscapeString(a.SkillID),
			html.EscapeString(string(a.Category)),
			FormatScore(a.Score),
			a.Kind,
			html.EscapeString(fmt.Sprintf("%s (%s, %s)", a.Name, a.Kind, FormatScore(a.Score))),
			html.EscapeString(text[a.Start:a.End]),
		)
		pos = a.End
	}
	b.WriteString(html.EscapeString(text[pos:]))
	return b.String(), nil
}
