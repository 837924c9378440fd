package rendering

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/parsing"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New([]taxonomy.SkillEntry{
		{ID: "PYTHON", CanonicalName: "Python", Category: taxonomy.CategoryHardSkill, SurfaceForms: [][]string{{"python"}}},
		{ID: "COMM", CanonicalName: "Communication", Category: taxonomy.CategorySoftSkill, SurfaceForms: [][]string{{"communication"}, {"communication", "skills"}}},
		{ID: "PMP", CanonicalName: "Project Management Professional", Category: taxonomy.CategoryCertification, SurfaceForms: [][]string{{"pmp"}}},
	})
	require.NoError(t, err)
	return tax
}

func extract(t *testing.T, raw string, tax *taxonomy.Taxonomy) (parsing.Document, matching.AnnotationSet) {
	t.Helper()
	doc := parsing.Normalize(raw)
	return doc, matching.ExtractSkills(doc.Words(), tax)
}

func parseFragment(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}

func TestAnnotations(t *testing.T) {
	tax := testTaxonomy(t)
	doc, set := extract(t, "Strong Communication Skills and Python, PMP preferred.", tax)

	annotations, err := Annotations(doc, set, tax)
	require.NoError(t, err)
	require.Len(t, annotations, 3)

	assert.Equal(t, "COMM", annotations[0].SkillID)
	assert.Equal(t, "Communication", annotations[0].Name)
	assert.Equal(t, taxonomy.CategorySoftSkill, annotations[0].Category)
	assert.Equal(t, "EXACT", annotations[0].Kind)
	assert.Equal(t, "Communication Skills", annotations[0].Text)
	assert.Equal(t, 1, annotations[0].TokenStart)
	assert.Equal(t, 3, annotations[0].TokenEnd)
	assert.Equal(t, annotations[0].Text, doc.Text[annotations[0].Start:annotations[0].End])

	assert.Equal(t, "Python", annotations[1].Text)
	assert.Equal(t, "PMP", annotations[2].Text)
	assert.Equal(t, taxonomy.CategoryCertification, annotations[2].Category)
}

func TestAnnotations_Errors(t *testing.T) {
	tax := testTaxonomy(t)
	doc := parsing.Normalize("python")

	_, err := Annotations(doc, matching.AnnotationSet{{Span: matching.Span{Start: 0, End: 2}, SkillID: "PYTHON", Kind: matching.KindExact, Score: 1}}, tax)
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, StageAnnotate, renderErr.Stage)
	assert.Equal(t, "PYTHON", renderErr.SkillID)
	assert.Contains(t, err.Error(), "outside document")

	_, err = Annotations(doc, matching.AnnotationSet{{Span: matching.Span{Start: 0, End: 1}, SkillID: "RUST", Kind: matching.KindExact, Score: 1}}, tax)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown skill id")
}

func TestRenderHTML(t *testing.T) {
	tax := testTaxonomy(t)
	doc, set := extract(t, "Strong communication skills & Python <b>required</b>; PMP a plus.", tax)

	out, err := RenderHTML(doc, set, tax)
	require.NoError(t, err)

	page := parseFragment(t, out)
	marks := page.Find("p.job-description mark.skill")
	require.Equal(t, 3, marks.Length())

	first := marks.First()
	assert.Equal(t, "communication skills", first.Text())
	assert.True(t, first.HasClass("skill-soft_skill"))
	id, _ := first.Attr("data-skill-id")
	assert.Equal(t, "COMM", id)
	score, _ := first.Attr("data-score")
	assert.Equal(t, "1.00", score)
	kind, _ := first.Attr("data-kind")
	assert.Equal(t, "EXACT", kind)
	title, _ := first.Attr("title")
	assert.Equal(t, "Communication (EXACT, 1.00)", title)

	assert.True(t, marks.Eq(1).HasClass("skill-hard_skill"))
	assert.True(t, marks.Eq(2).HasClass("skill-certification"))

	assert.Contains(t, page.Find("p.job-description").Text(), "skills & Python")

	headings := page.Find(".skill-legend h3").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	assert.Equal(t, []string{"Hard skills", "Soft skills", "Certifications"}, headings)
}

func TestRenderHTML_NoSkills(t *testing.T) {
	tax := testTaxonomy(t)
	doc, set := extract(t, "Nothing relevant here", tax)

	out, err := RenderHTML(doc, set, tax)
	require.NoError(t, err)
	assert.Contains(t, out, "No skills found.")
	assert.NotContains(t, out, "<mark")
}

func TestRenderHTML_EscapesText(t *testing.T) {
	tax := testTaxonomy(t)
	doc := parsing.Document{
		Text:   `python "><img src=x onerror=alert(1)>`,
		Tokens: []parsing.Token{{Text: "python", Start: 0, End: 6}},
	}
	set := matching.AnnotationSet{{Span: matching.Span{Start: 0, End: 1}, SkillID: "PYTHON", Kind: matching.KindExact, Score: 1}}

	out, err := RenderHTML(doc, set, tax)
	require.NoError(t, err)

	page := parseFragment(t, out)
	assert.Equal(t, 0, page.Find("img").Length())
	assert.NotContains(t, out, "<img")
	assert.Contains(t, page.Find("p.job-description").Text(), `"><img src=x onerror=alert(1)>`)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		absent  []string
		present []string
	}{
		{
			name:    "script elements",
			input:   `<p>hi</p><script>alert(1)</script>`,
			absent:  []string{"<script", "alert(1)"},
			present: []string{"<p>hi</p>"},
		},
		{
			name:    "event handlers",
			input:   `<mark class="skill" onclick="steal()" OnMouseOver="x()">go</mark>`,
			absent:  []string{"onclick", "steal()", "onmouseover"},
			present: []string{`class="skill"`, ">go</mark>"},
		},
		{
			name:    "javascript urls",
			input:   `<a href=" java	script:alert(1)">x</a><a href="https://example.com">ok</a>`,
			absent:  []string{"javascript", "alert"},
			present: []string{`href="https://example.com"`},
		},
		{
			name:    "data and vbscript urls",
			input:   `<a href="data:text/html,<script>alert(1)</script>">x</a><a href="VBScript:msgbox(1)">y</a><a href="/jobs">ok</a>`,
			absent:  []string{"data:", "vbscript", "msgbox", "alert"},
			present: []string{`href="/jobs"`},
		},
		{
			name:   "embedded content",
			input:  `<iframe src="x"></iframe><object data="y"></object><embed src="z"/><style>p{}</style>`,
			absent: []string{"<iframe", "<object", "<embed", "<style"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Sanitize(tt.input)
			require.NoError(t, err)
			lower := strings.ToLower(out)
			for _, s := range tt.absent {
				assert.NotContains(t, lower, strings.ToLower(s))
			}
			for _, s := range tt.present {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestLegend_CountsAndOrder(t *testing.T) {
	groups := Legend([]Annotation{
		{SkillID: "COMM", Name: "Communication", Category: taxonomy.CategorySoftSkill},
		{SkillID: "PYTHON", Name: "Python", Category: taxonomy.CategoryHardSkill},
		{SkillID: "GO", Name: "Go", Category: taxonomy.CategoryHardSkill},
		{SkillID: "PYTHON", Name: "Python", Category: taxonomy.CategoryHardSkill},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, taxonomy.CategoryHardSkill, groups[0].Category)
	assert.Equal(t, []LegendSkill{{ID: "PYTHON", Name: "Python", Count: 2}, {ID: "GO", Name: "Go", Count: 1}}, groups[0].Skills)
	assert.Equal(t, "skill-soft_skill", groups[1].Class)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "1.00", FormatScore(1))
	assert.Equal(t, "0.67", FormatScore(2.0/3.0))
}

func TestIsScriptURL(t *testing.T) {
	assert.True(t, isScriptURL("javascript:alert(1)"))
	assert.True(t, isScriptURL("  JaVa\nScRiPt:void(0)"))
	assert.True(t, isScriptURL("data:text/html;base64,PHNjcmlwdD4="))
	assert.True(t, isScriptURL(" DATA:image/svg+xml,<svg onload=alert(1)>"))
	assert.True(t, isScriptURL("vbscript:msgbox(1)"))
	assert.False(t, isScriptURL("https://example.com/javascript:"))
	assert.False(t, isScriptURL("/docs/data:sheet"))
	assert.False(t, isScriptURL(""))
}
