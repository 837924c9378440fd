package rendering

import (
	"strconv"
	"strings"

	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// CategoryClass returns the CSS class for a skill category,
// e.g. "skill-hard_skill".
func CategoryClass(c taxonomy.Category) string {
	return "skill-" + strings.ToLower(string(c))
}

// CategoryLabel returns the legend heading for a category.
func CategoryLabel(c taxonomy.Category) string {
	switch c {
	case taxonomy.CategoryHardSkill:
		return "Hard skills"
	case taxonomy.CategorySoftSkill:
		return "Soft skills"
	case taxonomy.CategoryCertification:
		return "Certifications"
	default:
		return string(c)
	}
}

// FormatScore renders a similarity score with two decimals.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}

// scriptSchemes can run code or load an active document when navigated to.
var scriptSchemes = []string{"javascript:", "vbscript:", "data:"}

// isScriptURL reports whether an attribute value uses a javascript:,
// vbscript: or data: URL. Browsers ignore whitespace and control characters
// inside the scheme, so they are dropped before comparing.
func isScriptURL(value string) bool {
	var b strings.Builder
	for _, r := range value {
		if r <= ' ' || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	v := strings.ToLower(b.String())
	for _, scheme := range scriptSchemes {
		if strings.HasPrefix(v, scheme) {
			return true
		}
	}
	return false
}
