package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplate is removed from every page before the description is located.
const boilerplate = "nav, footer, header, script, style, noscript, template, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, .popup"

// lineBreakers end a line of extracted text, so list items and paragraphs do
// not run together into one sentence.
const lineBreakers = "br, p, li, h1, h2, h3, h4, h5, h6, div, section, tr, dt, dd"

var genericContent = []string{"main", "article", ".content", "#content", ".main-content", "#main-content"}

var postingContent = []string{
	".job-description", ".job-content", "#job-description", "#job-content",
	".posting-content", ".job-details",
	"[data-testid='job-description']", "[itemprop='description']",
}

// DefaultTextSelectors locates the main content of an arbitrary page.
func DefaultTextSelectors() []string {
	return append([]string(nil), genericContent...)
}

// JobPostingSelectors locates a job description on an unrecognized board,
// trying posting containers before generic content regions.
func JobPostingSelectors() []string {
	return append(append([]string(nil), postingContent...), genericContent[:4]...)
}

// ExtractMainText returns the readable text of a page, one line per block
// element. The first of contentSelectors that matches wins, falling back to
// <body>. Boilerplate and noiseSelectors are removed first.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find(boilerplate).Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	root := doc.Find("body")
	for _, selector := range contentSelectors {
		if match := doc.Find(selector).First(); match.Length() > 0 {
			root = match
			break
		}
	}

	root.Find(lineBreakers).AfterHtml("\n")
	return squeezeLines(root.Text()), nil
}

// squeezeLines collapses whitespace inside each line and drops empty lines.
func squeezeLines(text string) string {
	var b strings.Builder
	for line := range strings.SplitSeq(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(fields, " "))
	}
	return b.String()
}
