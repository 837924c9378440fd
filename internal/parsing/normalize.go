// Package parsing turns raw job-description text into the normalized token
// stream consumed by the skill matcher.
package parsing

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reHTMLTag  = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	reToken    = regexp.MustCompile(`[\p{L}\p{N}](?:[\p{L}\p{N}+#./\-]*[\p{L}\p{N}+#])?`)
	stripChars = strings.NewReplacer("\r", " ", "\n", " ", "[", "", "]", "", "(", "", ")", "")
)

// Token is a single normalized token together with its byte offsets in
// Document.Text.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Document is the output of Normalize: the cleaned display text and the
// lower-cased tokens found in it.
type Document struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

// Words returns the token strings in order.
func (d Document) Words() []string {
	words := make([]string, len(d.Tokens))
	for i, tok := range d.Tokens {
		words[i] = tok.Text
	}
	return words
}

// IsEmpty reports whether the document has no tokens.
func (d Document) IsEmpty() bool {
	return len(d.Tokens) == 0
}

// Normalize cleans raw text and tokenizes it. Input that cannot be cleaned
// yields an empty Document rather than an error.
func Normalize(raw string) Document {
	text, err := CleanText(raw)
	if err != nil || text == "" {
		return Document{}
	}
	return Document{Text: text, Tokens: Tokenize(text)}
}

// CleanText strips markup, line breaks and brackets from a job description and
// collapses whitespace.
func CleanText(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	// 1. Drop invalid byte sequences left by bad encodings
	text := strings.ToValidUTF8(raw, " ")

	// 2. Line breaks and brackets
	text = stripChars.Replace(text)

	// 3. Markup
	if reHTMLTag.MatchString(text) {
		stripped, err := stripHTML(text)
		if err != nil {
			return "", err
		}
		text = stripped
	}

	// 4. Compatibility forms (ligatures, full-width letters, non-breaking spaces)
	text = norm.NFKC.String(text)

	// 5. Whitespace and punctuation fixups
	text = reSpaces.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, " , ", ", ")
	text = strings.ReplaceAll(text, ".,", ".")

	return text, nil
}

// stripHTML replaces every tag with a space and keeps the text nodes.
func stripHTML(text string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()

	var sb strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &sb)
	}
	return sb.String(), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// Tokenize splits cleaned text into lower-cased tokens. Tokens are runs of
// letters and digits that may contain + # . / - inside, so "C++", "node.js"
// and "CI/CD" stay whole. Surrounding punctuation is dropped.
func Tokenize(text string) []Token {
	locs := reToken.FindAllStringIndex(text, -1)
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{
			Text:  strings.ToLower(text[loc[0]:loc[1]]),
			Start: loc[0],
			End:   loc[1],
		})
	}
	return tokens
}

// Words tokenizes a short phrase such as a skill alias and returns only the
// token strings.
func Words(phrase string) []string {
	doc := Document{Tokens: Tokenize(norm.NFKC.String(phrase))}
	return doc.Words()
}
