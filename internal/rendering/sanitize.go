package rendering

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockedElements are removed together with their content.
const blockedElements = "script, iframe, object, embed, style, frame, frameset, base"

// urlAttributes may carry a navigable URL.
var urlAttributes = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"xlink:href": true,
	"data":       true,
	"poster":     true,
}

// Sanitize parses an HTML fragment and removes active content: blocked
// elements, every on* event-handler attribute and script-capable URLs
// (javascript:, vbscript: and data:).
func Sanitize(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", &RenderError{Stage: StageSanitize, Message: "failed to parse HTML", Cause: err}
	}

	doc.Find(blockedElements).Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			n.Attr = cleanAttributes(n.Attr)
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", &RenderError{Stage: StageSanitize, Message: "failed to serialize HTML", Cause: err}
	}
	return out, nil
}

func cleanAttributes(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			key = strings.ToLower(a.Namespace) + ":" + key
		}
		if strings.HasPrefix(key, "on") {
			continue
		}
		if urlAttributes[key] && isScriptURL(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}
