package feed

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML reduces an HTML fragment to its text content: tags dropped,
// entities decoded, whitespace collapsed. Plain text without angle
// brackets is only whitespace-collapsed. It never fails: tokenization
// stops at the first error, keeping whatever text was extracted.
func StripHTML(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return ""
	}
	if !strings.ContainsAny(v, "<>") {
		return collapse(v)
	}

	z := html.NewTokenizer(strings.NewReader(v))
	var parts []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(strings.Join(parts, " "))
		case html.TextToken:
			if text := strings.TrimSpace(z.Token().Data); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
