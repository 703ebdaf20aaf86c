package ingestion

import (
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultSelector keeps the title, header and body of a typical blog post.
const DefaultSelector = ".post-content, .post-title, .post-header"

// ExtractText returns the text of every element matching selector, in document
// order, separated by blank lines. Nested matches are only counted once.
// An empty selector keeps the text of the whole page with markup, scripts and
// styles removed.
func ExtractText(r io.Reader, selector string) (string, error) {
	if strings.TrimSpace(selector) == "" {
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		// The strict policy escapes entities in the text it keeps
		text := bluemonday.StrictPolicy().SanitizeBytes(raw)
		return normalizeWhitespace(html.UnescapeString(string(text))), nil
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	var parts []string
	selection := doc.Find(selector)
	selection.Each(func(i int, s *goquery.Selection) {
		// Skip elements nested in another match; the ancestor's text already covers them
		if s.ParentsFiltered(selector).Length() > 0 {
			return
		}
		text := normalizeWhitespace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, "\n\n"), nil
}

// normalizeWhitespace collapses runs of spaces within lines and drops blank lines.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
