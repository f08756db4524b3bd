// Package textextract reduces markup to plain text and fetches the main
// text of linked article pages.
package textextract

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Extractor reduces markup to plain text.
type Extractor interface {
	Text(markup string) string
}

// blockSelector lists elements that end a line of text.
const blockSelector = "br, p, div, li, h1, h2, h3, h4, h5, h6, tr, td, th, pre, blockquote, section, article, dd, dt"

// structure keeps only text-bearing structural elements; script, style and
// their contents are dropped.
var structure = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "div", "span", "b", "strong", "em", "i", "u", "code", "pre",
		"ul", "ol", "li", "dl", "dd", "dt", "h1", "h2", "h3", "h4", "h5", "h6",
		"table", "thead", "tbody", "tr", "td", "th", "blockquote", "section", "article",
	)
	return p
}()

var strict = bluemonday.StrictPolicy()

// HTML is the default Extractor: bluemonday sanitizing followed by goquery
// text extraction, with line breaks at block boundaries so adjacent blocks
// never glue tokens together.
type HTML struct{}

func (HTML) Text(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	if !strings.Contains(markup, "<") {
		return normalizeWhitespace(html.UnescapeString(markup))
	}
	doc, err := goquery.NewDocumentFromReader(structure.SanitizeReader(strings.NewReader(markup)))
	if err != nil {
		return StripTags(markup)
	}
	return documentText(doc)
}

func documentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, iframe, svg").Remove()
	doc.Find(blockSelector).AfterHtml("\n")
	return normalizeWhitespace(doc.Text())
}

// StripTags removes every tag and unescapes entities.
func StripTags(markup string) string {
	return normalizeWhitespace(html.UnescapeString(strict.Sanitize(markup)))
}

// normalizeWhitespace collapses whitespace runs (including U+3000) to a
// single space.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
