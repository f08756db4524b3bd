package notifier

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"couponwatch/internal/transport"
)

// FallbackText replaces the code in alerts that have none ("no code, check the link").
const FallbackText = "コード記載なし/リンク先確認"

// Input is everything the formatter needs to know about one entry.
type Input struct {
	Title    string
	Link     string
	Source   string
	ImageURL string
	// Code is empty when extraction found nothing.
	Code string
}

// Formatter builds alerts. It is immutable and safe for concurrent use.
type Formatter struct {
	signals []*regexp.Regexp
}

// NewFormatter returns a formatter that treats signals as strong title terms,
// matched case-insensitively. Latin words only match as whole words and a
// term starting with a digit never matches inside a longer number, so "free"
// skips "Freezer" and "0円" skips "500円".
func NewFormatter(signals []string) *Formatter {
	f := &Formatter{}
	for _, s := range signals {
		if re := signalPattern(s); re != nil {
			f.signals = append(f.signals, re)
		}
	}
	return f
}

func signalPattern(term string) *regexp.Regexp {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)

	var b strings.Builder
	b.WriteString("(?i)")
	switch {
	case isDigit(first):
		b.WriteString(`(?:^|[^0-9０-９,.，])`)
	case isASCIIWord(first):
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(term))
	if isASCIIWord(last) {
		b.WriteString(`\b`)
	}
	return regexp.MustCompile(b.String())
}

func isDigit(r rune) bool { return (r >= '0' && r <= '9') || (r >= '０' && r <= '９') }

func isASCIIWord(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// StrongSignal reports whether title contains one of the strong terms.
func (f *Formatter) StrongSignal(title string) bool {
	for _, re := range f.signals {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// Format returns the alert for in, or false when the entry should not be announced.
func (f *Formatter) Format(in Input) (Message, bool) {
	m := Message{
		Title:    strings.TrimSpace(in.Title),
		Link:     in.Link,
		Source:   strings.TrimSpace(in.Source),
		ImageURL: in.ImageURL,
	}
	if code := strings.TrimSpace(in.Code); code != "" {
		m.Body = code
		m.HasCode = true
		m.Severity = transport.SeverityHigh
		return m, true
	}
	if !f.StrongSignal(in.Title) {
		return Message{}, false
	}
	m.Body = FallbackText
	m.Severity = transport.SeverityLow
	return m, true
}
