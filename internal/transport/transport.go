// Package transport defines the notification message and the sinks that
// deliver it (Discord webhook, Telegram bot, stdout).
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity selects the styling of an alert.
type Severity int

const (
	// SeverityLow: no code, but the title carries a strong signal.
	SeverityLow Severity = iota + 1
	// SeverityHigh: a code was extracted.
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Message is one formatted alert. It is never persisted.
type Message struct {
	Title string
	// Body is the code when HasCode, otherwise the fallback text.
	Body     string
	HasCode  bool
	Link     string
	Source   string
	ImageURL string
	Severity Severity
}

// Sink delivers messages.
type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// StatusError is returned by HTTP based sinks for non-2xx responses.
type StatusError struct {
	Sink       string
	StatusCode int
	Body       string
	// RetryAfter is set on 429 responses when the server says so.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: unexpected status %d", e.Sink, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Headline is the first line of every alert.
func Headline(m Message) string {
	src := strings.TrimSpace(m.Source)
	if src == "" {
		src = "News"
	}
	return fmt.Sprintf("**%s** で情報を検知！", src)
}

// RenderText renders m as plain text (Markdown-ish, as Discord shows it).
func RenderText(m Message) string {
	var b strings.Builder
	b.WriteString(Headline(m))
	b.WriteString("\n商品: ")
	b.WriteString(m.Title)
	b.WriteString("\n")
	if m.HasCode {
		b.WriteString("コード: ```")
		b.WriteString(m.Body)
		b.WriteString("```")
	} else {
		b.WriteString(m.Body)
	}
	if m.Link != "" {
		b.WriteString("\n⬇️ [参照リンク](")
		b.WriteString(m.Link)
		b.WriteString(")")
	}
	return b.String()
}
