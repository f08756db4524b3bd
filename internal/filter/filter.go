// Package filter decides whether a fetched entry is worth extracting.
package filter

import (
	"strings"
	"time"
)

// Decision is the outcome of Admit.
type Decision int

const (
	Admit Decision = iota
	SkipSeen
	SkipStale
	SkipKeyword
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case SkipSeen:
		return "seen"
	case SkipStale:
		return "stale"
	case SkipKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// Seen is the novelty lookup (the dedupe store).
type Seen interface {
	Contains(link string) bool
}

// Candidate is the part of an entry the gates look at.
type Candidate struct {
	Link        string
	Title       string
	PublishedAt *time.Time
}

type Options struct {
	// Keywords: the title must contain at least one (case-sensitive substring).
	Keywords []string
	// Window: entries published longer ago are stale. Zero disables the gate.
	Window time.Duration
	// RequireTimestamp rejects entries without a publish time when Window > 0.
	RequireTimestamp bool
}

// Filter applies the novelty, freshness and keyword gates, in that order.
type Filter struct {
	keywords         []string
	window           time.Duration
	requireTimestamp bool
}

func New(opts Options) *Filter {
	kw := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &Filter{keywords: kw, window: opts.Window, requireTimestamp: opts.RequireTimestamp}
}

func (f *Filter) Admit(c Candidate, seen Seen, now time.Time) Decision {
	if seen != nil && seen.Contains(c.Link) {
		return SkipSeen
	}
	if !f.Fresh(c.PublishedAt, now) {
		return SkipStale
	}
	if !f.Relevant(c.Title) {
		return SkipKeyword
	}
	return Admit
}

// Fresh reports whether publishedAt is inside the window. Missing timestamps
// pass unless RequireTimestamp is set; future timestamps always pass.
func (f *Filter) Fresh(publishedAt *time.Time, now time.Time) bool {
	if f.window <= 0 {
		return true
	}
	if publishedAt == nil || publishedAt.IsZero() {
		return !f.requireTimestamp
	}
	return now.Sub(*publishedAt) <= f.window
}

// Relevant reports whether title contains one of the keywords.
func (f *Filter) Relevant(title string) bool {
	for _, k := range f.keywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}
