// Package feed fetches syndication feeds (RSS 1.0/2.0, Atom, JSON Feed)
// and maps their items to Entry values.
package feed

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedEntry marks an item that cannot be used (no link or no title).
var ErrMalformedEntry = errors.New("malformed feed entry")

// Source is one configured feed.
type Source struct {
	URL string
	// Name overrides the feed title as the alert's source label.
	Name string
	// Limit is how many of the most recent entries to examine (0 = default).
	Limit int
}

// Entry is one usable feed item.
type Entry struct {
	Link        string
	Title       string
	Summary     string // markup
	Content     string // markup, optional
	PublishedAt *time.Time
	ImageURL    string
}

// Feed is the result of one successful fetch.
type Feed struct {
	Title string
	// Entries in feed order (most recent first for well-behaved feeds).
	Entries []Entry
	// Rejected holds one ErrMalformedEntry-wrapped error per unusable item.
	Rejected []error
}

// Fetcher retrieves and parses one source.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (Feed, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src Source) (Feed, error)

func (f FetcherFunc) Fetch(ctx context.Context, src Source) (Feed, error) { return f(ctx, src) }

// Head returns the first n entries (all of them when n <= 0 or n >= len).
func (f Feed) Head(n int) []Entry {
	if n <= 0 || n >= len(f.Entries) {
		return f.Entries
	}
	return f.Entries[:n]
}
