package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const defaultTimeout = 20 * time.Second

type GofeedOptions struct {
	Timeout   time.Duration
	UserAgent string
	// Client overrides the HTTP client (tests). Timeout is ignored when set.
	Client *http.Client
}

// GofeedFetcher fetches feeds over HTTP with mmcdole/gofeed.
// Non-2xx responses and unparsable documents are fetch errors.
type GofeedFetcher struct {
	client    *http.Client
	userAgent string
}

func NewGofeedFetcher(opts GofeedOptions) *GofeedFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GofeedFetcher{client: client, userAgent: opts.UserAgent}
}

func (f *GofeedFetcher) Fetch(ctx context.Context, src Source) (Feed, error) {
	u, err := url.Parse(strings.TrimSpace(src.URL))
	if err != nil {
		return Feed{}, fmt.Errorf("feed url %q: %w", src.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Feed{}, fmt.Errorf("feed url %q: scheme must be http or https", src.URL)
	}

	fp := gofeed.NewParser()
	fp.Client = f.client
	if f.userAgent != "" {
		fp.UserAgent = f.userAgent
	}
	parsed, err := fp.ParseURLWithContext(u.String(), ctx)
	if err != nil {
		return Feed{}, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	return FromGofeed(parsed), nil
}

// FromGofeed maps a parsed feed, keeping item order.
func FromGofeed(in *gofeed.Feed) Feed {
	out := Feed{Title: strings.TrimSpace(in.Title)}
	for i, item := range in.Items {
		e, err := entryFromItem(item)
		if err != nil {
			out.Rejected = append(out.Rejected, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

func entryFromItem(item *gofeed.Item) (Entry, error) {
	if item == nil {
		return Entry{}, fmt.Errorf("%w: empty item", ErrMalformedEntry)
	}
	link := itemLink(item)
	if link == "" {
		return Entry{}, fmt.Errorf("%w: missing link", ErrMalformedEntry)
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Entry{}, fmt.Errorf("%w: missing title (%s)", ErrMalformedEntry, link)
	}

	e := Entry{
		Link:     link,
		Title:    title,
		Summary:  item.Description,
		Content:  item.Content,
		ImageURL: imageURL(item),
	}
	switch {
	case item.PublishedParsed != nil:
		t := *item.PublishedParsed
		e.PublishedAt = &t
	case item.UpdatedParsed != nil:
		t := *item.UpdatedParsed
		e.PublishedAt = &t
	}
	return e, nil
}

// itemLink: Link, then the first of Links, then a URL-shaped GUID.
func itemLink(item *gofeed.Item) string {
	if l := strings.TrimSpace(item.Link); l != "" {
		return l
	}
	for _, l := range item.Links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	if isHTTPURL(item.GUID) {
		return strings.TrimSpace(item.GUID)
	}
	return ""
}

// imageURL picks the best image: Item.Image, media:thumbnail,
// media:content (medium=image), then the first image/* enclosure.
func imageURL(item *gofeed.Item) string {
	if item.Image != nil && isHTTPURL(item.Image.URL) {
		return item.Image.URL
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if u := thumb.Attrs["url"]; isHTTPURL(u) {
				return u
			}
		}
		for _, c := range media["content"] {
			if c.Attrs["medium"] == "image" {
				if u := c.Attrs["url"]; isHTTPURL(u) {
					return u
				}
			}
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

func isHTTPURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
