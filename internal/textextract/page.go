package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrStatus wraps non-2xx page responses.
	ErrStatus = errors.New("unexpected http status")
	// ErrNotHTML is returned for pages that are not HTML or plain text.
	ErrNotHTML = errors.New("page is not html")
)

const (
	defaultPageTimeout = 15 * time.Second
	defaultMaxBytes    = 2 << 20
)

// Page is the text of one fetched article.
type Page struct {
	URL  string
	Text string
}

// PageFetcher fetches a linked page and returns its main text.
type PageFetcher interface {
	FetchText(ctx context.Context, link string) (Page, error)
}

type ReadabilityOptions struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	Client    *http.Client
}

// ReadabilityFetcher downloads a page and extracts its main content with
// go-readability, falling back to whole-document text when readability
// finds nothing.
type ReadabilityFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewReadabilityFetcher(opts ReadabilityOptions) *ReadabilityFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultPageTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &ReadabilityFetcher{client: client, userAgent: opts.UserAgent, maxBytes: maxBytes}
}

func (f *ReadabilityFetcher) FetchText(ctx context.Context, link string) (Page, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return Page{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Page{}, fmt.Errorf("page url %q: scheme must be http or https", link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Page{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	kind := contentKind(resp.Header.Get("Content-Type"))
	if kind == "" {
		return Page{}, fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Page{}, err
	}
	if kind == "text" {
		return Page{URL: u.String(), Text: normalizeWhitespace(string(body))}, nil
	}
	return Page{URL: u.String(), Text: mainText(body, u)}, nil
}

// contentKind maps a Content-Type to "html", "text" or "" (unsupported).
// A missing header is treated as html.
func contentKind(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "html"
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch {
	case mt == "text/html" || mt == "application/xhtml+xml":
		return "html"
	case mt == "text/plain":
		return "text"
	default:
		return ""
	}
}

func mainText(body []byte, u *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err == nil {
		var buf strings.Builder
		if err := article.RenderText(&buf); err == nil {
			if text := normalizeWhitespace(buf.String()); text != "" {
				return text
			}
		}
	}
	doc, err := goquery.NewDocumentFromReader(structure.SanitizeReader(bytes.NewReader(body)))
	if err != nil {
		return StripTags(string(body))
	}
	return documentText(doc)
}
