package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>ガジェット速報</title>
  <link>https://gadget.example/</link>
  <description>test</description>
  <item>
    <title>期間限定クーポン配布中</title>
    <link>https://gadget.example/a/1</link>
    <description><![CDATA[<p>コード: <b>ABC123</b></p>]]></description>
    <content:encoded><![CDATA[<div>本文 コード: ABC123</div>]]></content:encoded>
    <pubDate>Sat, 01 Mar 2025 10:00:00 +0900</pubDate>
    <enclosure url="https://gadget.example/img/1.jpg" type="image/jpeg" length="100"/>
  </item>
  <item>
    <title>リンクのない記事</title>
    <description>no link here</description>
  </item>
  <item>
    <title>GUIDだけの記事</title>
    <guid isPermaLink="true">https://gadget.example/a/3</guid>
    <media:thumbnail url="https://gadget.example/img/3.png"/>
  </item>
  <item>
    <link>https://gadget.example/a/4</link>
    <description>no title</description>
  </item>
</channel>
</rss>`

func TestGofeedFetcher(t *testing.T) {
	t.Parallel()
	uaCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case uaCh <- r.Header.Get("User-Agent"):
		default:
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	f := NewGofeedFetcher(GofeedOptions{Timeout: 5 * time.Second, UserAgent: "couponwatch-test"})
	got, err := f.Fetch(context.Background(), Source{URL: srv.URL + "/feed"})
	require.NoError(t, err)

	assert.Equal(t, "couponwatch-test", <-uaCh)
	assert.Equal(t, "ガジェット速報", got.Title)
	require.Len(t, got.Entries, 2)

	first := got.Entries[0]
	assert.Equal(t, "https://gadget.example/a/1", first.Link)
	assert.Equal(t, "期間限定クーポン配布中", first.Title)
	assert.Contains(t, first.Summary, "ABC123")
	assert.Contains(t, first.Content, "本文")
	assert.Equal(t, "https://gadget.example/img/1.jpg", first.ImageURL)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC)))

	second := got.Entries[1]
	assert.Equal(t, "https://gadget.example/a/3", second.Link)
	assert.Equal(t, "https://gadget.example/img/3.png", second.ImageURL)
	assert.Nil(t, second.PublishedAt)

	require.Len(t, got.Rejected, 2)
	for _, err := range got.Rejected {
		assert.True(t, errors.Is(err, ErrMalformedEntry), "%v", err)
	}
}

func TestGofeedFetcherErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte("<html><body>not a feed</body></html>"))
		}
	}))
	defer srv.Close()

	f := NewGofeedFetcher(GofeedOptions{Client: srv.Client()})
	_, err := f.Fetch(context.Background(), Source{URL: srv.URL + "/down"})
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), Source{URL: srv.URL + "/html"})
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), Source{URL: "ftp://files.example/feed"})
	assert.Error(t, err)
}

func TestFeedHead(t *testing.T) {
	t.Parallel()
	f := Feed{Entries: []Entry{{Link: "1"}, {Link: "2"}, {Link: "3"}}}
	assert.Len(t, f.Head(2), 2)
	assert.Len(t, f.Head(0), 3)
	assert.Len(t, f.Head(10), 3)
	assert.Equal(t, "1", f.Head(1)[0].Link)
}
