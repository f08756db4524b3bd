package textextract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{name: "inline tags", markup: `<p>コード: <b>ABC123</b> を入力</p>`, want: "コード: ABC123 を入力"},
		{name: "blocks do not glue", markup: `<div>SAVE</div><div>NOW</div>`, want: "SAVE NOW"},
		{name: "line breaks", markup: `クーポン<br>XMAS25<br/>配布`, want: "クーポン XMAS25 配布"},
		{name: "script dropped", markup: `<p>本文</p><script>var code = "EVIL123";</script><style>.x{}</style>`, want: "本文"},
		{name: "entities", markup: `<p>A &amp; B &lt;C&gt;</p>`, want: "A & B <C>"},
		{name: "plain text", markup: "半額　セール &amp; more", want: "半額 セール & more"},
		{name: "empty", markup: "  ", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTML{}.Text(tt.markup))
		})
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "コード: ABC123", StripTags(`<span>コード:</span> <i>ABC123</i>`))
}

const articlePage = `<!DOCTYPE html>
<html><head><title>限定クーポンのお知らせ</title><script>var tracking = "TRACK999";</script></head>
<body>
<nav><a href="/">Home</a> <a href="/news">News</a></nav>
<article>
<h1>限定クーポンのお知らせ</h1>
<p>いつもご利用いただきありがとうございます。本日より期間限定で、すべての商品に使える特別なクーポンを配布いたします。ご購入手続きの画面でクーポンコードを入力してください。</p>
<p>クーポンコード: WELCOME2025X を入力すると、ご注文金額から10%割引となります。お一人様一回限り有効です。なお、他のキャンペーンとの併用はできませんのでご注意ください。</p>
<p>配布期間は今月末までとなっております。在庫がなくなり次第終了となる場合がございますので、お早めにご利用ください。詳細は公式サイトのよくある質問ページをご確認ください。</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestReadabilityFetcher(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(articlePage))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("code: PLAIN123 " + strings.Repeat("x", 100)))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewReadabilityFetcher(ReadabilityOptions{Client: srv.Client(), UserAgent: "couponwatch-test"})

	page, err := f.FetchText(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Contains(t, page.Text, "WELCOME2025X")
	assert.NotContains(t, page.Text, "TRACK999")

	_, err = f.FetchText(context.Background(), srv.URL+"/missing")
	assert.True(t, errors.Is(err, ErrStatus), "got %v", err)

	_, err = f.FetchText(context.Background(), srv.URL+"/image")
	assert.True(t, errors.Is(err, ErrNotHTML), "got %v", err)

	_, err = f.FetchText(context.Background(), "mailto:someone@example.com")
	assert.Error(t, err)
}

func TestReadabilityFetcherMaxBytes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("code: PLAIN123 " + strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := NewReadabilityFetcher(ReadabilityOptions{Client: srv.Client(), MaxBytes: 14})
	page, err := f.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "code: PLAIN123", page.Text)
}

func TestFetchTextCancelled(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReadabilityFetcher(ReadabilityOptions{Client: srv.Client()}).FetchText(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
