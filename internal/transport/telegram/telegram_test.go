package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"couponwatch/internal/transport"
	logx "couponwatch/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()
	got := Render(transport.Message{
		Title:    "<半額> セール & クーポン",
		Body:     "ABC123",
		HasCode:  true,
		Link:     "https://a.example/1?x=1&y=2",
		Source:   "PR TIMES",
		Severity: transport.SeverityHigh,
	})
	want := "<b>PR TIMES</b> で情報を検知！\n" +
		"商品: &lt;半額&gt; セール &amp; クーポン\n" +
		"コード: <code>ABC123</code>\n" +
		"⬇️ <a href=\"https://a.example/1?x=1&amp;y=2\">参照リンク</a>"
	assert.Equal(t, want, got)

	got = Render(transport.Message{Title: "無料配布", Body: "コード記載なし/リンク先確認"})
	assert.True(t, strings.HasPrefix(got, "<b>News</b>"))
	assert.Contains(t, got, "\nコード記載なし/リンク先確認")
	assert.NotContains(t, got, "<code>")
}

func TestSend(t *testing.T) {
	t.Parallel()
	reqs := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bot123:abc/sendMessage") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		var params map[string]any
		_ = json.Unmarshal(b, &params)
		reqs <- params
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", ChatID: 42, APIURL: srv.URL, Client: srv.Client()}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "telegram", s.Name())

	err = s.Send(context.Background(), transport.Message{Title: "t", Body: "ABC123", HasCode: true, Severity: transport.SeverityHigh})
	require.NoError(t, err)

	params := <-reqs
	assert.EqualValues(t, "42", params["chat_id"])
	assert.EqualValues(t, "HTML", params["parse_mode"])
	assert.Contains(t, params["text"], "<code>ABC123</code>")
}

func TestSendAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", ChatID: 42, APIURL: srv.URL, Client: srv.Client()}, logx.Nop())
	require.NoError(t, err)
	assert.Error(t, s.Send(context.Background(), transport.Message{Title: "t"}))
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(Config{ChatID: 1}, logx.Nop())
	assert.Error(t, err)
	_, err = New(Config{Token: "123:abc"}, logx.Nop())
	assert.Error(t, err)
}
