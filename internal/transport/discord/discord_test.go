package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"couponwatch/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsEmbed(t *testing.T) {
	t.Parallel()
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := New(Config{WebhookURL: srv.URL + "/api/webhooks/1/abc", Username: "couponwatch"})
	require.NoError(t, err)

	err = s.Send(context.Background(), transport.Message{
		Title:    "期間限定クーポン配布中",
		Body:     "ABC123",
		HasCode:  true,
		Link:     "https://gadget.example/a/1",
		Source:   "ガジェット速報",
		ImageURL: "https://gadget.example/img/1.jpg",
		Severity: transport.SeverityHigh,
	})
	require.NoError(t, err)

	var got struct {
		Content  string `json:"content"`
		Username string `json:"username"`
		Embeds   []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Color       int    `json:"color"`
			Footer      struct {
				Text string `json:"text"`
			} `json:"footer"`
			Thumbnail struct {
				URL string `json:"url"`
			} `json:"thumbnail"`
		} `json:"embeds"`
		AllowedMentions struct {
			Parse []string `json:"parse"`
		} `json:"allowed_mentions"`
	}
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, "**ガジェット速報** で情報を検知！", got.Content)
	assert.Equal(t, "couponwatch", got.Username)
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "期間限定クーポン配布中", e.Title)
	assert.Equal(t, "https://gadget.example/a/1", e.URL)
	assert.Equal(t, "コード: ```ABC123```", e.Description)
	assert.Equal(t, ColorHigh, e.Color)
	assert.Equal(t, "ガジェット速報", e.Footer.Text)
	assert.Equal(t, "https://gadget.example/img/1.jpg", e.Thumbnail.URL)
	assert.NotNil(t, got.AllowedMentions.Parse)
	assert.Empty(t, got.AllowedMentions.Parse)
}

func TestPayloadLowSeverity(t *testing.T) {
	t.Parallel()
	s, err := New(Config{WebhookURL: "https://discord.example/api/webhooks/1/abc"})
	require.NoError(t, err)

	b, err := s.Payload(transport.Message{
		Title:    strings.Repeat("半", 300),
		Body:     "コード記載なし/リンク先確認",
		Link:     "https://a.example/1",
		Severity: transport.SeverityLow,
	})
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal(b, &got))
	e := got.Embeds[0]
	assert.Equal(t, ColorLow, e.Color)
	assert.Equal(t, "コード記載なし/リンク先確認", e.Description)
	assert.Equal(t, maxTitle, len([]rune(e.Title)))
	assert.Nil(t, e.Footer)
	assert.Nil(t, e.Thumbnail)
	assert.Equal(t, "**News** で情報を検知！", got.Content)
}

func TestSendStatusErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/limited") {
			w.Header().Set("Retry-After", "1.5")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message": "You are being rate limited."}`))
			return
		}
		http.Error(w, `{"message": "Unknown Webhook"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	msg := transport.Message{Title: "t", Body: "b", Severity: transport.SeverityLow}

	s, _ := New(Config{WebhookURL: srv.URL + "/limited"})
	err := s.Send(context.Background(), msg)
	var se *transport.StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, 1500*time.Millisecond, se.RetryAfter)

	s, _ = New(Config{WebhookURL: srv.URL + "/gone"})
	err = s.Send(context.Background(), msg)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Error(), "Unknown Webhook")
}

func TestSendHidesWebhookURL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	secret := srv.URL + "/api/webhooks/1/very-secret-token"
	srv.Close()

	s, err := New(Config{WebhookURL: secret})
	require.NoError(t, err)
	err = s.Send(context.Background(), transport.Message{Title: "t"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret-token")
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()
	_, err := New(Config{})
	assert.Error(t, err)
}
