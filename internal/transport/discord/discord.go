// Package discord delivers alerts to a Discord channel webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"couponwatch/internal/transport"
)

const (
	ColorHigh = 0xE74C3C // red
	ColorLow  = 0xF1C40F // amber

	// Discord embed limits.
	maxTitle       = 256
	maxDescription = 4096
	maxFooter      = 2048

	defaultTimeout = 10 * time.Second
)

type Config struct {
	WebhookURL string
	Username   string
	AvatarURL  string
	Client     *http.Client
}

// Sink posts one embed per message.
type Sink struct {
	url       string
	username  string
	avatarURL string
	client    *http.Client
}

func New(cfg Config) (*Sink, error) {
	u := strings.TrimSpace(cfg.WebhookURL)
	if u == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Sink{url: u, username: cfg.Username, avatarURL: cfg.AvatarURL, client: client}, nil
}

func (s *Sink) Name() string { return "discord" }

type payload struct {
	Content         string          `json:"content,omitempty"`
	Username        string          `json:"username,omitempty"`
	AvatarURL       string          `json:"avatar_url,omitempty"`
	Embeds          []embed         `json:"embeds"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type embed struct {
	Title       string      `json:"title,omitempty"`
	URL         string      `json:"url,omitempty"`
	Description string      `json:"description,omitempty"`
	Color       int         `json:"color"`
	Footer      *footer     `json:"footer,omitempty"`
	Thumbnail   *embedImage `json:"thumbnail,omitempty"`
}

type footer struct {
	Text string `json:"text"`
}

type embedImage struct {
	URL string `json:"url"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

// Payload builds the webhook body for m.
func (s *Sink) Payload(m transport.Message) ([]byte, error) {
	e := embed{
		Title: truncate(m.Title, maxTitle),
		URL:   m.Link,
		Color: ColorLow,
	}
	if m.Severity == transport.SeverityHigh {
		e.Color = ColorHigh
	}
	if m.HasCode {
		e.Description = "コード: ```" + m.Body + "```"
	} else {
		e.Description = m.Body
	}
	e.Description = truncate(e.Description, maxDescription)
	if src := strings.TrimSpace(m.Source); src != "" {
		e.Footer = &footer{Text: truncate(src, maxFooter)}
	}
	if m.ImageURL != "" {
		e.Thumbnail = &embedImage{URL: m.ImageURL}
	}
	return json.Marshal(payload{
		Content:         transport.Headline(m),
		Username:        s.username,
		AvatarURL:       s.avatarURL,
		Embeds:          []embed{e},
		AllowedMentions: allowedMentions{Parse: []string{}},
	})
}

func (s *Sink) Send(ctx context.Context, m transport.Message) error {
	body, err := s.Payload(m)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// the webhook URL is a secret; *url.Error would print it
		return fmt.Errorf("discord webhook: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	se := &transport.StatusError{
		Sink:       s.Name(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		se.RetryAfter = retryAfter(resp.Header.Get("Retry-After"))
	}
	return se
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

// retryAfter parses Retry-After seconds (Discord may send fractions).
func retryAfter(v string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
