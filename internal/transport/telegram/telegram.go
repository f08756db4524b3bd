// Package telegram delivers alerts as HTML messages through a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"couponwatch/internal/transport"
	logx "couponwatch/pkg/logx"
)

const (
	defaultTimeout = 10 * time.Second
	// keeps the rendered message well under the 4096 char limit
	maxFieldRunes = 1024
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides the Bot API endpoint (tests, local Bot API servers).
	APIURL string
	Client *http.Client
}

// Sink is send-only: it never polls for updates.
type Sink struct {
	bot    *tele.Bot
	chat   *tele.Chat
	thread int
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Client:  client,
		Offline: true, // no getMe round trip at startup
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, thread: cfg.ThreadID, log: log}, nil
}

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) Send(ctx context.Context, m transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: m.ImageURL == "",
		ThreadID:              s.thread,
	}
	msg, err := s.bot.Send(s.chat, Render(m), opts)
	if err != nil {
		return err
	}
	s.log.Trace("telegram message sent", logx.Int("message_id", msg.ID))
	return nil
}

// Render formats m as Telegram HTML.
func Render(m transport.Message) string {
	src := strings.TrimSpace(m.Source)
	if src == "" {
		src = "News"
	}
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(src))
	b.WriteString("</b> で情報を検知！\n商品: ")
	b.WriteString(html.EscapeString(truncateRunes(m.Title, maxFieldRunes)))
	b.WriteString("\n")
	if m.HasCode {
		b.WriteString("コード: <code>")
		b.WriteString(html.EscapeString(truncateRunes(m.Body, maxFieldRunes)))
		b.WriteString("</code>")
	} else {
		b.WriteString(html.EscapeString(truncateRunes(m.Body, maxFieldRunes)))
	}
	if m.Link != "" {
		b.WriteString("\n⬇️ <a href=\"")
		b.WriteString(html.EscapeString(m.Link))
		b.WriteString("\">参照リンク</a>")
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
