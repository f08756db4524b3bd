package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"couponwatch/internal/schedule"
	logx "couponwatch/pkg/logx"
)

var (
	// ErrMissingTarget is returned when no notification endpoint is configured.
	ErrMissingTarget = errors.New("notification target is not configured")
	ErrNoSources     = errors.New("feeds.sources is empty")
)

// Environment variables that override file values (secrets usually live here).
const (
	EnvWebhookURL     = "COUPONWATCH_WEBHOOK_URL"
	EnvDiscordWebhook = "DISCORD_WEBHOOK_URL"
	EnvTelegramToken  = "COUPONWATCH_TELEGRAM_TOKEN"
	EnvRedisURL       = "COUPONWATCH_REDIS_URL"
)

// Settings is the validated, defaulted view of Config used by the services.
type Settings struct {
	Notify   NotifySettings
	Feeds    FeedSettings
	Filter   FilterSettings
	Extract  ExtractSettings
	Dedupe   DedupeSettings
	Logging  logx.Config
	Schedule ScheduleSettings
	Metrics  MetricsConfig
}

type NotifySettings struct {
	Sink          string
	Discord       DiscordConfig
	Telegram      TelegramConfig
	MinInterval   time.Duration
	Timeout       time.Duration
	RetryMax      int
	StrongSignals []string
}

type FeedSettings struct {
	Sources      []SourceConfig
	DefaultLimit int
	Timeout      time.Duration
	UserAgent    string
}

type FilterSettings struct {
	Keywords         []string
	FreshnessWindow  time.Duration
	RequireTimestamp bool
}

type ExtractSettings struct {
	RequireMixed     bool
	Stoplist         []string
	DeepScan         bool
	DeepScanDelay    time.Duration
	DeepScanTimeout  time.Duration
	DeepScanMaxBytes int64
}

type DedupeSettings struct {
	Driver          string
	Path            string
	RedisURL        string
	RedisKey        string
	BusyTimeout     time.Duration
	Capacity        int
	RecordOnFailure bool
}

type ScheduleSettings struct {
	Spec       string
	Timezone   string
	RunOnStart bool
}

// ApplyEnv copies environment overrides into cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, k := range []string{EnvWebhookURL, EnvDiscordWebhook} {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			cfg.Notify.Discord.WebhookURL = v
			break
		}
	}
	if v := strings.TrimSpace(getenv(EnvTelegramToken)); v != "" {
		cfg.Notify.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvRedisURL)); v != "" {
		cfg.Dedupe.RedisURL = v
	}
}

// Resolve applies defaults and validates cfg.
//
// A missing notification target yields ErrMissingTarget so callers can exit
// before any network activity.
func (cfg *Config) Resolve() (Settings, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var s Settings
	var err error

	// ---- notify ----
	n := &s.Notify
	n.Sink = strings.ToLower(strings.TrimSpace(cfg.Notify.Sink))
	if n.Sink == "" {
		n.Sink = SinkDiscord
	}
	n.Discord = cfg.Notify.Discord
	n.Telegram = cfg.Notify.Telegram
	switch n.Sink {
	case SinkDiscord:
		raw := strings.TrimSpace(n.Discord.WebhookURL)
		if raw == "" {
			return Settings{}, fmt.Errorf("notify.discord.webhook_url: %w", ErrMissingTarget)
		}
		u, perr := url.Parse(raw)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Settings{}, fmt.Errorf("notify.discord.webhook_url: must be an http(s) URL")
		}
	case SinkTelegram:
		if strings.TrimSpace(n.Telegram.Token) == "" || n.Telegram.ChatID == 0 {
			return Settings{}, fmt.Errorf("notify.telegram.token/chat_id: %w", ErrMissingTarget)
		}
	case SinkStdout:
	default:
		return Settings{}, fmt.Errorf("notify.sink: unknown sink %q", cfg.Notify.Sink)
	}
	if n.MinInterval, err = ParseDurationOrDefault("notify.min_interval", cfg.Notify.MinInterval, DefaultMinInterval); err != nil {
		return Settings{}, err
	}
	if n.Timeout, err = ParseDurationOrDefault("notify.timeout", cfg.Notify.Timeout, DefaultNotifyTimeout); err != nil {
		return Settings{}, err
	}
	n.RetryMax = DefaultRetryMax
	if cfg.Notify.RetryMax != nil {
		if *cfg.Notify.RetryMax < 0 {
			return Settings{}, fmt.Errorf("notify.retry_max: must be >= 0")
		}
		n.RetryMax = *cfg.Notify.RetryMax
	}
	n.StrongSignals = nonEmpty(cfg.Notify.StrongSignals)
	if cfg.Notify.StrongSignals == nil {
		n.StrongSignals = append([]string(nil), DefaultStrongSignals...)
	}

	// ---- feeds ----
	f := &s.Feeds
	if cfg.Feeds.DefaultLimit < 0 {
		return Settings{}, fmt.Errorf("feeds.default_limit: must be >= 0")
	}
	f.DefaultLimit = cfg.Feeds.DefaultLimit
	if f.DefaultLimit == 0 {
		f.DefaultLimit = DefaultEntryLimit
	}
	if f.Timeout, err = ParseDurationOrDefault("feeds.timeout", cfg.Feeds.Timeout, DefaultFeedTimeout); err != nil {
		return Settings{}, err
	}
	f.UserAgent = strings.TrimSpace(cfg.Feeds.UserAgent)
	if f.UserAgent == "" {
		f.UserAgent = DefaultUserAgent
	}
	sources := cfg.Feeds.Sources
	if sources == nil {
		sources = DefaultSources
	}
	for i, src := range sources {
		src.URL = strings.TrimSpace(src.URL)
		src.Name = strings.TrimSpace(src.Name)
		if src.URL == "" {
			return Settings{}, fmt.Errorf("feeds.sources[%d].url: required", i)
		}
		if src.Limit < 0 {
			return Settings{}, fmt.Errorf("feeds.sources[%d].limit: must be >= 0", i)
		}
		f.Sources = append(f.Sources, src)
	}
	if len(f.Sources) == 0 {
		return Settings{}, ErrNoSources
	}

	// ---- filter ----
	fl := &s.Filter
	fl.Keywords = nonEmpty(cfg.Filter.Keywords)
	if cfg.Filter.Keywords == nil {
		fl.Keywords = append([]string(nil), DefaultKeywords...)
	}
	fl.FreshnessWindow = DefaultFreshnessWindow
	if cfg.Filter.FreshnessWindow != nil {
		if fl.FreshnessWindow, err = ParseDurationField("filter.freshness_window", *cfg.Filter.FreshnessWindow); err != nil {
			return Settings{}, err
		}
	}
	fl.RequireTimestamp = cfg.Filter.RequireTimestamp

	// ---- extract ----
	ex := &s.Extract
	ex.RequireMixed = boolOr(cfg.Extract.RequireMixed, true)
	ex.Stoplist = nonEmpty(cfg.Extract.Stoplist)
	ex.DeepScan = boolOr(cfg.Extract.DeepScan.Enabled, true)
	if ex.DeepScanDelay, err = ParseDurationOrDefault("extract.deep_scan.delay", cfg.Extract.DeepScan.Delay, DefaultDeepScanDelay); err != nil {
		return Settings{}, err
	}
	if ex.DeepScanTimeout, err = ParseDurationOrDefault("extract.deep_scan.timeout", cfg.Extract.DeepScan.Timeout, DefaultDeepScanTimeout); err != nil {
		return Settings{}, err
	}
	if cfg.Extract.DeepScan.MaxBytes < 0 {
		return Settings{}, fmt.Errorf("extract.deep_scan.max_bytes: must be >= 0")
	}
	ex.DeepScanMaxBytes = cfg.Extract.DeepScan.MaxBytes
	if ex.DeepScanMaxBytes == 0 {
		ex.DeepScanMaxBytes = DefaultDeepScanBytes
	}

	// ---- dedupe ----
	d := &s.Dedupe
	d.Driver = strings.ToLower(strings.TrimSpace(cfg.Dedupe.Driver))
	if d.Driver == "" {
		d.Driver = DriverFile
	}
	d.Path = strings.TrimSpace(cfg.Dedupe.Path)
	d.RedisURL = strings.TrimSpace(cfg.Dedupe.RedisURL)
	d.RedisKey = strings.TrimSpace(cfg.Dedupe.RedisKey)
	switch d.Driver {
	case DriverFile:
		if d.Path == "" {
			d.Path = DefaultStorePath
		}
	case DriverSQLite, "sqlite3":
		d.Driver = DriverSQLite
		if d.Path == "" {
			return Settings{}, fmt.Errorf("dedupe.path is required when dedupe.driver=sqlite")
		}
		if d.BusyTimeout, err = ParseDurationOrDefault("dedupe.busy_timeout", cfg.Dedupe.BusyTimeout, time.Second); err != nil {
			return Settings{}, err
		}
	case DriverRedis:
		if d.RedisURL == "" {
			return Settings{}, fmt.Errorf("dedupe.redis_url is required when dedupe.driver=redis")
		}
		if d.RedisKey == "" {
			d.RedisKey = DefaultRedisKey
		}
	default:
		return Settings{}, fmt.Errorf("dedupe.driver: unknown driver %q", cfg.Dedupe.Driver)
	}
	if cfg.Dedupe.Capacity < 0 {
		return Settings{}, fmt.Errorf("dedupe.capacity: must be >= 1")
	}
	d.Capacity = cfg.Dedupe.Capacity
	if d.Capacity == 0 {
		d.Capacity = DefaultCapacity
	}
	d.RecordOnFailure = cfg.Dedupe.RecordOnFailure

	// ---- logging ----
	s.Logging = logx.Config{
		Level:   cfg.Logging.Level,
		Console: boolOr(cfg.Logging.Console, true),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}

	// ---- schedule ----
	s.Schedule = ScheduleSettings{
		Spec:       strings.TrimSpace(cfg.Schedule.Spec),
		Timezone:   strings.TrimSpace(cfg.Schedule.Timezone),
		RunOnStart: boolOr(cfg.Schedule.RunOnStart, true),
	}
	if s.Schedule.Spec == "" {
		s.Schedule.Spec = DefaultSchedule
	}
	if _, err := schedule.Parse(s.Schedule.Spec); err != nil {
		return Settings{}, fmt.Errorf("schedule.spec: %w", err)
	}
	if s.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(s.Schedule.Timezone); err != nil {
			return Settings{}, fmt.Errorf("schedule.timezone: %w", err)
		}
	}

	s.Metrics = MetricsConfig{
		Addr:  strings.TrimSpace(cfg.Metrics.Addr),
		Token: strings.TrimSpace(cfg.Metrics.Token),
		Pprof: cfg.Metrics.Pprof,
	}
	return s, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
