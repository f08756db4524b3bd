package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "24h").
// Omitted fields fall back to the defaults in defaults.go.
type Config struct {
	Notify   NotifyConfig   `json:"notify"`
	Feeds    FeedsConfig    `json:"feeds"`
	Filter   FilterConfig   `json:"filter"`
	Extract  ExtractConfig  `json:"extract"`
	Dedupe   DedupeConfig   `json:"dedupe"`
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
}

// NotifyConfig selects the notification sink and dispatch pacing.
//
// Example:
//
//	"notify": { "sink": "discord", "discord": { "webhook_url": "https://discord.com/api/webhooks/..." } }
type NotifyConfig struct {
	// Sink is "discord" (default), "telegram" or "stdout".
	Sink     string         `json:"sink,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`

	// MinInterval is the minimum delay between two deliveries.
	MinInterval string `json:"min_interval,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	// RetryMax is the number of extra attempts after a retryable failure
	// (HTTP 429/5xx or a network error). Default 0: a failed delivery is not
	// retried within the pass.
	RetryMax *int `json:"retry_max,omitempty"`

	// StrongSignals are title terms that still warrant a "check the link"
	// alert when no code could be extracted.
	StrongSignals []string `json:"strong_signals,omitempty"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"` // secret: do not log
	Username   string `json:"username,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"` // secret: do not log
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type FeedsConfig struct {
	// DefaultLimit is how many of the most recent entries are examined per source.
	DefaultLimit int    `json:"default_limit,omitempty"`
	Timeout      string `json:"timeout,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`

	Sources []SourceConfig `json:"sources,omitempty"`
}

type SourceConfig struct {
	URL   string `json:"url"`
	Name  string `json:"name,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type FilterConfig struct {
	Keywords []string `json:"keywords,omitempty"`

	// FreshnessWindow drops entries published longer ago than this.
	// Use "0s" to disable the freshness gate.
	FreshnessWindow *string `json:"freshness_window,omitempty"`
	// RequireTimestamp rejects entries without a publish time
	// (default false: missing metadata must not suppress alerts).
	RequireTimestamp bool `json:"require_timestamp,omitempty"`
}

type ExtractConfig struct {
	// RequireMixed makes shape matches require both a letter and a digit.
	// Pointer so an explicit false can be told apart from "omitted".
	RequireMixed *bool `json:"require_mixed,omitempty"`
	// Stoplist extends the built-in list of false-positive tokens.
	Stoplist []string `json:"stoplist,omitempty"`

	DeepScan DeepScanConfig `json:"deep_scan"`
}

type DeepScanConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Delay    string `json:"delay,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	MaxBytes int64  `json:"max_bytes,omitempty"`
}

// DedupeConfig controls the persisted set of already notified links.
//
// Example:
//
//	"dedupe": { "driver": "sqlite", "path": "./state/seen.db", "capacity": 300 }
type DedupeConfig struct {
	// Driver is "file" (default), "sqlite" or "redis".
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	RedisURL    string `json:"redis_url,omitempty"` // secret: may carry a password
	RedisKey    string `json:"redis_key,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only

	Capacity int `json:"capacity,omitempty"`

	// RecordOnFailure marks entries as seen even when delivery failed.
	RecordOnFailure bool `json:"record_on_failure,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ScheduleConfig controls daemon mode.
//
// Spec accepts cron ("*/30 * * * *", "@hourly"), a Go duration ("30m")
// or HH:MM ("00:30").
type ScheduleConfig struct {
	Spec       string `json:"spec,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	RunOnStart *bool  `json:"run_on_start,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint (daemon only).
// Prefer binding to localhost (e.g. "127.0.0.1:9464").
type MetricsConfig struct {
	Addr  string `json:"addr,omitempty"`
	Token string `json:"token,omitempty"` // secret: do not log
	// Pprof mounts net/http/pprof under /debug/pprof/ (loopback or token only).
	Pprof bool `json:"pprof,omitempty"`
}
