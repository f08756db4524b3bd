package notifier

import (
	"time"

	"couponwatch/internal/transport"
)

// Message is the alert handed to sinks.
type Message = transport.Message

// Config controls delivery pacing and retries.
type Config struct {
	// MinInterval is the minimum spacing between two deliveries. 0 disables pacing.
	MinInterval time.Duration
	// Timeout bounds a single delivery attempt.
	Timeout       time.Duration
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// HistoryItem records one dispatch outcome.
type HistoryItem struct {
	At       time.Time
	ID       string
	Sink     string
	Title    string
	Link     string
	Severity transport.Severity
	Attempts int
	Error    string
}

// OK reports whether the dispatch was delivered.
func (h HistoryItem) OK() bool { return h.Error == "" }
