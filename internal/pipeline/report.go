package pipeline

import (
	"time"

	logx "couponwatch/pkg/logx"
)

// DeepOutcome is the result of fetching an entry's linked page.
type DeepOutcome int

const (
	DeepSkipped DeepOutcome = iota
	DeepFound
	DeepAbsent
	DeepFailed
)

func (o DeepOutcome) String() string {
	switch o {
	case DeepFound:
		return "found"
	case DeepAbsent:
		return "absent"
	case DeepFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Report counts what one pass did.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	SourcesOK     int
	SourcesFailed int

	EntriesExamined  int
	EntriesMalformed int
	// EntryErrors counts entries abandoned because of a panic.
	EntryErrors int

	SkippedSeen    int
	SkippedStale   int
	SkippedKeyword int
	Admitted       int

	CodesLabel int
	CodesShape int
	// CodesDeep counts codes found on the linked page rather than in the feed.
	CodesDeep int

	DeepFound  int
	DeepAbsent int
	DeepFailed int

	Notified       int
	Suppressed     int
	DeliveryFailed int
	Recorded       int
}

// Skipped is the number of entries rejected by the filter.
func (r Report) Skipped() int { return r.SkippedSeen + r.SkippedStale + r.SkippedKeyword }

func (r Report) fields() []logx.Field {
	return []logx.Field{
		logx.Duration("took", r.Duration),
		logx.Int("sources_ok", r.SourcesOK),
		logx.Int("sources_failed", r.SourcesFailed),
		logx.Int("examined", r.EntriesExamined),
		logx.Int("malformed", r.EntriesMalformed),
		logx.Int("skipped", r.Skipped()),
		logx.Int("admitted", r.Admitted),
		logx.Int("notified", r.Notified),
		logx.Int("suppressed", r.Suppressed),
		logx.Int("delivery_failed", r.DeliveryFailed),
		logx.Int("deep_scans", r.DeepFound+r.DeepAbsent+r.DeepFailed),
		logx.Int("recorded", r.Recorded),
	}
}
