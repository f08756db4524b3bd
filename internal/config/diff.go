package config

import (
	"reflect"
	"strings"

	logx "couponwatch/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured fields for logging. Secrets (webhook URL, bot token, redis URL)
// are never included, only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.String("notify.sink", newCfg.Notify.Sink),
			logx.Bool("notify.webhook_set", strings.TrimSpace(newCfg.Notify.Discord.WebhookURL) != ""),
			logx.Bool("notify.token_set", strings.TrimSpace(newCfg.Notify.Telegram.Token) != ""),
			logx.String("notify.min_interval", newCfg.Notify.MinInterval),
		)
	}
	if !reflect.DeepEqual(oldCfg.Feeds, newCfg.Feeds) {
		changed = append(changed, "feeds")
		attrs = append(attrs,
			logx.Int("feeds.sources", len(newCfg.Feeds.Sources)),
			logx.Int("feeds.default_limit", newCfg.Feeds.DefaultLimit),
		)
	}
	if !reflect.DeepEqual(oldCfg.Filter, newCfg.Filter) {
		changed = append(changed, "filter")
		attrs = append(attrs, logx.Int("filter.keywords", len(newCfg.Filter.Keywords)))
	}
	if !reflect.DeepEqual(oldCfg.Extract, newCfg.Extract) {
		changed = append(changed, "extract")
	}
	if !reflect.DeepEqual(oldCfg.Dedupe, newCfg.Dedupe) {
		changed = append(changed, "dedupe")
		attrs = append(attrs,
			logx.String("dedupe.driver", newCfg.Dedupe.Driver),
			logx.Int("dedupe.capacity", newCfg.Dedupe.Capacity),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs, logx.String("logging.level", newCfg.Logging.Level))
	}
	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule.spec", newCfg.Schedule.Spec))
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	return changed, attrs
}
