package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"couponwatch/internal/config"
	"couponwatch/internal/dedupe"
	"couponwatch/internal/extract"
	"couponwatch/internal/feed"
	"couponwatch/internal/filter"
	"couponwatch/internal/notifier"
	"couponwatch/internal/pipeline"
	"couponwatch/internal/textextract"
	"couponwatch/internal/transport"
	"couponwatch/internal/transport/discord"
	"couponwatch/internal/transport/telegram"
	logx "couponwatch/pkg/logx"
)

func newSink(n config.NotifySettings, opts Options, log logx.Logger) (transport.Sink, error) {
	if opts.DryRun || n.Sink == config.SinkStdout {
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		return transport.NewWriterSink(w), nil
	}
	switch n.Sink {
	case config.SinkDiscord:
		return discord.New(discord.Config{
			WebhookURL: n.Discord.WebhookURL,
			Username:   n.Discord.Username,
			AvatarURL:  n.Discord.AvatarURL,
			Client:     opts.HTTPClient,
		})
	case config.SinkTelegram:
		return telegram.New(telegram.Config{
			Token:    n.Telegram.Token,
			ChatID:   n.Telegram.ChatID,
			ThreadID: n.Telegram.ThreadID,
			Client:   opts.HTTPClient,
		}, log.With(logx.String("comp", "telegram")))
	default:
		return nil, fmt.Errorf("unknown sink %q", n.Sink)
	}
}

func mapNotifierConfig(n config.NotifySettings) notifier.Config {
	return notifier.Config{
		MinInterval: n.MinInterval,
		Timeout:     n.Timeout,
		RetryMax:    n.RetryMax,
	}
}

func mapSources(f config.FeedSettings) []feed.Source {
	out := make([]feed.Source, 0, len(f.Sources))
	for _, s := range f.Sources {
		out = append(out, feed.Source{URL: s.URL, Name: s.Name, Limit: s.Limit})
	}
	return out
}

func newFetcher(s config.Settings, client *http.Client) feed.Fetcher {
	return feed.NewGofeedFetcher(feed.GofeedOptions{
		Timeout:   s.Feeds.Timeout,
		UserAgent: s.Feeds.UserAgent,
		Client:    client,
	})
}

// buildRunner assembles one pass from resolved settings.
func (a *App) buildRunner(s config.Settings) (*pipeline.Runner, error) {
	var pages textextract.PageFetcher
	if s.Extract.DeepScan {
		pages = textextract.NewReadabilityFetcher(textextract.ReadabilityOptions{
			Timeout:   s.Extract.DeepScanTimeout,
			UserAgent: s.Feeds.UserAgent,
			MaxBytes:  s.Extract.DeepScanMaxBytes,
			Client:    a.opts.HTTPClient,
		})
	}
	storeOpts := dedupe.Options{Capacity: s.Dedupe.Capacity, ReadOnly: a.opts.DryRun}
	storeLog := a.log.With(logx.String("comp", "dedupe"))

	return pipeline.New(pipeline.Options{
		Sources:      mapSources(s.Feeds),
		DefaultLimit: s.Feeds.DefaultLimit,
		Fetcher:      newFetcher(s, a.opts.HTTPClient),
		Filter: filter.New(filter.Options{
			Keywords:         s.Filter.Keywords,
			Window:           s.Filter.FreshnessWindow,
			RequireTimestamp: s.Filter.RequireTimestamp,
		}),
		Extractor: extract.New(extract.Options{
			RequireMixed: s.Extract.RequireMixed,
			Stoplist:     s.Extract.Stoplist,
		}),
		Pages:           pages,
		DeepScanDelay:   s.Extract.DeepScanDelay,
		DeepScanTimeout: s.Extract.DeepScanTimeout,
		Formatter:       notifier.NewFormatter(s.Notify.StrongSignals),
		Notifier:        a.disp,
		LoadStore: func(ctx context.Context) (*dedupe.Store, error) {
			return dedupe.Load(ctx, a.backend, storeOpts, storeLog)
		},
		RecordOnFailure: s.Dedupe.RecordOnFailure,
	}, a.log.With(logx.String("comp", "pipeline")))
}
