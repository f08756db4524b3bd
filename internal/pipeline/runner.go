// Package pipeline runs one polling pass: fetch every source, filter the
// entries, extract codes, format and dispatch alerts, and record what was
// handled in the dedupe store.
//
// A pass is sequential. Failures are isolated per source and per entry; the
// only fatal error is a dedupe store that cannot be loaded (no alert is sent
// without knowing what was already sent) or saved.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"couponwatch/internal/dedupe"
	"couponwatch/internal/extract"
	"couponwatch/internal/feed"
	"couponwatch/internal/filter"
	"couponwatch/internal/notifier"
	"couponwatch/internal/textextract"
	logx "couponwatch/pkg/logx"
)

// DefaultSourceLabel names alerts whose source has neither a configured name
// nor a feed title.
const DefaultSourceLabel = "News"

const (
	defaultEntryLimit   = 10
	defaultFlushTimeout = 10 * time.Second
)

// Notifier delivers one alert.
type Notifier interface {
	Dispatch(ctx context.Context, m notifier.Message) error
}

// StoreLoader opens the dedupe store for one pass.
type StoreLoader func(ctx context.Context) (*dedupe.Store, error)

type Options struct {
	Sources      []feed.Source
	DefaultLimit int

	Fetcher   feed.Fetcher
	Filter    *filter.Filter
	Extractor *extract.Extractor
	// Text reduces summary/content markup. Defaults to textextract.HTML.
	Text textextract.Extractor

	// Pages enables the deep scan when non-nil.
	Pages           textextract.PageFetcher
	DeepScanDelay   time.Duration
	DeepScanTimeout time.Duration

	Formatter *notifier.Formatter
	Notifier  Notifier

	LoadStore StoreLoader
	// RecordOnFailure records entries whose delivery failed, so they are
	// never retried.
	RecordOnFailure bool
	FlushTimeout    time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes passes. A Runner holds no per-pass state, but passes must
// not overlap when they share a store.
type Runner struct {
	opts Options
	log  logx.Logger
}

func New(opts Options, log logx.Logger) (*Runner, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch {
	case opts.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case opts.Filter == nil:
		return nil, errors.New("pipeline: filter is required")
	case opts.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case opts.Formatter == nil:
		return nil, errors.New("pipeline: formatter is required")
	case opts.Notifier == nil:
		return nil, errors.New("pipeline: notifier is required")
	case opts.LoadStore == nil:
		return nil, errors.New("pipeline: store loader is required")
	}
	if opts.Text == nil {
		opts.Text = textextract.HTML{}
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultEntryLimit
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultFlushTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts, log: log}, nil
}

// Run performs one pass. The report is filled in even when an error is
// returned. A cancelled ctx stops the pass early but the store is still
// flushed, and ctx's error is returned.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString(), StartedAt: r.opts.Now()}
	log := r.log.With(logx.String("run_id", rep.RunID))
	start := time.Now()

	store, err := r.opts.LoadStore(ctx)
	if err != nil {
		rep.Duration = time.Since(start)
		log.Error("pass aborted", logx.Err(err))
		return rep, err
	}
	log.Debug("pass started", logx.Int("sources", len(r.opts.Sources)), logx.Int("known_links", store.Len()))

	for _, src := range r.opts.Sources {
		if ctx.Err() != nil {
			break
		}
		r.runSource(ctx, log, &rep, store, src)
	}

	rep.Recorded = store.Added()
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FlushTimeout)
	flushErr := store.Flush(fctx)
	cancel()

	rep.Duration = time.Since(start)
	if flushErr != nil {
		log.Error("pass finished, store not saved", append(rep.fields(), logx.Err(flushErr))...)
		return rep, flushErr
	}
	if err := ctx.Err(); err != nil {
		log.Warn("pass interrupted", append(rep.fields(), logx.Err(err))...)
		return rep, err
	}
	log.Info("pass finished", rep.fields()...)
	return rep, nil
}

func (r *Runner) runSource(ctx context.Context, log logx.Logger, rep *Report, store *dedupe.Store, src feed.Source) {
	log = log.With(logx.URL("source", src.URL))
	defer func() {
		if p := recover(); p != nil {
			rep.SourcesFailed++
			log.Error("source panicked", logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()

	f, err := r.opts.Fetcher.Fetch(ctx, src)
	if err != nil {
		rep.SourcesFailed++
		log.Warn("feed fetch failed", logx.Err(err))
		return
	}
	rep.SourcesOK++
	rep.EntriesMalformed += len(f.Rejected)
	for _, rej := range f.Rejected {
		log.Debug("feed entry rejected", logx.Err(rej))
	}

	label := sourceLabel(src, f)
	limit := src.Limit
	if limit <= 0 {
		limit = r.opts.DefaultLimit
	}
	entries := f.Head(limit)
	log.Debug("feed fetched", logx.String("label", label), logx.Int("entries", len(entries)))

	now := r.opts.Now()
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		rep.EntriesExamined++
		if err := r.runEntry(ctx, log, rep, store, label, e, now); err != nil {
			rep.EntryErrors++
		}
	}
}

func (r *Runner) runEntry(ctx context.Context, log logx.Logger, rep *Report, store *dedupe.Store, label string, e feed.Entry, now time.Time) (err error) {
	log = log.With(logx.String("link", e.Link))
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			log.Error("entry panicked", logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()

	switch d := r.opts.Filter.Admit(filter.Candidate{Link: e.Link, Title: e.Title, PublishedAt: e.PublishedAt}, store, now); d {
	case filter.Admit:
		rep.Admitted++
	case filter.SkipSeen:
		rep.SkippedSeen++
		return nil
	case filter.SkipStale:
		rep.SkippedStale++
		log.Debug("entry skipped", logx.String("reason", d.String()))
		return nil
	default:
		rep.SkippedKeyword++
		log.Debug("entry skipped", logx.String("reason", d.String()))
		return nil
	}

	res := r.opts.Extractor.Extract(r.entryText(e))
	switch res.Tier {
	case extract.TierLabel:
		rep.CodesLabel++
	case extract.TierShape:
		rep.CodesShape++
	}
	if !res.Found() && r.opts.Pages != nil {
		var outcome DeepOutcome
		res, outcome = r.deepScan(ctx, log, e.Link)
		switch outcome {
		case DeepFound:
			rep.DeepFound++
			rep.CodesDeep++
		case DeepAbsent:
			rep.DeepAbsent++
		case DeepFailed:
			rep.DeepFailed++
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	msg, ok := r.opts.Formatter.Format(notifier.Input{
		Title:    e.Title,
		Link:     e.Link,
		Source:   label,
		ImageURL: e.ImageURL,
		Code:     res.Code,
	})
	if !ok {
		rep.Suppressed++
		store.Record(e.Link)
		log.Debug("entry suppressed: no code and no strong signal")
		return nil
	}

	if err := r.opts.Notifier.Dispatch(ctx, msg); err != nil {
		rep.DeliveryFailed++
		if ctx.Err() == nil && r.opts.RecordOnFailure {
			store.Record(e.Link)
		}
		return nil
	}
	rep.Notified++
	store.Record(e.Link)
	log.Info("alert sent", logx.String("severity", msg.Severity.String()), logx.Bool("has_code", msg.HasCode))
	return nil
}

// entryText is the title followed by the reduced summary and content.
func (r *Runner) entryText(e feed.Entry) string {
	parts := []string{e.Title}
	if s := r.opts.Text.Text(e.Summary); s != "" {
		parts = append(parts, s)
	}
	if e.Content != "" && e.Content != e.Summary {
		if c := r.opts.Text.Text(e.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}

func (r *Runner) deepScan(ctx context.Context, log logx.Logger, link string) (extract.Result, DeepOutcome) {
	if r.opts.DeepScanDelay > 0 {
		t := time.NewTimer(r.opts.DeepScanDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return extract.Result{}, DeepFailed
		}
	}
	fctx := ctx
	if r.opts.DeepScanTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, r.opts.DeepScanTimeout)
		defer cancel()
	}
	page, err := r.opts.Pages.FetchText(fctx, link)
	if err != nil {
		log.Debug("deep scan failed", logx.Err(err))
		return extract.Result{}, DeepFailed
	}
	res := r.opts.Extractor.Extract(page.Text)
	if !res.Found() {
		return res, DeepAbsent
	}
	log.Debug("deep scan found a code", logx.String("tier", res.Tier.String()))
	return res, DeepFound
}

func sourceLabel(src feed.Source, f feed.Feed) string {
	if name := strings.TrimSpace(src.Name); name != "" {
		return name
	}
	if title := strings.TrimSpace(f.Title); title != "" {
		return title
	}
	return DefaultSourceLabel
}
