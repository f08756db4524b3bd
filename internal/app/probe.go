package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"couponwatch/internal/feed"
	logx "couponwatch/pkg/logx"
)

const probeConcurrency = 4

// ProbeResult is the outcome of fetching one configured source.
type ProbeResult struct {
	Source   feed.Source
	Title    string
	Entries  int
	Rejected int
	Elapsed  time.Duration
	Err      error
}

func (r ProbeResult) OK() bool { return r.Err == nil }

// Probe fetches every configured source once without filtering or
// notifying. Results keep the configured order.
func (a *App) Probe(ctx context.Context) []ProbeResult {
	s := a.Settings()
	sources := mapSources(s.Feeds)
	fetcher := newFetcher(s, a.opts.HTTPClient)
	out := make([]ProbeResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			f, err := fetcher.Fetch(gctx, src)
			res := ProbeResult{Source: src, Elapsed: time.Since(start), Err: err}
			if err == nil {
				res.Title = f.Title
				res.Entries = len(f.Entries)
				res.Rejected = len(f.Rejected)
			} else {
				a.log.Debug("probe failed", logx.URL("url", src.URL), logx.Err(err))
			}
			out[i] = res
			// a failing source must not cancel the others
			return nil
		})
	}
	_ = g.Wait()
	return out
}
