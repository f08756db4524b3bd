// Package app wires configuration, storage, transports and the pipeline into
// the one-shot runner and the scheduled daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"couponwatch/internal/config"
	"couponwatch/internal/metrics"
	"couponwatch/internal/notifier"
	"couponwatch/internal/pipeline"
	"couponwatch/internal/storage"
	logx "couponwatch/pkg/logx"
)

// ConfigError marks a configuration problem (exit code 2 in the CLI).
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

type Options struct {
	// DryRun prints alerts to Stdout and never saves the dedupe store.
	DryRun bool
	Stdout io.Writer
	// HTTPClient is shared by feed, page and webhook requests. nil uses
	// per-component clients with the configured timeouts.
	HTTPClient *http.Client
	// Logger replaces the configured logging (tests).
	Logger logx.Logger
}

type App struct {
	cfgm    *config.ConfigManager
	opts    Options
	log     logx.Logger
	logs    *logx.Service
	metrics *metrics.Metrics
	backend storage.Backend
	disp    *notifier.Dispatcher

	// passMu serializes passes; a pass never overlaps another one.
	passMu sync.Mutex

	mu       sync.Mutex
	cfg      *config.Config
	settings config.Settings
	runner   *pipeline.Runner
}

// New loads the config at cfgPath and assembles the app. Configuration
// problems are returned as *ConfigError; a store that cannot be opened is a
// plain error.
func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, s, err := cfgm.Load()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	a := &App{cfgm: cfgm, opts: opts, cfg: cfg, settings: s, metrics: metrics.New()}
	if opts.Logger.IsZero() {
		a.logs, a.log = logx.New(s.Logging)
	} else {
		a.log = opts.Logger
	}
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	sink, err := newSink(s.Notify, opts, a.log)
	if err != nil {
		a.Close()
		return nil, &ConfigError{Err: err}
	}
	a.disp = notifier.NewDispatcher(mapNotifierConfig(s.Notify), sink, a.log.With(logx.String("comp", "notifier")))

	backend, err := storage.Open(mapStorageConfig(s.Dedupe), a.log.With(logx.String("comp", "storage")))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open dedupe store: %w", err)
	}
	a.backend = backend

	if a.runner, err = a.buildRunner(s); err != nil {
		a.Close()
		return nil, err
	}
	a.log.Debug("app ready",
		logx.String("sink", sink.Name()),
		logx.String("store", s.Dedupe.Driver),
		logx.Int("sources", len(s.Feeds.Sources)),
		logx.Bool("dry_run", opts.DryRun),
	)
	return a, nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Settings returns the settings currently in effect.
func (a *App) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// History returns recent dispatch outcomes.
func (a *App) History() []notifier.HistoryItem { return a.disp.Snapshot() }

// RunOnce performs one pass with the current settings.
func (a *App) RunOnce(ctx context.Context) (pipeline.Report, error) {
	a.passMu.Lock()
	defer a.passMu.Unlock()
	return a.runPass(ctx)
}

func (a *App) runPass(ctx context.Context) (pipeline.Report, error) {
	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()

	rep, err := runner.Run(ctx)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		result = "interrupted"
	default:
		result = "failed"
	}
	a.metrics.ObservePass(rep, result)
	return rep, err
}

// Apply switches to a reloaded config. Storage settings need a restart.
func (a *App) Apply(cfg *config.Config) error {
	s, err := cfg.Resolve()
	if err != nil {
		return &ConfigError{Err: err}
	}
	sink, err := newSink(s.Notify, a.opts, a.log)
	if err != nil {
		return &ConfigError{Err: err}
	}

	a.mu.Lock()
	prev := a.settings
	a.mu.Unlock()
	if mapStorageConfig(prev.Dedupe) != mapStorageConfig(s.Dedupe) {
		a.log.Warn("dedupe store config changed; restart required for changes to take effect")
		s.Dedupe.Driver = prev.Dedupe.Driver
		s.Dedupe.Path = prev.Dedupe.Path
		s.Dedupe.BusyTimeout = prev.Dedupe.BusyTimeout
		s.Dedupe.RedisURL = prev.Dedupe.RedisURL
		s.Dedupe.RedisKey = prev.Dedupe.RedisKey
	}
	if prev.Metrics != s.Metrics {
		a.log.Warn("metrics config changed; restart required for changes to take effect")
		s.Metrics = prev.Metrics
	}

	runner, err := a.buildRunner(s)
	if err != nil {
		return err
	}
	if a.logs != nil {
		a.logs.Apply(s.Logging)
	}
	a.disp.SetSink(sink)
	a.disp.Apply(mapNotifierConfig(s.Notify))

	a.mu.Lock()
	a.cfg = cfg
	a.settings = s
	a.runner = runner
	a.mu.Unlock()
	return nil
}

// Close releases the store and flushes log files.
func (a *App) Close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.log.Warn("close dedupe store", logx.Err(err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
