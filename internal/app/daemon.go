package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"couponwatch/internal/config"
	"couponwatch/internal/observability"
	"couponwatch/internal/runtime/supervisor"
	"couponwatch/internal/schedule"
	logx "couponwatch/pkg/logx"
	"couponwatch/pkg/systemd"
)

const stopTimeout = 15 * time.Second

// Daemon runs passes on the configured schedule until ctx is done. It
// watches the config file and applies valid edits to the next pass, serves
// metrics when configured, and reports readiness to systemd.
func (a *App) Daemon(ctx context.Context) error {
	log := a.log.With(logx.String("comp", "daemon"))
	sup := supervisor.New(ctx,
		supervisor.WithLogger(log),
		supervisor.WithCancelOnError(true),
	)

	s := a.Settings()
	sched := newScheduler(a, sup.Context(), log)
	if err := sched.apply(s.Schedule); err != nil {
		sup.Cancel()
		return &ConfigError{Err: err}
	}

	if s.Metrics.Addr != "" {
		ln, err := net.Listen("tcp", s.Metrics.Addr)
		if err != nil {
			sched.stop(ctx)
			sup.Cancel()
			return fmt.Errorf("metrics listener: %w", err)
		}
		sup.Go("metrics.http", func(c context.Context) error { return a.serveMetrics(c, ln, log) })
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(4)
	sup.GoRestart("config.watch", a.cfgm.Watch)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.reload(newCfg, sched, log)
			}
		}
	})
	sup.Go("systemd.watchdog", systemd.Watchdog)

	if s.Schedule.RunOnStart {
		sup.Go0("pass.startup", sched.runPass)
	}

	if _, err := systemd.Ready(); err != nil {
		log.Warn("sd_notify READY failed", logx.Err(err))
	}
	log.Info("daemon started",
		logx.String("schedule", s.Schedule.Spec),
		logx.String("next", sched.next().Format(time.RFC3339)),
		logx.String("metrics", s.Metrics.Addr),
	)

	<-sup.Context().Done()
	reason := StopSignal
	if sup.Err() != nil {
		reason = StopFatalError
	}
	log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	sched.stop(stopCtx)
	if err := sup.Stop(stopCtx); err != nil {
		log.Warn("shutdown incomplete", logx.Err(err))
		return err
	}
	log.Info("stopped")
	return sup.Err()
}

func (a *App) reload(newCfg *config.Config, sched *scheduler, log logx.Logger) {
	a.mu.Lock()
	prev := a.cfg
	a.mu.Unlock()

	if err := a.Apply(newCfg); err != nil {
		a.metrics.ObserveReload(false)
		log.Warn("config reload rejected; keeping previous", logx.Err(err))
		return
	}
	if err := sched.apply(a.Settings().Schedule); err != nil {
		log.Warn("schedule not changed", logx.Err(err))
	}
	a.metrics.ObserveReload(true)

	sections, attrs := config.SummarizeConfigChange(prev, newCfg)
	if len(sections) == 0 {
		log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	log.Info("config reloaded", fields...)
}

func (a *App) serveMetrics(ctx context.Context, ln net.Listener, log logx.Logger) error {
	m := a.Settings().Metrics
	cfg := observability.Config{Addr: m.Addr, Token: m.Token, Pprof: m.Pprof}
	h := observability.NewHandler(cfg, a.metrics.Handler(), log)
	return observability.Serve(ctx, ln, cfg, h, log.With(logx.String("comp", "http")))
}

// scheduler owns the cron instance that triggers passes.
type scheduler struct {
	app *App
	ctx context.Context
	log logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	current config.ScheduleSettings
	stopped bool
}

func newScheduler(a *App, ctx context.Context, log logx.Logger) *scheduler {
	return &scheduler{app: a, ctx: ctx, log: log.With(logx.String("comp", "scheduler"))}
}

// apply (re)builds the cron instance when the schedule changed.
func (s *scheduler) apply(ss config.ScheduleSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	if s.c != nil && ss.Spec == s.current.Spec && ss.Timezone == s.current.Timezone {
		return nil
	}
	spec, err := schedule.Parse(ss.Spec)
	if err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}
	cs, err := spec.Schedule()
	if err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}
	loc := time.Local
	if ss.Timezone != "" {
		if loc, err = time.LoadLocation(ss.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}

	if s.c != nil {
		// waits for a running pass
		<-s.c.Stop().Done()
	}
	logger := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.c.Schedule(cs, cron.FuncJob(func() { s.runPass(s.ctx) }))
	s.c.Start()
	s.current = ss
	s.log.Info("schedule applied", logx.String("spec", spec.String()), logx.String("kind", spec.Kind.String()), logx.String("tz", loc.String()))
	return nil
}

func (s *scheduler) next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *scheduler) stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.stopped = true
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("pass still running at shutdown")
	}
}

// runPass runs one pass unless another one is in progress.
func (s *scheduler) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.app.passMu.TryLock() {
		s.log.Info("pass skipped: previous pass still running")
		return
	}
	defer s.app.passMu.Unlock()

	rep, err := s.app.runPass(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		// the next tick retries; a broken store is not fatal for the daemon
		s.log.Error("pass failed", logx.Err(err))
	}
	_, _ = systemd.Status("last pass %s: %d alerts, %d failed sources", rep.StartedAt.Format(time.RFC3339), rep.Notified, rep.SourcesFailed)
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
