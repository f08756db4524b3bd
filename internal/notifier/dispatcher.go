package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"couponwatch/internal/transport"
	logx "couponwatch/pkg/logx"
)

const historyLimit = 300

var ErrNoSink = errors.New("notifier has no sink")

// Dispatcher delivers messages one at a time through a sink.
//
// It is safe for concurrent use; concurrent callers share the same pacing.
type Dispatcher struct {
	mu      sync.Mutex
	sink    transport.Sink
	log     logx.Logger
	cfg     Config
	limiter *rate.Limiter

	// In-memory history (for the CLI summary)
	hmu     sync.Mutex
	history []HistoryItem
}

func NewDispatcher(cfg Config, sink transport.Sink, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{sink: sink, log: log}
	d.applyLocked(cfg)
	return d
}

// Apply swaps the pacing and retry settings. The token bucket keeps its state
// so a reload never allows an extra burst.
func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.applyLocked(cfg)
	d.mu.Unlock()
}

// SetSink replaces the delivery target for subsequent dispatches.
func (d *Dispatcher) SetSink(sink transport.Sink) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
}

func (d *Dispatcher) applyLocked(cfg Config) {
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	d.cfg = cfg

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if d.limiter == nil {
		d.limiter = rate.NewLimiter(limit, 1)
		return
	}
	d.limiter.SetLimit(limit)
}

// Dispatch delivers m, waiting for the pacing token first. It returns the last
// delivery error once retries are exhausted, or the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, m Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// config snapshot for this dispatch
	d.mu.Lock()
	cfg := d.cfg
	lim := d.limiter
	sink := d.sink
	d.mu.Unlock()

	if sink == nil {
		return ErrNoSink
	}

	id := uuid.NewString()
	log := d.log.With(logx.String("request_id", id), logx.String("sink", sink.Name()))
	item := HistoryItem{ID: id, Sink: sink.Name(), Title: m.Title, Link: m.Link, Severity: m.Severity}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		item.Attempts = attempt
		if err := lim.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		start := time.Now()
		err := sink.Send(callCtx, m)
		cancel()
		if err == nil {
			log.Debug("notification delivered",
				logx.String("severity", m.Severity.String()),
				logx.Int("attempt", attempt),
				logx.Duration("took", time.Since(start)),
			)
			d.appendHistory(item)
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug("notification attempt failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts || !retryable(err) {
			break
		}
		if err := sleepCtx(ctx, retryDelay(cfg, attempt, err)); err != nil {
			return err
		}
	}

	item.Error = lastErr.Error()
	d.appendHistory(item)
	log.Warn("notification delivery failed", logx.Err(lastErr), logx.Int("attempts", item.Attempts), logx.String("link", m.Link))
	return fmt.Errorf("deliver via %s: %w", sink.Name(), lastErr)
}

// Snapshot returns the recent dispatch history, oldest first.
func (d *Dispatcher) Snapshot() []HistoryItem {
	d.hmu.Lock()
	out := append([]HistoryItem(nil), d.history...)
	d.hmu.Unlock()
	return out
}

func (d *Dispatcher) appendHistory(item HistoryItem) {
	item.At = time.Now()
	d.hmu.Lock()
	d.history = append(d.history, item)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}
	d.hmu.Unlock()
}

// retryable reports whether another attempt may succeed: rate limiting,
// server errors and network failures.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *transport.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded)
}

func retryDelay(cfg Config, attempt int, err error) time.Duration {
	var se *transport.StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		if se.RetryAfter > cfg.RetryMaxDelay {
			return cfg.RetryMaxDelay
		}
		return se.RetryAfter
	}
	// Exponential backoff: base * 2^(attempt-1)
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
