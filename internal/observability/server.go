// Package observability serves the daemon's HTTP endpoints: /healthz,
// Prometheus /metrics and, when enabled, net/http/pprof.
package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	logx "couponwatch/pkg/logx"
)

const pprofPrefix = "/debug/pprof/"

// Config controls the HTTP server.
//
// Security:
//   - Prefer binding to localhost.
//   - pprof on a non-loopback address is only mounted when Token is set.
type Config struct {
	Addr  string
	Token string
	Pprof bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewHandler builds the mux. metrics may be nil.
func NewHandler(cfg Config, metrics http.Handler, log logx.Logger) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	wrap := func(h http.Handler) http.Handler { return withAuth(cfg.Token, h) }

	mux := http.NewServeMux()
	// liveness stays open for probes
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if metrics != nil {
		mux.Handle("/metrics", wrap(metrics))
	}

	if !cfg.Pprof {
		return mux
	}
	if strings.TrimSpace(cfg.Token) == "" && !isLoopbackAddr(cfg.Addr) {
		log.Error("pprof not mounted: non-loopback addr requires a token", logx.String("addr", cfg.Addr))
		return mux
	}
	mux.Handle(pprofPrefix, wrap(http.HandlerFunc(hpprof.Index)))
	mux.Handle(pprofPrefix+"cmdline", wrap(http.HandlerFunc(hpprof.Cmdline)))
	mux.Handle(pprofPrefix+"profile", wrap(http.HandlerFunc(hpprof.Profile)))
	mux.Handle(pprofPrefix+"symbol", wrap(http.HandlerFunc(hpprof.Symbol)))
	mux.Handle(pprofPrefix+"trace", wrap(http.HandlerFunc(hpprof.Trace)))
	return mux
}

// Serve runs the server on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, cfg Config, h http.Handler, log logx.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	if cfg.Token == "" && !isLoopbackAddr(cfg.Addr) {
		log.Warn("http endpoints exposed without token on non-loopback addr", logx.String("addr", cfg.Addr))
	}
	log.Info("http listening",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("pprof", cfg.Pprof),
		logx.Bool("token_set", cfg.Token != ""),
	)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h.ServeHTTP(w, r)
			return
		}
		unauthorized(w)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
