package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	logx "couponwatch/pkg/logx"
)

var okMetrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("couponwatch_up 1\n"))
})

func get(h http.Handler, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerOpen(t *testing.T) {
	t.Parallel()
	h := NewHandler(Config{Addr: "127.0.0.1:9464"}, okMetrics, logx.Nop())

	assert.Equal(t, http.StatusOK, get(h, "/healthz", "").Code)
	rec := get(h, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "couponwatch_up 1")
	assert.Equal(t, http.StatusNotFound, get(h, "/debug/pprof/", "").Code)
}

func TestHandlerToken(t *testing.T) {
	t.Parallel()
	h := NewHandler(Config{Addr: ":9464", Token: "s3cret", Pprof: true}, okMetrics, logx.Nop())

	assert.Equal(t, http.StatusOK, get(h, "/healthz", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "/metrics?token=nope", "").Code)
	assert.Equal(t, http.StatusOK, get(h, "/metrics?token=s3cret", "").Code)
	assert.Equal(t, http.StatusOK, get(h, "/metrics", "s3cret").Code)
	assert.Equal(t, http.StatusOK, get(h, "/debug/pprof/", "s3cret").Code)
}

func TestPprofRequiresLoopbackOrToken(t *testing.T) {
	t.Parallel()
	exposed := NewHandler(Config{Addr: "0.0.0.0:9464", Pprof: true}, nil, logx.Nop())
	assert.Equal(t, http.StatusNotFound, get(exposed, "/debug/pprof/", "").Code)

	local := NewHandler(Config{Addr: "localhost:9464", Pprof: true}, nil, logx.Nop())
	assert.Equal(t, http.StatusOK, get(local, "/debug/pprof/", "").Code)
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	assert.True(t, isLoopbackAddr("127.0.0.1:1"))
	assert.True(t, isLoopbackAddr("[::1]:1"))
	assert.True(t, isLoopbackAddr("localhost:1"))
	assert.False(t, isLoopbackAddr(":1"))
	assert.False(t, isLoopbackAddr("10.0.0.2:1"))
	assert.False(t, isLoopbackAddr("garbage"))
}
