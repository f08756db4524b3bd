package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couponwatch/internal/pipeline"
)

func TestObservePass(t *testing.T) {
	t.Parallel()
	m := New()
	started := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	rep := pipeline.Report{
		StartedAt:     started,
		Duration:      3 * time.Second,
		SourcesOK:     2,
		SourcesFailed: 1,
		SkippedSeen:   4,
		Admitted:      3,
		CodesLabel:    1,
		CodesDeep:     1,
		DeepFound:     1,
		DeepFailed:    1,
		Notified:      2,
		Suppressed:    1,
	}
	m.ObservePass(rep, "ok")
	m.ObservePass(rep, "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SourcesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SourcesTotal.WithLabelValues("failed")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.EntriesTotal.WithLabelValues("seen")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CodesTotal.WithLabelValues("deep")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeepScansTotal.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(started.Add(3*time.Second).Unix()), testutil.ToFloat64(m.LastPass))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastPassOK))

	m.ObservePass(pipeline.Report{}, "failed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastPassOK))
}

func TestObserveReload(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveReload(true)
	m.ObserveReload(false)
	m.ObserveReload(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigReloads.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfigReloads.WithLabelValues("rejected")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObservePass(pipeline.Report{}, "ok")
	m.ObserveReload(true)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObservePass(pipeline.Report{Notified: 1}, "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `couponwatch_notifications_total{status="sent"} 1`)
	assert.Contains(t, string(body), "couponwatch_pass_duration_seconds_bucket")
}
