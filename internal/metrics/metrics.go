// Package metrics exposes pass results as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"couponwatch/internal/pipeline"
)

const namespace = "couponwatch"

// Metrics holds the collectors of one registry. Each Metrics owns its
// registry so tests never collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	// PassesTotal counts passes by result (ok, failed, interrupted).
	PassesTotal *prometheus.CounterVec
	// SourcesTotal counts fetched sources by status.
	SourcesTotal *prometheus.CounterVec
	// EntriesTotal counts examined entries by outcome.
	EntriesTotal *prometheus.CounterVec
	// CodesTotal counts extracted codes by tier.
	CodesTotal *prometheus.CounterVec
	// DeepScansTotal counts linked page fetches by outcome.
	DeepScansTotal *prometheus.CounterVec
	// NotificationsTotal counts alerts by status (sent, failed, suppressed).
	NotificationsTotal *prometheus.CounterVec

	PassDuration  prometheus.Histogram
	LastPass      prometheus.Gauge
	LastPassOK    prometheus.Gauge
	ConfigReloads *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		PassesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Total number of polling passes",
		}, []string{"result"}),
		SourcesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Total number of feed fetches",
		}, []string{"status"}),
		EntriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Total number of examined feed entries by outcome",
		}, []string{"outcome"}),
		CodesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_total",
			Help:      "Total number of extracted codes by tier",
		}, []string{"tier"}),
		DeepScansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deep_scans_total",
			Help:      "Total number of linked page scans by outcome",
		}, []string{"outcome"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of alerts by status",
		}, []string{"status"}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of polling passes in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastPass: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time of the last finished pass",
		}),
		LastPassOK: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_success",
			Help:      "Whether the last pass succeeded (1 = ok, 0 = failed)",
		}),
		ConfigReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of config reloads by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObservePass records a finished pass. result is "ok", "failed" or "interrupted".
func (m *Metrics) ObservePass(rep pipeline.Report, result string) {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues(result).Inc()

	add(m.SourcesTotal, "ok", rep.SourcesOK)
	add(m.SourcesTotal, "failed", rep.SourcesFailed)

	add(m.EntriesTotal, "malformed", rep.EntriesMalformed)
	add(m.EntriesTotal, "error", rep.EntryErrors)
	add(m.EntriesTotal, "seen", rep.SkippedSeen)
	add(m.EntriesTotal, "stale", rep.SkippedStale)
	add(m.EntriesTotal, "irrelevant", rep.SkippedKeyword)
	add(m.EntriesTotal, "admitted", rep.Admitted)

	add(m.CodesTotal, "label", rep.CodesLabel)
	add(m.CodesTotal, "shape", rep.CodesShape)
	add(m.CodesTotal, "deep", rep.CodesDeep)

	add(m.DeepScansTotal, pipeline.DeepFound.String(), rep.DeepFound)
	add(m.DeepScansTotal, pipeline.DeepAbsent.String(), rep.DeepAbsent)
	add(m.DeepScansTotal, pipeline.DeepFailed.String(), rep.DeepFailed)

	add(m.NotificationsTotal, "sent", rep.Notified)
	add(m.NotificationsTotal, "failed", rep.DeliveryFailed)
	add(m.NotificationsTotal, "suppressed", rep.Suppressed)

	m.PassDuration.Observe(rep.Duration.Seconds())
	m.LastPass.Set(float64(rep.StartedAt.Add(rep.Duration).Unix()))
	if result == "ok" {
		m.LastPassOK.Set(1)
	} else {
		m.LastPassOK.Set(0)
	}
}

// ObserveReload records a config reload attempt.
func (m *Metrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ConfigReloads.WithLabelValues("ok").Inc()
		return
	}
	m.ConfigReloads.WithLabelValues("rejected").Inc()
}

func add(v *prometheus.CounterVec, label string, n int) {
	// touch the series so it is exported from the first pass on
	c := v.WithLabelValues(label)
	if n > 0 {
		c.Add(float64(n))
	}
}
