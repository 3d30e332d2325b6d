// Package monitor exposes Prometheus metrics for quote fetching,
// caching, calculator traffic and the relay endpoint.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tg"

// Monitor owns a private registry so tests never collide on global
// collector registration.
type Monitor struct {
	registry *prometheus.Registry

	FetchTotal    *prometheus.CounterVec
	FetchErrors   *prometheus.CounterVec
	FetchLatency  *prometheus.HistogramVec
	FallbackTotal prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RefreshRuns    prometheus.Counter
	LastRefreshSec prometheus.Gauge

	CalcRequests *prometheus.CounterVec

	RelayRequests *prometheus.CounterVec
}

func New() *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,
		FetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Quote fetches per provider.",
		}, []string{"provider"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "errors_total",
			Help:      "Failed quote fetches per provider.",
		}, []string{"provider"}),
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "latency_seconds",
			Help:      "Quote fetch latency per provider.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"provider"}),
		FallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "fallback_total",
			Help:      "Fetches that fell back to the secondary provider.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Quote cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Quote cache misses.",
		}),
		RefreshRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Background index refresh runs.",
		}),
		LastRefreshSec: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "last_unix_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		CalcRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calc",
			Name:      "requests_total",
			Help:      "Calculator requests by kind.",
		}, []string{"kind"}),
		RelayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relay requests by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordFetch 记录一次抓取：成功与否、耗时。
func (m *Monitor) RecordFetch(provider string, err error, elapsed time.Duration) {
	m.FetchTotal.WithLabelValues(provider).Inc()
	m.FetchLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(provider).Inc()
	}
}

func (m *Monitor) RecordFallback() {
	m.FallbackTotal.Inc()
}

func (m *Monitor) RecordCache(hit bool) {
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

func (m *Monitor) RecordRefresh(at time.Time) {
	m.RefreshRuns.Inc()
	m.LastRefreshSec.Set(float64(at.Unix()))
}

func (m *Monitor) RecordCalc(kind string) {
	m.CalcRequests.WithLabelValues(kind).Inc()
}

func (m *Monitor) RecordRelay(outcome string) {
	m.RelayRequests.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint for this monitor's registry.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
