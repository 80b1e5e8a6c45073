// Package metrics はPrometheusの計測値を提供します。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cardsignal"

// Metrics はアプリケーションの計測値を保持します。
// 価格解決とセッション処理の両方の計測インターフェースを満たします。
type Metrics struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	collabFailures  *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	purgedFromCache prometheus.Counter
}

// New は専用のレジストリに計測値を登録したMetricsを生成します。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cycles_total",
			Help:      "Total number of processed cycles by signal.",
		}, []string{"signal"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full fusion-to-decision cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "comparable_cache_lookups_total",
			Help:      "Comparable-price cache lookups by result.",
		}, []string{"result"}),
		collabFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failures of external collaborators (recognition, transcription, marketplace, advisory).",
		}, []string{"collaborator"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active_sessions",
			Help:      "Number of live sessions.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method", "path"}),
		purgedFromCache: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "comparable_cache_purged_total",
			Help:      "Expired comparable-price cache entries removed by the purge job.",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.cacheLookups,
		m.collabFailures,
		m.activeSessions,
		m.httpRequests,
		m.httpDuration,
		m.purgedFromCache,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Registry はレジストリを返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用のHTTPハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CycleCompleted はサイクル1回分の結果と所要時間を記録します。
func (m *Metrics) CycleCompleted(signal string, elapsed time.Duration) {
	m.cycles.WithLabelValues(signal).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

// CacheLookup は比較販売キャッシュの参照結果を記録します。
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CollaboratorFailure は外部連携先の失敗を記録します。
func (m *Metrics) CollaboratorFailure(collaborator string) {
	m.collabFailures.WithLabelValues(collaborator).Inc()
}

// SessionsActive は稼働中のセッション数を設定します。
func (m *Metrics) SessionsActive(n int) {
	m.activeSessions.Set(float64(n))
}

// CachePurged はパージジョブで削除したエントリ数を記録します。
func (m *Metrics) CachePurged(n int64) {
	m.purgedFromCache.Add(float64(n))
}

// Middleware はHTTPリクエストの件数と所要時間を記録するGinミドルウェアです。
// パスはルート定義（例: /v1/sessions/:id）で集計します。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
