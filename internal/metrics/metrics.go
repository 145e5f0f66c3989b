// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute はルートに一致しなかったリクエストのrouteラベル。
const unmatchedRoute = "unmatched"

// Collector はゲートウェイのPrometheusメトリクスを収集する。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpInFlight    prometheus.Gauge
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
}

var _ backend.Recorder = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentoring_http_requests_total",
			Help: "ルート・メソッド・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentoring_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mentoring_http_in_flight_requests",
			Help: "処理中のHTTPリクエスト数",
		}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentoring_backend_calls_total",
			Help: "操作・結果別のバックエンド呼び出し数",
		}, []string{"operation", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentoring_backend_call_duration_seconds",
			Help:    "バックエンド呼び出しの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentoring_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.httpInFlight,
		c.backendCalls,
		c.backendDuration,
		c.rateLimited,
	)

	return c
}

// ObserveBackendCall はバックエンド呼び出しの結果と所要時間を記録する。
func (c *Collector) ObserveBackendCall(operation string, outcome backend.Outcome, duration time.Duration) {
	c.backendCalls.WithLabelValues(operation, string(outcome)).Inc()
	c.backendDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Middleware はリクエスト数・処理時間・処理中件数を記録するginミドルウェアを返す。
// routeラベルにはパスパラメータを含まないルートテンプレートを使う。
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.httpInFlight.Inc()
		start := time.Now()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := ctx.Request.Method
		c.httpRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		c.httpInFlight.Dec()
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
