// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 外部API呼び出しの結果区分
const (
	OutcomeSuccess       = "success"
	OutcomeFailure       = "failure"
	OutcomeNotConfigured = "not_configured"
)

// UpstreamRecorder は外部API呼び出しの結果を記録するインターフェース。
// 論文・動画・要約の各クライアントから利用する。
type UpstreamRecorder interface {
	RecordUpstream(source, outcome string, duration time.Duration)
}

// MetricsCollector はメトリクス収集のインターフェース。
// 外部APIクライアントやダッシュボードから利用する。
type MetricsCollector interface {
	UpstreamRecorder
	RecordSummary(outcome string)
	RecordBookmarkToggle(action string)
	RecordStaleResponse(kind string)
	RecordPersistenceFailure(op string)
	SetActiveDashboards(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	summaries       *prometheus.CounterVec
	bookmarkToggles *prometheus.CounterVec
	staleResponses  *prometheus.CounterVec
	persistFail     *prometheus.CounterVec
	dashboards      prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodigest_upstream_requests_total",
			Help: "外部API呼び出しの合計数（取得元・結果別）",
		}, []string{"source", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "robodigest_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodigest_summaries_total",
			Help: "要約リクエストの合計数（結果別）",
		}, []string{"outcome"}),
		bookmarkToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodigest_bookmark_toggles_total",
			Help: "ブックマーク切り替えの合計数",
		}, []string{"action"}),
		staleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodigest_stale_responses_total",
			Help: "新しい取得に追い越されて破棄した取得結果の合計数",
		}, []string{"type"}),
		persistFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robodigest_persistence_failures_total",
			Help: "ブックマーク永続化失敗の合計数",
		}, []string{"op"}),
		dashboards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robodigest_active_dashboards",
			Help: "メモリ上に保持しているダッシュボードの数",
		}),
	}

	reg.MustRegister(
		c.upstreamTotal,
		c.upstreamLatency,
		c.summaries,
		c.bookmarkToggles,
		c.staleResponses,
		c.persistFail,
		c.dashboards,
	)

	return c
}

// RecordUpstream は外部API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstream(source, outcome string, duration time.Duration) {
	c.upstreamTotal.WithLabelValues(source, outcome).Inc()
	c.upstreamLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSummary は要約リクエストの結果を記録する。
func (c *Collector) RecordSummary(outcome string) {
	c.summaries.WithLabelValues(outcome).Inc()
}

// RecordBookmarkToggle はブックマーク切り替えを記録する。
func (c *Collector) RecordBookmarkToggle(action string) {
	c.bookmarkToggles.WithLabelValues(action).Inc()
}

// RecordStaleResponse は破棄した古い取得結果を記録する。
func (c *Collector) RecordStaleResponse(kind string) {
	c.staleResponses.WithLabelValues(kind).Inc()
}

// RecordPersistenceFailure は永続化失敗を記録する。
func (c *Collector) RecordPersistenceFailure(op string) {
	c.persistFail.WithLabelValues(op).Inc()
}

// SetActiveDashboards は保持しているダッシュボード数を設定する。
func (c *Collector) SetActiveDashboards(n int) {
	c.dashboards.Set(float64(n))
}

// Noop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Noop struct{}

func (Noop) RecordUpstream(string, string, time.Duration) {}
func (Noop) RecordSummary(string)                         {}
func (Noop) RecordBookmarkToggle(string)                  {}
func (Noop) RecordStaleResponse(string)                   {}
func (Noop) RecordPersistenceFailure(string)              {}
func (Noop) SetActiveDashboards(int)                      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
