// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン方式のラベル値
const (
	MethodGoogle   = "google"
	MethodPassword = "password"
	MethodRefresh  = "refresh"
)

// ログイン結果のラベル値
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(method, outcome string)
	RecordUserProvisioned()
	RecordTokensIssued()
	RecordSessionFailure(reason string)
	RecordSessionsPurged(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins           *prometheus.CounterVec
	usersProvisioned prometheus.Counter
	tokensIssued     prometheus.Counter
	sessionFailures  *prometheus.CounterVec
	sessionsPurged   prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentms_logins_total",
			Help: "ログイン試行の合計数（方式・結果別）",
		}, []string{"method", "outcome"}),
		usersProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studentms_users_provisioned_total",
			Help: "初回Googleログインで自動作成されたユーザー数",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studentms_token_pairs_issued_total",
			Help: "発行したトークンペアの合計数",
		}),
		sessionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentms_session_failures_total",
			Help: "セッション解決に失敗した回数（理由別）",
		}, []string{"reason"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studentms_sessions_purged_total",
			Help: "期限切れで削除したセッション数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studentms_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studentms_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.usersProvisioned,
		c.tokensIssued,
		c.sessionFailures,
		c.sessionsPurged,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(method, outcome string) {
	c.logins.WithLabelValues(method, outcome).Inc()
}

// RecordUserProvisioned はユーザーの自動作成を記録する。
func (c *Collector) RecordUserProvisioned() {
	c.usersProvisioned.Inc()
}

// RecordTokensIssued はトークンペアの発行を記録する。
func (c *Collector) RecordTokensIssued() {
	c.tokensIssued.Inc()
}

// RecordSessionFailure はセッション解決の失敗を記録する。
func (c *Collector) RecordSessionFailure(reason string) {
	c.sessionFailures.WithLabelValues(reason).Inc()
}

// RecordSessionsPurged は期限切れセッションの削除件数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordLogin(string, string) {}
func (Nop) RecordUserProvisioned() {}
func (Nop) RecordTokensIssued() {}
func (Nop) RecordSessionFailure(string) {}
func (Nop) RecordSessionsPurged(int64) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
