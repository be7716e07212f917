// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// voting.Recorder、ワーカー、HTTPミドルウェアから利用する。
type Collector struct {
	votesCast         *prometheus.CounterVec
	voteRejections    *prometheus.CounterVec
	sessionsOpened    prometheus.Counter
	sessionsFinalized *prometheus.CounterVec
	sweepFinalized    prometheus.Counter
	reconciled        prometheus.Counter
	txDuration        *prometheus.HistogramVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provoto_votes_cast_total",
			Help: "記録された票の種類別合計数",
		}, []string{"kind"}),
		voteRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provoto_vote_rejections_total",
			Help: "拒否された投票の理由別合計数",
		}, []string{"reason"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "provoto_sessions_opened_total",
			Help: "開始された投票セッションの合計数",
		}),
		sessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provoto_sessions_finalized_total",
			Help: "確定された投票セッションの結果・契機別合計数",
		}, []string{"result", "trigger"}),
		sweepFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "provoto_sweep_finalized_total",
			Help: "定期スイープで確定されたセッションの合計数",
		}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "provoto_reconciled_sessions_total",
			Help: "カウンタが台帳と一致せず修復されたセッションの合計数",
		}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provoto_tx_duration_seconds",
			Help:    "ライフサイクルトランザクションの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provoto_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.votesCast,
		c.voteRejections,
		c.sessionsOpened,
		c.sessionsFinalized,
		c.sweepFinalized,
		c.reconciled,
		c.txDuration,
		c.httpStatus,
	)

	return c
}

// VoteCast は記録された票を数える。
func (c *Collector) VoteCast(kind model.VoteKind) {
	c.votesCast.WithLabelValues(string(kind)).Inc()
}

// VoteRejected は拒否された投票を数える。
func (c *Collector) VoteRejected(reason string) {
	c.voteRejections.WithLabelValues(reason).Inc()
}

// SessionOpened は開始されたセッションを数える。
func (c *Collector) SessionOpened() {
	c.sessionsOpened.Inc()
}

// SessionFinalized は確定されたセッションを数える。
func (c *Collector) SessionFinalized(result model.SessionResult, trigger model.FinalizeTrigger) {
	c.sessionsFinalized.WithLabelValues(string(result), string(trigger)).Inc()
}

// ObserveTx はトランザクションの所要時間を記録する。
func (c *Collector) ObserveTx(operation string, d time.Duration) {
	c.txDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordSweepFinalized はスイープで確定したセッション数を加算する。
func (c *Collector) RecordSweepFinalized(count int) {
	c.sweepFinalized.Add(float64(count))
}

// RecordReconciled は修復したセッション数を加算する。
func (c *Collector) RecordReconciled(count int64) {
	c.reconciled.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
