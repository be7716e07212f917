// Package reconcile は確定済みセッションのキャッシュ済みカウンタを投票台帳と突き合わせて修復するジョブを提供する。
// 進行中のセッションは投票ごとに同一トランザクションで再計算されるため対象外とする。
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder は修復件数をメトリクスに記録する。
type Recorder interface {
	RecordReconciled(count int64)
}

// reconcileQuery は台帳から再集計した値とキャッシュが異なる確定済みセッションのみを更新する。
const reconcileQuery = `
UPDATE voting_sessions s
SET favor_count = c.favor, against_count = c.against, abstain_count = c.abstain
FROM (
	SELECT vs.id,
		count(v.id) FILTER (WHERE v.kind = 'approve') AS favor,
		count(v.id) FILTER (WHERE v.kind = 'reject') AS against,
		count(v.id) FILTER (WHERE v.kind = 'abstain') AS abstain
	FROM voting_sessions vs
	LEFT JOIN votes v ON v.session_id = vs.id
	WHERE vs.result <> 'in_progress'
	GROUP BY vs.id
) c
WHERE s.id = c.id
	AND s.result <> 'in_progress'
	AND (s.favor_count, s.against_count, s.abstain_count) IS DISTINCT FROM (c.favor, c.against, c.abstain)`

// Job はカウンタ修復ジョブ。冪等で、修復対象がなければ何も更新しない。
type Job struct {
	db      Executor
	metrics Recorder
	logger  *slog.Logger
}

// NewJob は新しいJobを生成する。metricsはnilでもよい。
func NewJob(db Executor, metrics Recorder, logger *slog.Logger) *Job {
	return &Job{
		db:      db,
		metrics: metrics,
		logger:  logger,
	}
}

// Run はカウンタの修復を1回実行し、修復した件数を返す。
func (j *Job) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, reconcileQuery)
	if err != nil {
		j.logger.Error("カウンタ修復ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("カウンタ修復の実行に失敗: %w", err)
	}

	repaired, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("修復件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("修復件数の取得に失敗: %w", err)
	}

	if repaired > 0 {
		j.logger.Warn("台帳と一致しないカウンタを修復しました",
			slog.Int64("repaired_count", repaired),
		)
		if j.metrics != nil {
			j.metrics.RecordReconciled(repaired)
		}
	}

	j.logger.Info("カウンタ修復ジョブが完了しました",
		slog.Int64("repaired_count", repaired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return repaired, nil
}

// Start はinterval間隔でRunを実行する。起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("カウンタ修復に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("カウンタ修復ジョブを停止しました")
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("カウンタ修復に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
