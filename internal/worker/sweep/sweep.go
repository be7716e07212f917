// Package sweep は定足数に達したまま確定されていないセッションを確定する定期ジョブを提供する。
// メンバーの無効化により、投票なしで定足数に達する場合がある。
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// QuorumLister は定足数に達した進行中セッションを列挙する。
// repository.SessionReaderの部分集合。
type QuorumLister interface {
	ListQuorumReached(ctx context.Context) ([]string, error)
}

// Finalizer はセッションを定足数により確定する。voting.Controllerが実装する。
type Finalizer interface {
	FinalizeByQuorum(ctx context.Context, sessionID string) (*model.VotingSession, bool, error)
}

// Recorder はスイープ結果をメトリクスに記録する。
type Recorder interface {
	RecordSweepFinalized(count int)
}

// Sweeper は定足数スイープのスケジューリングと並列制御を行う。
type Sweeper struct {
	sessions       QuorumLister
	finalizer      Finalizer
	metrics        Recorder
	logger         *slog.Logger
	maxConcurrency int
}

// NewSweeper はSweeperを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。metricsはnilでもよい。
func NewSweeper(
	sessions QuorumLister,
	finalizer Finalizer,
	metrics Recorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Sweeper {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Sweeper{
		sessions:       sessions,
		finalizer:      finalizer,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はinterval間隔のティッカーでスイープを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("定足数スイープを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("定足数スイープを停止しました")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("定足数スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は対象セッションを1回列挙し、並列で確定を試みる。確定した件数を返す。
// 他の経路で先に確定されたセッション（AlreadyFinalized）は正常として扱う。
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	ids, err := s.sessions.ListQuorumReached(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		s.logger.Debug("定足数に達した未確定セッションはありません")
		return 0, nil
	}

	var finalized atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			closed, ok, err := s.finalizer.FinalizeByQuorum(ctx, id)
			switch {
			case errors.Is(err, model.NewAlreadyFinalizedError()):
				return nil
			case err != nil:
				s.logger.Error("セッションの確定に失敗しました",
					slog.String("session_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			case ok:
				finalized.Add(1)
				s.logger.Info("スイープでセッションを確定しました",
					slog.String("session_id", id),
					slog.String("proposal_id", closed.ProposalID),
					slog.String("result", string(closed.Result)),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	count := int(finalized.Load())
	if s.metrics != nil && count > 0 {
		s.metrics.RecordSweepFinalized(count)
	}

	s.logger.Info("定足数スイープが完了しました",
		slog.Int("candidate_count", len(ids)),
		slog.Int("finalized_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return count, nil
}
