// Package tally は投票台帳から票数を集計し、セッションの結果を決定する。
package tally

import (
	"context"
	"fmt"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// Counter は投票台帳を走査して票数を返す。
// repository.VotingStore と repository.SessionReader の両方が満たす。
type Counter interface {
	CountVotes(ctx context.Context, sessionID string) (model.Tally, error)
}

// CounterStore はキャッシュカウンタの書き戻しが可能なCounter。
type CounterStore interface {
	Counter
	SaveCounters(ctx context.Context, sessionID string, tally model.Tally) error
}

// Recount は台帳から権威ある集計を取得する。
func Recount(ctx context.Context, c Counter, sessionID string) (model.Tally, error) {
	t, err := c.CountVotes(ctx, sessionID)
	if err != nil {
		return model.Tally{}, fmt.Errorf("failed to recount session %s: %w", sessionID, err)
	}
	return t, nil
}

// UpdateCounters は台帳を再集計し、セッション行のキャッシュカウンタに書き戻す。
// 票の挿入と同じトランザクション内で呼び出すこと。
func UpdateCounters(ctx context.Context, s CounterStore, sessionID string) (model.Tally, error) {
	t, err := Recount(ctx, s, sessionID)
	if err != nil {
		return model.Tally{}, err
	}
	if err := s.SaveCounters(ctx, sessionID, t); err != nil {
		return model.Tally{}, fmt.Errorf("failed to save counters for session %s: %w", sessionID, err)
	}
	return t, nil
}

// FromVotes は読み取り済みの票を種類別に分類して集計する。
func FromVotes(votes []*model.Vote) model.Tally {
	var t model.Tally
	for _, v := range votes {
		t = t.Add(v.Kind)
	}
	return t
}

// DecideOutcome は単純過半数で結果を決定する。
// 賛成が反対を上回る場合のみ可決。同数（0対0を含む）は否決。棄権は比較に影響しない。
func DecideOutcome(favor, against int) model.SessionResult {
	if favor > against {
		return model.SessionResultApproved
	}
	return model.SessionResultRejected
}

// QuorumReached は投票総数が有効な有権者数に達したかを返す。
// 有権者が0人の場合は達していないものとする。
func QuorumReached(t model.Tally, eligible int) bool {
	return eligible > 0 && t.Total() >= eligible
}
