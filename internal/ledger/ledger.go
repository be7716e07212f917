// Package ledger は投票台帳への記録を提供する。
// 1セッションにつき1メンバー1票の不変条件は、データストアの一意制約を最終的な根拠とする。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

// Store はCastVoteが必要とするトランザクション内の操作。
type Store interface {
	LockSession(ctx context.Context, id string) (*model.VotingSession, error)
	InsertVote(ctx context.Context, vote *model.Vote) error
}

// CastVote はトランザクション内でセッションの状態を再読み込みしてから票を1件記録する。
// 票の種類が不正な場合はInvalidVoteKind、セッションが存在しない場合はSessionNotFound、
// 受付中でない場合はSessionClosed、一意制約違反の場合はAlreadyVotedを返す。
// 呼び出し側はstoreのトランザクションがコミットされるまで票を集計対象として扱ってはならない。
func CastVote(ctx context.Context, store Store, sessionID, memberID, kind string, now time.Time) (*model.Vote, error) {
	voteKind, ok := model.ParseVoteKind(kind)
	if !ok {
		return nil, model.NewInvalidVoteKindError(kind)
	}

	// セッション行をロックし、事前チェック後に確定されていないことを保証する
	session, err := store.LockSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	if !session.IsOpen() {
		return nil, model.NewSessionClosedError()
	}

	vote := &model.Vote{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		MemberID:  memberID,
		Kind:      voteKind,
		CastAt:    now,
	}
	if err := store.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyVotedError()
		}
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	return vote, nil
}
