// Package voting は投票セッションのライフサイクル（開始・投票・確定）を管理する。
// 票の記録、再集計、定足数判定、自動確定は1つのトランザクション内で行い、
// セッション行のロックと条件付き更新により二重確定を防ぐ。
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/auth"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/ledger"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/tally"
)

// Recorder はライフサイクルイベントのメトリクスを記録する。
type Recorder interface {
	VoteCast(kind model.VoteKind)
	VoteRejected(reason string)
	SessionOpened()
	SessionFinalized(result model.SessionResult, trigger model.FinalizeTrigger)
	ObserveTx(operation string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) VoteCast(model.VoteKind) {}
func (nopRecorder) VoteRejected(string) {}
func (nopRecorder) SessionOpened() {}
func (nopRecorder) SessionFinalized(model.SessionResult, model.FinalizeTrigger) {}
func (nopRecorder) ObserveTx(string, time.Duration) {}

// VoteOutcome はRegisterVoteの結果。
type VoteOutcome struct {
	Vote      *model.Vote
	Finalized bool
	Counters  model.Tally
	Result    model.SessionResult
	Session   *model.VotingSession
}

// Controller は投票セッションのライフサイクルを管理する。
// すべての確定経路（手動確定、投票時の自動確定、定期スイープ）はこのControllerを通る。
type Controller struct {
	uow       repository.UnitOfWork
	sessions  repository.SessionReader
	proposals repository.ProposalRepository
	members   repository.MemberRepository
	metrics   Recorder
	now       func() time.Time
}

// NewController はControllerを生成する。metricsがnilの場合は記録しない。
func NewController(
	uow repository.UnitOfWork,
	sessions repository.SessionReader,
	proposals repository.ProposalRepository,
	members repository.MemberRepository,
	metrics Recorder,
) *Controller {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Controller{
		uow:       uow,
		sessions:  sessions,
		proposals: proposals,
		members:   members,
		metrics:   metrics,
		now:       time.Now,
	}
}

// OpenSession は議案の投票セッションを開始し、議案の状態をvotingにする。
// 両方の書き込みは1つのトランザクションで行う。
func (c *Controller) OpenSession(ctx context.Context, actor *model.Member, proposalID string) (*model.VotingSession, error) {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateID("proposalId", proposalID); err != nil {
		return nil, err
	}

	session := &model.VotingSession{
		ID:         uuid.NewString(),
		ProposalID: proposalID,
		StartedAt:  c.now(),
		Result:     model.SessionResultInProgress,
	}

	err := c.withinTx(ctx, "open_session", func(ctx context.Context, store repository.VotingStore) error {
		proposal, err := store.LockProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("failed to lock proposal: %w", err)
		}
		if proposal == nil {
			return model.NewProposalNotFoundError(proposalID)
		}

		open, err := store.HasOpenSession(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("failed to check open session: %w", err)
		}
		if open || proposal.Status == model.ProposalStatusVoting {
			return model.NewSessionAlreadyOpenError()
		}
		if proposal.Status != model.ProposalStatusPending {
			return model.NewProposalNotEligibleError(proposal.Status)
		}

		if err := store.CreateSession(ctx, session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewSessionAlreadyOpenError()
			}
			return fmt.Errorf("failed to create session: %w", err)
		}
		if err := store.UpdateProposalStatus(ctx, proposalID, model.ProposalStatusVoting); err != nil {
			return fmt.Errorf("failed to mark proposal as voting: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.SessionOpened()
	slog.Info("投票セッションを開始しました",
		slog.String("session_id", session.ID),
		slog.String("proposal_id", proposalID),
		slog.String("actor_id", actor.ID),
	)
	return session, nil
}

// RegisterVote は票を記録し、カウンタを再計算し、定足数に達した場合はセッションを自動確定する。
// 記録・再集計・定足数判定・確定は1つのトランザクションで行う。
func (c *Controller) RegisterVote(ctx context.Context, actor *model.Member, sessionID, kind string) (*VoteOutcome, error) {
	if err := auth.Authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if err := validateID("sessionId", sessionID); err != nil {
		return nil, err
	}

	var outcome VoteOutcome
	err := c.withinTx(ctx, "register_vote", func(ctx context.Context, store repository.VotingStore) error {
		outcome = VoteOutcome{}

		vote, err := ledger.CastVote(ctx, store, sessionID, actor.ID, kind, c.now())
		if err != nil {
			return err
		}
		counters, err := tally.UpdateCounters(ctx, store, sessionID)
		if err != nil {
			return err
		}

		outcome.Vote = vote
		outcome.Counters = counters
		outcome.Result = model.SessionResultInProgress

		eligible, err := store.CountEligibleMembers(ctx)
		if err != nil {
			return fmt.Errorf("failed to count eligible members: %w", err)
		}
		if !tally.QuorumReached(counters, eligible) {
			return nil
		}

		closed, err := c.finalizeLocked(ctx, store, sessionID)
		if err != nil {
			return err
		}
		outcome.Finalized = true
		outcome.Result = closed.Result
		outcome.Counters = closed.Counters
		outcome.Session = closed
		return nil
	})
	if err != nil {
		c.metrics.VoteRejected(rejectionReason(err))
		return nil, err
	}

	c.metrics.VoteCast(outcome.Vote.Kind)
	slog.Info("票を記録しました",
		slog.String("session_id", sessionID),
		slog.String("member_id", actor.ID),
		slog.String("kind", string(outcome.Vote.Kind)),
	)
	if outcome.Finalized {
		c.recordFinalized(outcome.Session, model.FinalizeTriggerQuorum)
	}
	return &outcome, nil
}

// FinalizeSession は管理者がセッションを確定する。
// 既に確定済みの場合はAlreadyFinalizedを返す。
func (c *Controller) FinalizeSession(ctx context.Context, actor *model.Member, sessionID string) (*model.VotingSession, error) {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateID("sessionId", sessionID); err != nil {
		return nil, err
	}

	var closed *model.VotingSession
	err := c.withinTx(ctx, "finalize_session", func(ctx context.Context, store repository.VotingStore) error {
		session, err := store.LockSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if session == nil {
			return model.NewSessionNotFoundError(sessionID)
		}
		if !session.IsOpen() {
			return model.NewAlreadyFinalizedError()
		}

		closed, err = c.finalizeLocked(ctx, store, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.recordFinalized(closed, model.FinalizeTriggerAdmin)
	return closed, nil
}

// FinalizeByQuorum は定足数に達しているセッションを確定する。定期スイープから呼ばれる。
// 定足数に達していない場合はfinalized=falseを返し、何も変更しない。
// 既に確定済みの場合はAlreadyFinalizedを返す。
func (c *Controller) FinalizeByQuorum(ctx context.Context, sessionID string) (*model.VotingSession, bool, error) {
	var closed *model.VotingSession
	err := c.withinTx(ctx, "finalize_by_quorum", func(ctx context.Context, store repository.VotingStore) error {
		closed = nil

		session, err := store.LockSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if session == nil {
			return model.NewSessionNotFoundError(sessionID)
		}
		if !session.IsOpen() {
			return model.NewAlreadyFinalizedError()
		}

		counters, err := tally.Recount(ctx, store, sessionID)
		if err != nil {
			return err
		}
		eligible, err := store.CountEligibleMembers(ctx)
		if err != nil {
			return fmt.Errorf("failed to count eligible members: %w", err)
		}
		if !tally.QuorumReached(counters, eligible) {
			return nil
		}

		closed, err = c.finalizeLocked(ctx, store, sessionID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if closed == nil {
		return nil, false, nil
	}

	c.recordFinalized(closed, model.FinalizeTriggerSweep)
	return closed, true, nil
}

// finalizeLocked はロック済みのセッションを台帳から再集計した結果で確定し、議案に結果を反映する。
// 条件付き更新が0件の場合（他のトランザクションが先に確定した場合）はAlreadyFinalizedを返す。
func (c *Controller) finalizeLocked(ctx context.Context, store repository.VotingStore, sessionID string) (*model.VotingSession, error) {
	final, err := tally.Recount(ctx, store, sessionID)
	if err != nil {
		return nil, err
	}
	result := tally.DecideOutcome(final.Favor, final.Against)

	closed, ok, err := store.CloseSession(ctx, sessionID, result, final)
	if err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	if !ok {
		return nil, model.NewAlreadyFinalizedError()
	}

	if err := store.UpdateProposalStatus(ctx, closed.ProposalID, result.ProposalStatus()); err != nil {
		return nil, fmt.Errorf("failed to propagate result to proposal: %w", err)
	}
	return closed, nil
}

func (c *Controller) recordFinalized(session *model.VotingSession, trigger model.FinalizeTrigger) {
	c.metrics.SessionFinalized(session.Result, trigger)
	slog.Info("投票セッションを確定しました",
		slog.String("session_id", session.ID),
		slog.String("proposal_id", session.ProposalID),
		slog.String("result", string(session.Result)),
		slog.String("trigger", string(trigger)),
		slog.Int("favor", session.Counters.Favor),
		slog.Int("against", session.Counters.Against),
		slog.Int("abstain", session.Counters.Abstain),
	)
}

// withinTx はトランザクションの所要時間を記録する。
func (c *Controller) withinTx(ctx context.Context, operation string, fn func(ctx context.Context, store repository.VotingStore) error) error {
	start := time.Now()
	err := c.uow.WithinTx(ctx, fn)
	c.metrics.ObserveTx(operation, time.Since(start))
	return err
}

// validateID はIDがUUID形式であることを検証する。
func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError(field)
	}
	return nil
}

// rejectionReason はメトリクス用に拒否理由を分類する。
func rejectionReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeAlreadyVoted:
			return "already_voted"
		case model.ErrCodeSessionClosed, model.ErrCodeAlreadyFinalized:
			return "session_closed"
		case model.ErrCodeSessionNotFound:
			return "session_not_found"
		case model.ErrCodeInvalidVoteKind:
			return "invalid_kind"
		}
		return "invalid"
	}
	if repository.IsTransient(err) {
		return "unavailable"
	}
	return "error"
}
