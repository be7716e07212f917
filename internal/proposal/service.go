// Package proposal は議案管理のドメインロジックを提供する。
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/auth"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/security"
)

// maxTitleLength はタイトルの最大文字数。proposals.titleの列長と一致させる。
const maxTitleLength = 500

// UpdateInput は議案更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title  *string
	Body   *string
	Status *string
}

// Service は議案管理のサービス層。
type Service struct {
	repo      repository.ProposalRepository
	sessions  repository.SessionReader
	sanitizer security.ContentSanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ProposalRepository, sessions repository.SessionReader, sanitizer security.ContentSanitizer) *Service {
	return &Service{repo: repo, sessions: sessions, sanitizer: sanitizer, now: time.Now}
}

// Create は管理者が議案を提出する。状態はpendingで作成される。
func (s *Service) Create(ctx context.Context, actor *model.Member, title, body string) (*model.Proposal, error) {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	cleanTitle, err := s.cleanTitle(title)
	if err != nil {
		return nil, err
	}
	cleanBody := s.sanitizer.SanitizeBody(body)
	if cleanBody == "" {
		return nil, model.NewInvalidInputError("本文は必須です")
	}

	now := s.now()
	p := &model.Proposal{
		ID:          uuid.NewString(),
		Title:       cleanTitle,
		Body:        cleanBody,
		Status:      model.ProposalStatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	slog.Info("議案を作成しました",
		slog.String("proposal_id", p.ID),
		slog.String("actor_id", actor.ID),
	)
	return p, nil
}

// Get は議案を取得する。
func (s *Service) Get(ctx context.Context, actor *model.Member, id string) (*model.Proposal, error) {
	if err := auth.Authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInvalidIDError("proposalId")
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find proposal: %w", err)
	}
	if p == nil {
		return nil, model.NewProposalNotFoundError(id)
	}
	return p, nil
}

// List は議案一覧を返す。statusが空の場合は全件。
func (s *Service) List(ctx context.Context, actor *model.Member, status string) ([]*model.Proposal, error) {
	if err := auth.Authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}

	var filter *model.ProposalStatus
	if status != "" {
		st, ok := model.ParseProposalStatus(status)
		if !ok {
			return nil, model.NewInvalidStatusError(status)
		}
		filter = &st
	}

	proposals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	return proposals, nil
}

// Update はpending状態の議案を管理者が編集する。
// 状態はpending/approved/rejectedに変更できるが、votingへの変更はセッション開始時のみ行われる。
func (s *Service) Update(ctx context.Context, actor *model.Member, id string, in UpdateInput) (*model.Proposal, error) {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInvalidIDError("proposalId")
	}

	var update model.ProposalUpdate
	if in.Title != nil {
		t, err := s.cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		update.Title = &t
	}
	if in.Body != nil {
		b := s.sanitizer.SanitizeBody(*in.Body)
		if b == "" {
			return nil, model.NewInvalidInputError("本文は必須です")
		}
		update.Body = &b
	}
	if in.Status != nil {
		st, ok := model.ParseProposalStatus(*in.Status)
		if !ok || st == model.ProposalStatusVoting {
			return nil, model.NewInvalidStatusError(*in.Status)
		}
		update.Status = &st
	}
	if update.Title == nil && update.Body == nil && update.Status == nil {
		return nil, model.NewInvalidRequestError()
	}

	updated, err := s.repo.UpdatePending(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update proposal: %w", err)
	}
	if !updated {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find proposal: %w", err)
		}
		if existing == nil {
			return nil, model.NewProposalNotFoundError(id)
		}
		return nil, model.NewProposalNotEditableError()
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find proposal: %w", err)
	}
	if p == nil {
		return nil, model.NewProposalNotFoundError(id)
	}

	slog.Info("議案を更新しました",
		slog.String("proposal_id", id),
		slog.String("actor_id", actor.ID),
	)
	return p, nil
}

// ListSessions は議案の投票セッション履歴を返す。
func (s *Service) ListSessions(ctx context.Context, actor *model.Member, id string) ([]*model.VotingSession, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByProposal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposal sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) cleanTitle(raw string) (string, error) {
	t := s.sanitizer.SanitizeTitle(raw)
	if t == "" {
		return "", model.NewInvalidInputError("タイトルは必須です")
	}
	if utf8.RuneCountInString(t) > maxTitleLength {
		return "", model.NewInvalidInputError(fmt.Sprintf("タイトルは%d文字以内にしてください", maxTitleLength))
	}
	return t, nil
}
