// Package member はメンバー（議員・管理者）管理のドメインロジックを提供する。
package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/auth"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 8

// CreateInput はメンバー作成の入力。
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Service はメンバー管理のサービス層。
type Service struct {
	repo repository.MemberRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.MemberRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateMember は管理者がメンバーを作成する。
func (s *Service) CreateMember(ctx context.Context, actor *model.Member, in CreateInput) (*model.Member, error) {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}

	m, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	slog.Info("メンバーを作成しました",
		slog.String("member_id", m.ID),
		slog.String("role", string(m.Role)),
		slog.String("actor_id", actor.ID),
	)
	return m, nil
}

// ListMembers はメンバー一覧を返す。管理者のみ実行できる。
func (s *Service) ListMembers(ctx context.Context, actor *model.Member, includeInactive bool) ([]*model.Member, error) {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	members, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// DeactivateMember はメンバーを論理削除する。自分自身は無効化できない。
// 投票履歴は保持される。
func (s *Service) DeactivateMember(ctx context.Context, actor *model.Member, id string) error {
	if err := auth.Authorize(actor, model.RoleAdmin); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError("memberId")
	}
	if id == actor.ID {
		return model.NewInvalidInputError("自分自身を無効化することはできません")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewMemberNotFoundError(id)
		}
		return fmt.Errorf("failed to deactivate member: %w", err)
	}

	slog.Info("メンバーを無効化しました",
		slog.String("member_id", id),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

// BootstrapAdmin は有効な管理者が存在しない場合のみ最初の管理者を作成する。
func (s *Service) BootstrapAdmin(ctx context.Context, name, email, password string) (*model.Member, error) {
	admins, err := s.repo.CountActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count admins: %w", err)
	}
	if admins > 0 {
		return nil, model.NewAdminExistsError()
	}

	m, err := s.create(ctx, CreateInput{Name: name, Email: email, Password: password, Role: string(model.RoleAdmin)})
	if err != nil {
		return nil, err
	}

	slog.Info("最初の管理者を作成しました", slog.String("member_id", m.ID))
	return m, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (*model.Member, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewInvalidInputError("名前は必須です")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, ok := model.ParseRole(in.Role)
	if !ok {
		return nil, model.NewInvalidRoleError(in.Role)
	}
	if len(in.Password) < minPasswordLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("パスワードは%d文字以上にしてください", minPasswordLength))
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, model.NewInvalidInputError("パスワードが長すぎます")
		}
		return nil, err
	}

	now := s.now()
	m := &model.Member{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	return m, nil
}

// normalizeEmail はメールアドレスを検証し、小文字に正規化する。
func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", model.NewInvalidInputError("メールアドレスの形式が正しくありません")
	}
	return strings.ToLower(addr.Address), nil
}
