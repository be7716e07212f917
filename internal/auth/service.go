// Package auth はメンバーのログイン、アクセストークンの検証、ロールによる認可を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

// dummyHash は存在しないメールアドレスでもbcrypt比較を行い、応答時間を揃えるためのハッシュ。
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z0Lvs8UuFITJ9a2f5X4bq0Bq"

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Member    *model.Member
}

// Service は認証・認可に関するビジネスロジックを提供する。
type Service struct {
	members repository.MemberRepository
	tokens  *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(members repository.MemberRepository, tokens *TokenIssuer) *Service {
	return &Service{members: members, tokens: tokens}
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
// メンバーが存在しない、無効化されている、パスワードが一致しない場合はいずれもUnauthorizedを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewUnauthorizedError()
	}

	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find member by email: %w", err)
	}

	if member == nil {
		VerifyPassword(dummyHash, password)
		return nil, model.NewUnauthorizedError()
	}
	if !VerifyPassword(member.PasswordHash, password) || !member.Active {
		slog.Warn("ログインに失敗しました", slog.String("member_id", member.ID))
		return nil, model.NewUnauthorizedError()
	}

	token, expiresAt, err := s.tokens.Issue(member)
	if err != nil {
		return nil, err
	}

	slog.Info("ログインしました", slog.String("member_id", member.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Member: member}, nil
}

// Authenticate はアクセストークンを検証し、有効なメンバーを返す。
// トークンが不正・期限切れ、またはメンバーが存在しない・無効化されている場合はUnauthorizedを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Member, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if !errors.Is(err, ErrTokenExpired) && !errors.Is(err, ErrTokenInvalid) {
			return nil, err
		}
		return nil, model.NewUnauthorizedError()
	}

	member, err := s.members.FindByID(ctx, claims.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil || !member.Active {
		return nil, model.NewUnauthorizedError()
	}
	return member, nil
}

// Authorize はメンバーが要求ロールを満たすかを判定する。
// ストアにはアクセスしない。
func Authorize(member *model.Member, required model.Role) error {
	if member == nil || !member.Active {
		return model.NewUnauthorizedError()
	}
	if !member.Role.Satisfies(required) {
		return model.NewForbiddenError()
	}
	return nil
}
