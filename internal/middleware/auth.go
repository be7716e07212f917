// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// memberContextKey はリクエストコンテキストに認証済みメンバーを格納するためのキー。
	memberContextKey = contextKey("member")
	// requestInfoContextKey はロギングミドルウェアと共有するリクエスト情報のキー。
	requestInfoContextKey = contextKey("request_info")
)

// requestInfo は内側のミドルウェアで判明した情報を外側のロギングへ渡す。
type requestInfo struct {
	memberID string
}

// Authenticator はアクセストークンからメンバーを解決する。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Member, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みメンバーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			member, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				var apiErr *model.APIError
				switch {
				case errors.As(err, &apiErr):
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				case repository.IsTransient(err):
					WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
				default:
					slog.Error("failed to authenticate",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
				}
				return
			}

			if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok {
				info.memberID = member.ID
			}

			next.ServeHTTP(w, r.WithContext(ContextWithMember(r.Context(), member)))
		})
	}
}

// RequireRole は認証済みメンバーが指定ロールを満たさない場合に403を返すミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(required model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member, ok := MemberFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !member.Role.Satisfies(required) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// MemberFromContext はリクエストコンテキストから認証済みメンバーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func MemberFromContext(ctx context.Context) (*model.Member, bool) {
	member, ok := ctx.Value(memberContextKey).(*model.Member)
	if !ok || member == nil {
		return nil, false
	}
	return member, true
}

// ContextWithMember はコンテキストに認証済みメンバーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithMember(ctx context.Context, member *model.Member) context.Context {
	return context.WithValue(ctx, memberContextKey, member)
}
