package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/metrics"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/middleware"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// healthCheckTimeout は/healthでのストア疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はストアの疎通を確認する。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker  HealthChecker
	MetricsGather  prometheus.Gatherer
	StatusRecorder middleware.HTTPStatusRecorder

	// ドメインサービス
	AuthService     AuthServiceInterface
	SessionService  SessionServiceInterface
	ProposalService ProposalServiceInterface
	MemberService   MemberServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// /health、/metrics、/auth/login は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	sessionHandler := NewSessionHandler(deps.SessionService)
	proposalHandler := NewProposalHandler(deps.ProposalService)
	memberHandler := NewMemberHandler(deps.MemberService)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsGather != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGather))
	}
	r.Post("/auth/login", authHandler.Login)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/me", authHandler.Me)

		// 投票セッション
		r.Route("/api/sessions", func(r chi.Router) {
			r.With(middleware.RequireRole(model.RoleAdmin)).Post("/", sessionHandler.OpenSession)
			r.Get("/", sessionHandler.ListSessions)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				// 投票専用レート制限を追加
				r.With(deps.RateLimiter.VoteMiddleware()).Post("/votes", sessionHandler.RegisterVote)
				r.With(middleware.RequireRole(model.RoleAdmin)).Post("/finalize", sessionHandler.FinalizeSession)
			})
		})

		// 議案
		r.Route("/api/proposals", func(r chi.Router) {
			r.With(middleware.RequireRole(model.RoleAdmin)).Post("/", proposalHandler.CreateProposal)
			r.Get("/", proposalHandler.ListProposals)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", proposalHandler.GetProposal)
				r.With(middleware.RequireRole(model.RoleAdmin)).Patch("/", proposalHandler.UpdateProposal)
				r.Get("/sessions", proposalHandler.ListProposalSessions)
			})
		})

		// メンバー管理（管理者のみ）
		r.Route("/api/members", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Post("/", memberHandler.CreateMember)
			r.Get("/", memberHandler.ListMembers)
			r.Delete("/{id}", memberHandler.DeactivateMember)
		})
	})

	return r
}

// healthHandler はストアに疎通できれば200、できなければ503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
