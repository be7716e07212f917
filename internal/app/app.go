// Package app はサブコマンドの解析と各起動モードの依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/auth"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/config"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/database"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/handler"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/logger"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/member"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/metrics"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/middleware"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/proposal"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/security"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/voting"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/worker/reconcile"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/worker/sweep"
)

// shutdownTimeout はグレースフルシャットダウンの最大待機時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandBootstrapAdmin:
		return runBootstrapAdmin(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
// プロセスごとに1回だけ呼び、得られたハンドルを各リポジトリに明示的に渡す。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("max_open_conns", cfg.DBMaxOpenConns),
	)
	return db, nil
}

// stores はPostgreSQLリポジトリ一式を保持する。
type stores struct {
	members   *repository.PostgresMemberRepo
	proposals *repository.PostgresProposalRepo
	sessions  *repository.PostgresSessionRepo
	uow       *repository.PostgresUnitOfWork
}

func newStores(db *sql.DB, cfg *config.Config) stores {
	retry := repository.RetryPolicy{
		Attempts: cfg.DBReadRetries,
		Backoff:  cfg.DBRetryBackoff,
	}
	return stores{
		members:   repository.NewPostgresMemberRepo(db, retry),
		proposals: repository.NewPostgresProposalRepo(db, retry),
		sessions:  repository.NewPostgresSessionRepo(db, retry),
		uow:       repository.NewPostgresUnitOfWork(db),
	}
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリとメトリクスの初期化
	st := newStores(db, cfg)
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	authService := auth.NewService(st.members, tokens)
	controller := voting.NewController(st.uow, st.sessions, st.proposals, st.members, collector)
	proposalService := proposal.NewService(st.proposals, st.sessions, security.NewContentSanitizer())
	memberService := member.NewService(st.members)

	// 4. ルーターの構築（レート制限はメンバーごと、1分あたりのリクエスト数で設定する）
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitVote))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker:  db,
		MetricsGather:  reg,
		StatusRecorder: collector,

		AuthService:     authService,
		SessionService:  controller,
		ProposalService: proposalService,
		MemberService:   memberService,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 定足数スイープと票数の整合性修復をerrgroupで並行に実行し、
// ctxがキャンセルされると両方の停止を待って戻る。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 依存関係の初期化
	st := newStores(db, cfg)
	collector := metrics.NewCollector(newRegistry())
	controller := voting.NewController(st.uow, st.sessions, st.proposals, st.members, collector)

	sweeper := sweep.NewSweeper(st.sessions, controller, collector, slog.Default(), cfg.SweepMaxConcurrent)
	reconcileJob := reconcile.NewJob(db, collector, slog.Default())

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Int("sweep_max_concurrent", cfg.SweepMaxConcurrent),
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
	)

	// 3. ジョブの起動
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Start(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		reconcileJob.Start(gctx, cfg.ReconcileInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runBootstrapAdmin はBOOTSTRAP_ADMIN_*の値で最初の管理者を作成する。
// 有効な管理者がすでに存在する場合はエラーを返す。
func runBootstrapAdmin(ctx context.Context, cfg *config.Config) error {
	if !cfg.BootstrapAdminConfigured() {
		return errors.New("BOOTSTRAP_ADMIN_NAME, BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	st := newStores(db, cfg)
	admin, err := member.NewService(st.members).BootstrapAdmin(ctx,
		cfg.BootstrapAdminName, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin failed: %w", err)
	}

	slog.Info("bootstrap admin created",
		slog.String("member_id", admin.ID),
		slog.String("email", admin.Email),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
