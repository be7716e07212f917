package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBReadRetries  int
	DBRetryBackoff time.Duration

	// Token
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitVote    int

	// Worker
	SweepInterval      time.Duration
	SweepMaxConcurrent int
	ReconcileInterval  time.Duration

	// Bootstrap
	BootstrapAdminName     string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBReadRetries = getEnvInt("DB_READ_RETRIES", 3)
	cfg.DBRetryBackoff = getEnvDuration("DB_RETRY_BACKOFF", 100*time.Millisecond)
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "pro-voto")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 12*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitVote = getEnvInt("RATE_LIMIT_VOTE", 30)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", time.Minute)
	cfg.SweepMaxConcurrent = getEnvInt("SWEEP_MAX_CONCURRENT", 4)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", time.Hour)
	cfg.BootstrapAdminName = getEnvString("BOOTSTRAP_ADMIN_NAME", "")
	cfg.BootstrapAdminEmail = getEnvString("BOOTSTRAP_ADMIN_EMAIL", "")
	cfg.BootstrapAdminPassword = getEnvString("BOOTSTRAP_ADMIN_PASSWORD", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// BootstrapAdminConfigured は初期管理者の作成に必要な値がすべて揃っているかを返す。
func (c *Config) BootstrapAdminConfigured() bool {
	return c.BootstrapAdminName != "" && c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
