package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアのドライバー名。
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver  string
	DatabaseURL  string
	DatabasePath string

	// Upstream
	YouTubeAPIKey        string
	GeminiAPIKey         string
	GeminiModel          string
	ArxivBaseURL         string
	YouTubeBaseURL       string
	GeminiBaseURL        string
	UpstreamTimeout      time.Duration
	UpstreamMaxSize      int64
	UpstreamAllowPrivate bool
	ArxivMinInterval     time.Duration
	SummaryTimeout       time.Duration

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitSummary int

	// Dashboard
	DashboardIdleTTL       time.Duration
	DashboardSweepInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort      string
	BaseURL         string
	ShutdownTimeout time.Duration

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 値の組み合わせが不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	cfg := &Config{}

	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", StoreDriverSQLite))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DatabasePath = getEnvString("DATABASE_PATH", "./data/robodigest.db")

	switch cfg.StoreDriver {
	case StoreDriverSQLite, StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q (allowed: sqlite, postgres, memory)", cfg.StoreDriver)
	}

	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q (allowed: debug, info, warn, error)", cfg.LogLevel)
	}

	// APIキーは任意。未設定なら該当機能が未設定扱いになる
	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.ArxivBaseURL = getEnvString("ARXIV_BASE_URL", "http://export.arxiv.org/api/query")
	cfg.YouTubeBaseURL = getEnvString("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3/search")
	cfg.GeminiBaseURL = getEnvString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/")
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second)
	cfg.UpstreamMaxSize = getEnvInt64("UPSTREAM_MAX_SIZE", 5242880)
	cfg.UpstreamAllowPrivate = getEnvBool("UPSTREAM_ALLOW_PRIVATE", false)
	cfg.ArxivMinInterval = getEnvDuration("ARXIV_MIN_INTERVAL", 3*time.Second)
	cfg.SummaryTimeout = getEnvDuration("SUMMARY_TIMEOUT", 60*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSummary = getEnvInt("RATE_LIMIT_SUMMARY", 20)
	cfg.DashboardIdleTTL = getEnvDuration("DASHBOARD_IDLE_TTL", 30*time.Minute)
	cfg.DashboardSweepInterval = getEnvDuration("DASHBOARD_SWEEP_INTERVAL", 5*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.BaseURL, "https://"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
