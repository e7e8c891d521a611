// Package app はコマンドの解析、依存関係のワイヤリング、サーバーの起動を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/robodigest/internal/config"
	"github.com/hitoshi/robodigest/internal/dashboard"
	"github.com/hitoshi/robodigest/internal/database"
	"github.com/hitoshi/robodigest/internal/handler"
	"github.com/hitoshi/robodigest/internal/logger"
	"github.com/hitoshi/robodigest/internal/metrics"
	"github.com/hitoshi/robodigest/internal/middleware"
	"github.com/hitoshi/robodigest/internal/repository"
	"github.com/hitoshi/robodigest/internal/security"
	"github.com/hitoshi/robodigest/internal/source/arxiv"
	"github.com/hitoshi/robodigest/internal/source/youtube"
	"github.com/hitoshi/robodigest/internal/summarizer"
	"github.com/hitoshi/robodigest/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	logger.SetupDefault(w, cfg.LogLevel)
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
		slog.String("store_driver", cfg.StoreDriver),
		slog.Bool("youtube_configured", cfg.YouTubeAPIKey != ""),
		slog.Bool("gemini_configured", cfg.GeminiAPIKey != ""),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openedStore は開いたストアと、その疎通確認・終了処理をまとめたもの。
type openedStore struct {
	kv      repository.KVStore
	checker handler.HealthChecker // メモリストアではnil
	close   func() error
}

// openStore はSTORE_DRIVERに従ってストアを開き、マイグレーションを適用する。
func openStore(ctx context.Context, cfg *config.Config) (*openedStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("メモリストアを使用します。ブックマークは再起動で失われます")
		return &openedStore{
			kv:    repository.NewMemoryKVStore(),
			close: func() error { return nil },
		}, nil

	case config.StoreDriverPostgres:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return sqlStore(db, repository.NewPostgresKVStore(db)), nil

	default:
		db, err := database.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := database.RunSQLiteMigrations(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("sqlite store opened", slog.String("path", cfg.DatabasePath))
		return sqlStore(db, repository.NewSQLiteKVStore(db)), nil
	}
}

func sqlStore(db *sql.DB, kv repository.KVStore) *openedStore {
	return &openedStore{kv: kv, checker: db, close: db.Close}
}

// server はワイヤリング済みのHTTPハンドラーとバックグラウンドジョブ。
type server struct {
	handler http.Handler
	cleanup *cleanup.CleanupJob
	limiter *middleware.RateLimiter
}

// newServer は外部APIクライアント、ダッシュボード、ルーターを組み立てる。
// 外部APIのエンドポイントは起動時に検証し、不正なら起動しない。
func newServer(cfg *config.Config, store *openedStore, reg *prometheus.Registry) (*server, error) {
	log := slog.Default()

	guard := security.NewUpstreamGuard(cfg.UpstreamAllowPrivate)
	endpoints := map[string]string{
		"ARXIV_BASE_URL":   cfg.ArxivBaseURL,
		"YOUTUBE_BASE_URL": cfg.YouTubeBaseURL,
		"GEMINI_BASE_URL":  cfg.GeminiBaseURL,
	}
	for key, endpoint := range endpoints {
		if err := guard.ValidateEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	collector := metrics.NewCollector(reg)
	upstreamClient := guard.NewClient(cfg.UpstreamTimeout)

	papers := arxiv.NewClient(upstreamClient, log, collector, arxiv.Config{
		Endpoint:    cfg.ArxivBaseURL,
		MinInterval: cfg.ArxivMinInterval,
		MaxBodySize: cfg.UpstreamMaxSize,
	})
	videos := youtube.NewClient(upstreamClient, log, collector, youtube.Config{
		APIKey:      cfg.YouTubeAPIKey,
		Endpoint:    cfg.YouTubeBaseURL,
		MaxBodySize: cfg.UpstreamMaxSize,
	})
	// 要約は生成に時間がかかるため専用のタイムアウトを使う
	gemini := summarizer.NewClient(guard.NewClient(cfg.SummaryTimeout), log, collector, summarizer.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
	})

	registry := dashboard.NewRegistry(store.kv, dashboard.Deps{
		Papers:     papers,
		Videos:     videos,
		Summarizer: gemini,
		Logger:     log,
		Metrics:    collector,
	}, collector)

	cleanupJob := cleanup.NewCleanupJob(registry, log)
	cleanupJob.IdleTTL = cfg.DashboardIdleTTL

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSummary))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieSecure:      cfg.CookieSecure,
		CookieDomain:      cfg.CookieDomain,
		RateLimiter:       limiter,
		HealthChecker:     store.checker,
		MetricsHandler:    metrics.Handler(reg),
		Papers:            papers,
		Videos:            videos,
		Summarizer:        gemini,
		Dashboards:        registry,
	})

	return &server{handler: router, cleanup: cleanupJob, limiter: limiter}, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	srv, err := newServer(cfg, store, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.limiter.Stop()

	go srv.cleanup.Start(ctx, cfg.DashboardSweepInterval)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// 要約の生成を待つためSUMMARY_TIMEOUTより長くする
		WriteTimeout: cfg.SummaryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はストアのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。メモリストアでは何もしない。
func runMigrate(cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Info("memory store does not need migrations")
		return nil

	case config.StoreDriverPostgres:
		slog.Info("running database migrations",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

	default:
		slog.Info("running sqlite migrations", slog.String("path", cfg.DatabasePath))
		db, err := database.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.RunSQLiteMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
