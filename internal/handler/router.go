package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/robodigest/internal/middleware"
)

// HealthChecker はストアの疎通確認のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	CookieSecure      bool
	CookieDomain      string
	RateLimiter       *middleware.RateLimiter

	// ストアの疎通確認。nilならメモリストアとして常に正常
	HealthChecker HealthChecker
	// Prometheusスクレイプ用ハンドラー。nilなら/metricsを公開しない
	MetricsHandler http.Handler

	// 外部API中継
	Papers     PaperSearcher
	Videos     VideoSearcher
	Summarizer SummaryGenerator

	// ダッシュボード
	Dashboards DashboardRegistry
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → ClientScope → Logging → CSRF → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	sourceHandler := NewSourceHandler(deps.Papers, deps.Videos, deps.Summarizer)
	dashHandler := NewDashboardHandler(deps.Dashboards)
	csrfConfig := middleware.CSRFConfig{CookieSecure: deps.CookieSecure, CookieDomain: deps.CookieDomain}
	summaryLimit := deps.RateLimiter.SummaryMiddleware()

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewClientScopeMiddleware(middleware.ClientScopeConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
		}))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

		// 外部API中継（状態を持たない）
		r.Get("/api/news", sourceHandler.News)
		r.Get("/api/youtube", sourceHandler.YouTube)
		r.With(summaryLimit).Post("/api/summary", sourceHandler.Summary)

		// ダッシュボード
		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/", dashHandler.Get)
			r.Post("/search", dashHandler.Search)
			r.Put("/tab", dashHandler.SetTab)
			r.Put("/saved", dashHandler.SetSaved)
			r.Put("/sort", dashHandler.SetSort)
			r.Post("/videos/more", dashHandler.LoadMoreVideos)
			r.Post("/refresh", dashHandler.Refresh)
		})

		// ブックマーク
		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/", dashHandler.ListBookmarks)
			r.Post("/toggle", dashHandler.ToggleBookmark)
		})

		// 要約
		r.With(summaryLimit).Post("/api/items/summarize", dashHandler.Summarize)
	})

	return r
}

// healthHandler はストアへの疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
