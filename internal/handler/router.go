package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/agencysite/internal/metrics"
	"github.com/hitoshi/agencysite/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionValidator  middleware.SessionValidator
	Cookie            middleware.CookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	RequireAdmin      bool
	// TrustProxy がtrueの場合、X-Forwarded-For等からクライアントIPを決定する
	TrustProxy        bool
	Logger            *slog.Logger

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ハンドラー
	AuthService AuthServiceInterface
	Forms       *FormHandler
	Admin       *AdminHandler
	Pages       *PageHandler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	(RealIP) → Recovery → Logging → Metrics → SecurityHeaders → CORS → Gate
//
// /api/* はゲートの対象外で、管理APIはSessionMiddlewareで独立に認証する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(metrics.HTTPMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Cookie.Secure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewGateMiddleware(deps.SessionValidator, middleware.GateConfig{
		RequireAdmin: deps.RequireAdmin,
		Metrics:      collector,
	}))

	authHandler := NewAuthHandler(deps.AuthService, AuthHandlerConfig{
		Cookie:  deps.Cookie,
		Metrics: collector,
	})
	sessionMW := middleware.NewSessionMiddleware(deps.SessionValidator)
	requireAdmin := middleware.NewRequireAdminMiddleware()
	csrf := middleware.NewCSRFMiddleware(deps.Cookie)

	// --- 運用エンドポイント ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Handle("/static/*", StaticHandler())

	// --- ページ（アクセス制御はゲート） ---
	r.Get("/", deps.Pages.Home)
	r.Get("/login", deps.Pages.Login)
	r.Get("/signup", deps.Pages.Signup)
	r.Route("/admin", func(r chi.Router) {
		// 管理画面のスクリプトが使うCSRFトークンCookieを発行する
		r.Use(csrf)
		r.Get("/", deps.Pages.AdminDashboard)
		r.Get("/contacts", deps.Pages.AdminContacts)
		r.Get("/subscribers", deps.Pages.AdminSubscribers)
		r.Get("/users", deps.Pages.AdminUsers)
	})

	// --- OAuthフロー ---
	r.Route("/auth/google", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Get("/login", authHandler.GoogleLogin)
		r.Get("/callback", authHandler.GoogleCallback)
	})

	// --- 公開API ---
	r.Get("/api/content", deps.Pages.ContentAPI)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.Cookie))

	r.Route("/api/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
		r.With(sessionMW).Get("/me", authHandler.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.FormMiddleware())
		r.Post("/api/contact", deps.Forms.SubmitContact)
		r.Post("/api/newsletter", deps.Forms.Subscribe)
	})

	// --- 管理API ---
	// ミドルウェアスタック: Session → (RequireAdmin) → CSRF
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(sessionMW)
		if deps.RequireAdmin {
			r.Use(requireAdmin)
		}
		r.Use(csrf)

		r.Get("/contacts", deps.Admin.ListContacts)
		r.Get("/subscribers", deps.Admin.ListSubscribers)
		r.Get("/users", deps.Admin.ListUsers)
		r.Get("/stats", deps.Admin.Stats)

		// ロール変更は設定によらず管理者のみ
		r.With(requireAdmin).Patch("/users/{id}/role", deps.Admin.UpdateUserRole)
	})

	return r
}
