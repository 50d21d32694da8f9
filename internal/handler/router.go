package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/studentms/internal/metrics"
	"github.com/hitoshi/studentms/internal/middleware"
	"github.com/hitoshi/studentms/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	CORSAllowedOrigin string
	MaxBodyBytes      int64
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	Sessions          middleware.SessionResolver
	Bearer            middleware.BearerAuthenticator

	// 死活監視
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	AccountService AccountServiceInterface
	UserService    UserServiceInterface

	// リソース
	ResourceService ResourceServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → Metrics → SecurityHeaders → CORS → BodyLimit
//	認証が必要なルート: Auth → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）と登録・ログインは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewBodyLimitMiddleware(maxBody))

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Codec:    deps.AuthConfig.Codec,
		Sessions: deps.Sessions,
		Bearer:   deps.Bearer,
		Cookies:  deps.AuthConfig.Cookies,
	})
	csrfMiddleware := middleware.NewCSRFMiddleware(deps.CSRF)

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.AccountService, deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/", Live)
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Get("/google", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.With(csrfMiddleware).Post("/logout", authHandler.Logout)
		r.With(authMiddleware).Get("/me", authHandler.Me)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// ユーザー管理
		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.LoginMiddleware())
				r.Post("/register", userHandler.Register)
				r.Post("/login", userHandler.Login)
				r.Post("/refresh-token", userHandler.RefreshToken)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(deps.RateLimiter.GeneralMiddleware())
				r.Use(csrfMiddleware)
				r.Get("/me", userHandler.Me)
				r.Delete("/me", userHandler.Withdraw)
			})
		})

		// --- 認証が必要なリソースルート ---
		// ミドルウェアスタック: Auth → RateLimit(General) → CSRF
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(csrfMiddleware)

			for _, kind := range model.ResourceKinds {
				r.Mount("/"+string(kind), NewResourceHandler(kind, deps.ResourceService).Routes())
			}
		})
	})

	return r
}
