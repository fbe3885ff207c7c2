package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/model"
	"github.com/hitoshi/eventhub/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Errors            *middleware.ErrorTranslator
	Authenticator     middleware.Authenticator
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder
	CORSAllowedOrigin string

	// 公開エンドポイント
	HealthChecker  repository.Pinger
	MetricsHandler http.Handler

	// GET /events を未認証でも許可する
	PublicEventList bool

	// サービス
	AuthService  AuthServiceInterface
	EventService EventServiceInterface
	UserService  UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// 保護ルートではさらに Auth → RateLimit(General) → RequireRole（管理者ルートのみ）を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errs := deps.Errors
	if errs == nil {
		errs = middleware.NewErrorTranslator(nil)
	}

	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.Write(w, r, model.NewNotFoundError("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	authHandler := NewAuthHandler(deps.AuthService, errs)
	eventHandler := NewEventHandler(deps.EventService, errs)
	userHandler := NewUserHandler(deps.UserService, errs)

	requireAuth := middleware.NewAuthMiddleware(deps.Authenticator, errs)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.Authenticator, errs)
	general := deps.RateLimiter.GeneralMiddleware()

	// --- 認証不要のルート ---

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker).Check)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		// 認証情報を受け付けるエンドポイントはIP単位で制限する
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.With(requireAuth, general).Get("/me", authHandler.Me)
	})

	// --- イベント ---
	r.Route("/events", func(r chi.Router) {
		listAuth := requireAuth
		if deps.PublicEventList {
			listAuth = optionalAuth
		}
		r.With(listAuth, general).Get("/", eventHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(general)

			r.Post("/", eventHandler.Create)
			r.Get("/{id}", eventHandler.Get)
			r.Put("/{id}", eventHandler.Update)
			r.Delete("/{id}", eventHandler.Delete)
		})
	})

	// --- ユーザー ---
	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(general)

		r.Get("/profile", userHandler.GetProfile)
		r.Patch("/profile", userHandler.UpdateProfile)

		// 管理者のみ
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin, errs))

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Patch("/{id}/role", userHandler.UpdateRole)
		})
	})

	return r
}
