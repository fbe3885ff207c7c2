// Package app はアプリケーションの初期化、依存関係のワイヤリング、サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/eventhub/internal/auth"
	"github.com/hitoshi/eventhub/internal/config"
	"github.com/hitoshi/eventhub/internal/database"
	"github.com/hitoshi/eventhub/internal/event"
	"github.com/hitoshi/eventhub/internal/handler"
	"github.com/hitoshi/eventhub/internal/logger"
	"github.com/hitoshi/eventhub/internal/metrics"
	"github.com/hitoshi/eventhub/internal/middleware"
	"github.com/hitoshi/eventhub/internal/repository"
	"github.com/hitoshi/eventhub/internal/security"
	"github.com/hitoshi/eventhub/internal/user"
	"github.com/hitoshi/eventhub/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

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

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

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
			port = "9090"
		}
		return runHealthcheck(port)
	}

	var migrateReq MigrateRequest
	if cmd == CommandMigrate {
		req, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		migrateReq = req
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", string(cfg.StorageBackend)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, migrateReq)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, nil)
	}
}

// storage は選択されたバックエンドのリポジトリ群。
type storage struct {
	users  repository.UserRepository
	events repository.EventRepository
	pinger repository.Pinger
	close  func() error
}

// openStorage は設定に応じてリポジトリを初期化する。
// postgresの場合は接続を確認し、AUTO_MIGRATEが有効ならマイグレーションを適用する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageBackend == config.StorageMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		store := repository.NewMemoryStore()
		return &storage{
			users:  store.Users(),
			events: store.Events(),
			pinger: store,
			close:  func() error { return nil },
		}, nil
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	// 2. 必要に応じてマイグレーション
	if cfg.AutoMigrate {
		if err := runMigrate(cfg, MigrateRequest{Action: MigrateUp}); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &storage{
		users:  repository.NewPostgresUserRepo(db),
		events: repository.NewPostgresEventRepo(db),
		pinger: db,
		close:  db.Close,
	}, nil
}

// newRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 戻り値の関数でレートリミッターのバックグラウンド処理を停止する。
func newRouter(cfg *config.Config, st *storage, reg *prometheus.Registry) (http.Handler, func(), error) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. 認証
	v := validation.New()
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	authService := auth.NewService(st.users, hasher, tokens, v, collector)

	// 3. ドメインサービス
	eventService := event.NewService(st.events, v, security.NewContentSanitizer())
	userService := user.NewService(st.users, hasher, v)

	// 4. ルーター
	limiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Errors:            middleware.NewErrorTranslator(collector),
		Authenticator:     authService,
		RateLimiter:       limiter,
		HTTPRecorder:      collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HealthChecker:     st.pinger,
		MetricsHandler:    metrics.Handler(reg),
		PublicEventList:   cfg.PublicEventList,
		AuthService:       authService,
		EventService:      eventService,
		UserService:       userService,
	})

	return router, limiter.Stop, nil
}

// serve はAPIサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンを行う。
// listenerがnilの場合はSERVER_PORTで待ち受ける。
func serve(ctx context.Context, cfg *config.Config, listener net.Listener) error {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, stopLimiter, err := newRouter(cfg, st, reg)
	if err != nil {
		return err
	}
	defer stopLimiter()

	if listener == nil {
		listener, err = net.Listen("tcp", ":"+cfg.ServerPort)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// runMigrate はデータベースマイグレーションを実行する。
// upは未適用のマイグレーションを順番に適用し、downは直近のものから巻き戻す。
func runMigrate(cfg *config.Config, req MigrateRequest) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=%s", config.StoragePostgres)
	}

	slog.Info("running database migrations",
		slog.String("action", string(req.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch req.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, req.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", req.Steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(target string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
