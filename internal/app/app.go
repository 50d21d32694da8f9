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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/studentms/internal/auth"
	"github.com/hitoshi/studentms/internal/config"
	"github.com/hitoshi/studentms/internal/database"
	"github.com/hitoshi/studentms/internal/handler"
	"github.com/hitoshi/studentms/internal/logger"
	"github.com/hitoshi/studentms/internal/metrics"
	"github.com/hitoshi/studentms/internal/middleware"
	"github.com/hitoshi/studentms/internal/password"
	"github.com/hitoshi/studentms/internal/repository"
	"github.com/hitoshi/studentms/internal/resource"
	"github.com/hitoshi/studentms/internal/security"
	"github.com/hitoshi/studentms/internal/token"
	"github.com/hitoshi/studentms/internal/user"
	"github.com/hitoshi/studentms/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映
	level.Set(cfg.SlogLevel())

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
		slog.String("base_url", cfg.BaseURL),
		slog.String("user_store", cfg.UserStore),
		slog.String("session_store", cfg.SessionStore),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stores はUSER_STORE・SESSION_STOREに応じて選択したリポジトリ。
type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	closers  []func()
}

// Close は開いた外部接続を逆順に閉じる。
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores は設定に従ってユーザーストアとセッションストアを構築する。
// PostgreSQL以外を選んだ場合のみ追加の接続を開く。
func openStores(ctx context.Context, cfg *config.Config, db *sql.DB) (*stores, error) {
	s := &stores{}

	switch cfg.UserStore {
	case config.StoreMongo:
		mdb, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := mdb.Client().Disconnect(context.Background()); err != nil {
				slog.Error("failed to disconnect mongo", slog.String("error", err.Error()))
			}
		})

		mongoUsers := repository.NewMongoUserRepo(mdb)
		if err := mongoUsers.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.users = mongoUsers
		slog.Info("user store: mongo", slog.String("database", cfg.MongoDatabase))
	default:
		s.users = repository.NewPostgresUserRepo(db)
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		client, err := database.ConnectRedis(ctx, cfg.RedisURL, database.DefaultRedisOptions())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := client.Close(); err != nil {
				slog.Error("failed to close redis", slog.String("error", err.Error()))
			}
		})
		s.sessions = repository.NewRedisSessionRepo(client)
		slog.Info("session store: redis")
	default:
		s.sessions = repository.NewPostgresSessionRepo(db)
	}

	return s, nil
}

// newMetrics はPrometheusレジストリとコレクターを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// buildRouter は全依存関係をワイヤリングしてルーターを構築する。
func buildRouter(cfg *config.Config, db *sql.DB, st *stores, reg *prometheus.Registry, collector metrics.MetricsCollector, rateLimiter *middleware.RateLimiter) (http.Handler, error) {
	// 1. 暗号系コンポーネント
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}
	issuer, err := token.NewIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	codec, err := middleware.NewSessionCookieCodec(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cookie codec: %w", err)
	}

	// 2. リポジトリの初期化
	resourceRepo := repository.NewPostgresResourceRepo(db)

	// 3. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, st.users, st.sessions, issuer, hasher,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge, Metrics: collector},
	)

	resourceService := resource.NewService(resourceRepo, security.NewContentSanitizer())
	userService := user.NewService(st.users, st.sessions, resourceRepo)

	// 4. ルーターの構築
	cookies := middleware.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		CORSAllowedOrigin: cfg.CORSOrigin,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Sessions: authService,
		Bearer:   authService,

		HealthChecker: db,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL: cfg.BaseURL,
			Cookies: cookies,
			Codec:   codec,
		},

		AccountService:  authService,
		UserService:     handler.NewUserServiceAdapter(userService),
		ResourceService: handler.NewResourceServiceAdapter(resourceService),
	}

	return handler.NewRouter(deps), nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ストアの選択
	st, err := openStores(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer st.Close()

	// 3. メトリクスとレート制限
	reg, collector := newMetrics()
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	// 4. ルーターの構築
	router, err := buildRouter(cfg, db, st, reg, collector, rateLimiter)
	if err != nil {
		return err
	}

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの削除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	if cfg.SessionStore == config.StoreRedis {
		slog.Info("session store is redis; postgres sessions table is cleaned up for leftover rows only")
	}

	// 2. クリーンアップジョブの初期化
	_, collector := newMetrics()
	cleanupJob := cleanup.NewSessionCleanupJob(db, slog.Default(), collector)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.RunEvery(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
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
