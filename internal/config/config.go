package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// セッションストアとユーザーストアの選択肢
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// User directory
	UserStore     string `env:"USER_STORE" envDefault:"postgres"`
	MongoURL      string `env:"MONGO_URL" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"studentms"`

	// OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required,notEmpty"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL,required,notEmpty"`

	// Token
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Password hashing (bcrypt cost)
	BcryptCost int `env:"SALT" envDefault:"10"`

	// Session
	SessionSecret          string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	SessionStore           string        `env:"SESSION_STORE" envDefault:"postgres"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
	RedisURL               string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Rate Limit (req/min)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`

	// Request body
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"16384"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("required environment variables are not set: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.SessionStore = strings.ToLower(cfg.SessionStore)
	cfg.UserStore = strings.ToLower(cfg.UserStore)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は値の組み合わせを検証する。
func (c *Config) Validate() error {
	switch c.SessionStore {
	case StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("invalid SESSION_STORE: %q (valid options: postgres, redis)", c.SessionStore)
	}

	switch c.UserStore {
	case StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("invalid USER_STORE: %q (valid options: postgres, mongo)", c.UserStore)
	}

	// bcryptの許容範囲は4〜31
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid SALT: %d (must be between 4 and 31)", c.BcryptCost)
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("invalid SESSION_MAX_AGE: %d", c.SessionMaxAge)
	}

	if c.SessionCleanupInterval <= 0 {
		return fmt.Errorf("invalid SESSION_CLEANUP_INTERVAL: %s", c.SessionCleanupInterval)
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid MAX_BODY_BYTES: %d", c.MaxBodyBytes)
	}

	return nil
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。未知の値はInfoとして扱う。
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
