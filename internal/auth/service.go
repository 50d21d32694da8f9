// Package auth はGoogle OAuthによるフェデレーテッドログイン、ローカル認証、
// トークン発行、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/studentms/internal/metrics"
	"github.com/hitoshi/studentms/internal/model"
	"github.com/hitoshi/studentms/internal/repository"
	"github.com/hitoshi/studentms/internal/token"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*model.FederatedProfile, error)
}

// TokenIssuer はトークンペアの発行と検証のインターフェース。
type TokenIssuer interface {
	Issue(userID string) (*model.TokenPair, error)
	Parse(raw string, kind token.Kind) (*token.Claims, error)
}

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, hash, plain string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	Metrics       metrics.MetricsCollector
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User   *model.User
	Tokens *model.TokenPair
}

// CallbackResult はOAuthコールバック成功時の結果。
type CallbackResult struct {
	LoginResult
	Session *model.Session
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      TokenIssuer
	hasher      PasswordHasher
	config      ServiceConfig
	metrics     metrics.MetricsCollector

	// 同一メールアドレスの同時プロビジョニングを1回にまとめる
	provisioning singleflight.Group
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens TokenIssuer,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	m := config.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		hasher:      hasher,
		config:      config,
		metrics:     m,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理する。
// 認可コードの交換、ユーザーの検索または自動作成、トークン発行、セッション確立を順に行う。
// いずれかの段階で失敗した場合はErrAuthenticationFailedをラップして返し、セッションは作られない。
func (s *Service) HandleCallback(ctx context.Context, code string) (*CallbackResult, error) {
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodGoogle, metrics.OutcomeFailure)
		return nil, fmt.Errorf("%w: failed to exchange oauth code: %w", ErrAuthenticationFailed, err)
	}

	result, err := s.FederatedLogin(ctx, profile)
	if err != nil {
		return nil, err
	}

	session, err := s.EstablishSession(ctx, result.User.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	return &CallbackResult{LoginResult: *result, Session: session}, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: failed to delete session: %w", ErrStoreFailure, err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// issueTokens はトークンペアを発行し、発行数を記録する。
func (s *Service) issueTokens(userID string) (*model.TokenPair, error) {
	pair, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokensIssued()
	return pair, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) sessionTTL() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}
