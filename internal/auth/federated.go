package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/studentms/internal/metrics"
	"github.com/hitoshi/studentms/internal/model"
	"github.com/hitoshi/studentms/internal/repository"
)

// FederatedLogin は外部IdPのプロフィールからユーザーを特定し、トークンペアを発行する。
// メールアドレスで既存ユーザーを検索し、存在しなければ検証済みユーザーとして自動作成する。
// 同一メールアドレスのユーザーは同時実行下でも高々1件しか作られない。
func (s *Service) FederatedLogin(ctx context.Context, profile *model.FederatedProfile) (*LoginResult, error) {
	result, err := s.federatedLogin(ctx, profile)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodGoogle, metrics.OutcomeFailure)
		slog.Warn("federated login failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	s.metrics.RecordLogin(metrics.MethodGoogle, metrics.OutcomeSuccess)
	return result, nil
}

func (s *Service) federatedLogin(ctx context.Context, profile *model.FederatedProfile) (*LoginResult, error) {
	if profile == nil || profile.ProviderUserID == "" {
		return nil, errors.New("profile has no provider user ID")
	}
	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, errors.New("profile has no email")
	}

	user, err := s.findOrProvision(ctx, email, profile)
	if err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// findOrProvision はメールアドレスでユーザーを取得し、存在しなければ作成する。
func (s *Service) findOrProvision(ctx context.Context, email string, profile *model.FederatedProfile) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if user != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", profile.Provider),
		)
		return user, nil
	}

	// 呼び出し元のキャンセルが相乗りしている他のリクエストに波及しないようにする
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.provisioning.Do(email, func() (any, error) {
		return s.provision(flightCtx, email, profile)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.User), nil
}

// provision はプレースホルダーパスワードを持つ検証済みユーザーを作成する。
// 一意制約違反の場合は既存ユーザーを再取得して返す。
func (s *Service) provision(ctx context.Context, email string, profile *model.FederatedProfile) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if existing != nil {
		return existing, nil
	}

	hash, err := s.hasher.Hash(ctx, PlaceholderPassword(profile.Name, profile.ProviderUserID))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     profile.Name,
		Email:        email,
		Username:     usernameFromEmail(email),
		PasswordHash: hash,
		IsVerified:   true,
		Role:         model.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUsername) {
		// 別ドメインで同じローカル部を持つユーザーがいる
		user.Username = user.Username + "-" + suffix(profile.ProviderUserID, 4)
		err = s.userRepo.Create(ctx, user)
	}
	if errors.Is(err, repository.ErrDuplicateEmail) {
		existing, findErr := s.userRepo.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreFailure, findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: duplicate email reported but user not found", ErrStoreFailure)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	s.metrics.RecordUserProvisioned()
	slog.Info("new user provisioned",
		slog.String("user_id", user.ID),
		slog.String("provider", profile.Provider),
	)
	return user, nil
}

// PlaceholderPassword は自動作成ユーザーの初期パスワードを生成する。
// 表示名の末尾2文字とプロバイダーIDの末尾6文字を連結する。
// 文字数が足りない場合は文字列全体を使う。
func PlaceholderPassword(name, providerUserID string) string {
	return suffix(name, 2) + suffix(providerUserID, 6)
}

// suffix はsの末尾n文字（rune単位）を返す。
func suffix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// usernameFromEmail はメールアドレスのローカル部を返す。
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
