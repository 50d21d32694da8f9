package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/studentms/internal/metrics"
	"github.com/hitoshi/studentms/internal/model"
	"github.com/hitoshi/studentms/internal/password"
	"github.com/hitoshi/studentms/internal/token"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcryptの入力上限（バイト）
	maxUsernameLength = 64
	maxFullNameLength = 200
)

// RegisterInput はローカル登録の入力。
type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
	Role     model.Role
}

// Register はメールアドレスとパスワードでユーザーを登録する。
// 一意制約違反の場合はrepository.ErrDuplicateEmailまたはErrDuplicateUsernameをそのまま返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	fullName := strings.TrimSpace(in.FullName)
	role := in.Role
	if role == "" {
		role = model.RoleStudent
	}

	if err := validateRegistration(fullName, email, username, in.Password, role); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     fullName,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

func validateRegistration(fullName, email, username, plain string, role model.Role) error {
	switch {
	case fullName == "":
		return &InputError{Reason: "fullName is required"}
	case utf8.RuneCountInString(fullName) > maxFullNameLength:
		return &InputError{Reason: "fullName is too long"}
	case email == "":
		return &InputError{Reason: "email is required"}
	case username == "":
		return &InputError{Reason: "username is required"}
	case len(username) > maxUsernameLength:
		return &InputError{Reason: "username is too long"}
	case strings.Contains(username, "@"):
		return &InputError{Reason: "username must not contain '@'"}
	case len(plain) < minPasswordLength:
		return &InputError{Reason: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	case len(plain) > maxPasswordLength:
		return &InputError{Reason: fmt.Sprintf("password must be at most %d bytes", maxPasswordLength)}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return &InputError{Reason: "email is invalid"}
	}
	// 管理者は自己登録できない
	if role != model.RoleStudent && role != model.RoleTeacher {
		return &InputError{Reason: "role must be student or teacher"}
	}
	return nil
}

// Login はメールアドレスまたはユーザー名とパスワードで認証し、トークンペアを発行する。
func (s *Service) Login(ctx context.Context, identifier, plain string) (*LoginResult, error) {
	result, err := s.login(ctx, identifier, plain)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodPassword, metrics.OutcomeFailure)
		return nil, err
	}
	s.metrics.RecordLogin(metrics.MethodPassword, metrics.OutcomeSuccess)
	return result, nil
}

func (s *Service) login(ctx context.Context, identifier, plain string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plain == "" {
		return nil, &InputError{Reason: "identifier and password are required"}
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.FindByEmail(ctx, NormalizeEmail(identifier))
	} else {
		user, err = s.userRepo.FindByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Verify(ctx, user.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// トークンの主体が存在しない場合はErrInvalidTokenを返す。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	user, err := s.userFromToken(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodRefresh, metrics.OutcomeFailure)
		return nil, err
	}

	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodRefresh, metrics.OutcomeFailure)
		return nil, err
	}
	s.metrics.RecordLogin(metrics.MethodRefresh, metrics.OutcomeSuccess)
	return &LoginResult{User: user, Tokens: tokens}, nil
}

// AuthenticateBearer はアクセストークンからユーザーを取得する。
func (s *Service) AuthenticateBearer(ctx context.Context, accessToken string) (*model.User, error) {
	return s.userFromToken(ctx, accessToken, token.KindAccess)
}

func (s *Service) userFromToken(ctx context.Context, raw string, kind token.Kind) (*model.User, error) {
	claims, err := s.tokens.Parse(raw, kind)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
	}
	return user, nil
}
