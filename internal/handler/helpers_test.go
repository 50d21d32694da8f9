package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hitoshi/studentms/internal/auth"
	"github.com/hitoshi/studentms/internal/middleware"
	"github.com/hitoshi/studentms/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*auth.CallbackResult, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.CallbackResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockAccountService struct {
	registerFn         func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn            func(ctx context.Context, identifier, plain string) (*auth.LoginResult, error)
	refreshFn          func(ctx context.Context, refreshToken string) (*auth.LoginResult, error)
	establishSessionFn func(ctx context.Context, userID string) (*model.Session, error)
}

func (m *mockAccountService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAccountService) Login(ctx context.Context, identifier, plain string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, identifier, plain)
	}
	return nil, nil
}

func (m *mockAccountService) Refresh(ctx context.Context, refreshToken string) (*auth.LoginResult, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, nil
}

func (m *mockAccountService) EstablishSession(ctx context.Context, userID string) (*model.Session, error) {
	if m.establishSessionFn != nil {
		return m.establishSessionFn(ctx, userID)
	}
	return &model.Session{ID: "session-" + userID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockResourceService struct {
	listFn    func(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]resourceResponse, error)
	getFn     func(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*resourceResponse, error)
	createFn  func(ctx context.Context, kind model.ResourceKind, ownerID string, data json.RawMessage) (*resourceResponse, error)
	replaceFn func(ctx context.Context, kind model.ResourceKind, ownerID, id string, data json.RawMessage) (*resourceResponse, error)
	deleteFn  func(ctx context.Context, kind model.ResourceKind, ownerID, id string) error
}

func (m *mockResourceService) List(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]resourceResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, kind, ownerID, limit, offset)
	}
	return []resourceResponse{}, nil
}

func (m *mockResourceService) Get(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*resourceResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, kind, ownerID, id)
	}
	return nil, model.NewResourceNotFoundError(kind, id)
}

func (m *mockResourceService) Create(ctx context.Context, kind model.ResourceKind, ownerID string, data json.RawMessage) (*resourceResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, kind, ownerID, data)
	}
	return &resourceResponse{ID: "res-1", Kind: string(kind), Data: data}, nil
}

func (m *mockResourceService) Replace(ctx context.Context, kind model.ResourceKind, ownerID, id string, data json.RawMessage) (*resourceResponse, error) {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, kind, ownerID, id, data)
	}
	return &resourceResponse{ID: id, Kind: string(kind), Data: data}, nil
}

func (m *mockResourceService) Delete(ctx context.Context, kind model.ResourceKind, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, kind, ownerID, id)
	}
	return nil
}

// --- ヘルパー ---

const testBaseURL = "http://localhost:3000"

// newTestAuthConfig はテスト用のAuthHandlerConfigを返す。
func newTestAuthConfig(t *testing.T) AuthHandlerConfig {
	t.Helper()
	codec, err := middleware.NewSessionCookieCodec("test-session-secret")
	require.NoError(t, err)
	return AuthHandlerConfig{
		BaseURL: testBaseURL,
		Codec:   codec,
	}
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withUser は認証済みユーザーをコンテキストに注入したリクエストを返す。
func withUser(r *http.Request, user *model.User) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), user))
}

func testUser() *model.User {
	return &model.User{
		ID:           "user-1",
		FullName:     "Taro Yamada",
		Email:        "taro@example.com",
		Username:     "taro",
		PasswordHash: "$2a$10$secret",
		IsVerified:   true,
		Role:         model.RoleStudent,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testTokens() *model.TokenPair {
	now := time.Now()
	return &model.TokenPair{
		AccessToken:      "access-token",
		RefreshToken:     "refresh-token",
		AccessExpiresAt:  now.Add(time.Hour),
		RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

// decodeError はエラーレスポンスのボディをデコードする。
func decodeError(t *testing.T, resp *http.Response) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
