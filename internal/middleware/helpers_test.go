package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/hitoshi/studentms/internal/model"
)

// withUser はリクエストコンテキストに認証済みユーザーを注入したリクエストを返す。
func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(ContextWithUser(req.Context(), &model.User{ID: userID}))
}

type mockSessionResolver struct {
	resolveFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, sessionID string) (*model.User, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sessionID)
	}
	return nil, nil
}

type mockBearerAuthenticator struct {
	authenticateFn func(ctx context.Context, accessToken string) (*model.User, error)
}

func (m *mockBearerAuthenticator) AuthenticateBearer(ctx context.Context, accessToken string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, accessToken)
	}
	return nil, nil
}

var (
	_ SessionResolver     = (*mockSessionResolver)(nil)
	_ BearerAuthenticator = (*mockBearerAuthenticator)(nil)
)

// newTestCodec はテスト用のセッションCookieコーデックを生成する。
func newTestCodec(t *testing.T) *SessionCookieCodec {
	t.Helper()
	codec, err := NewSessionCookieCodec("test-session-secret")
	if err != nil {
		t.Fatalf("NewSessionCookieCodec: %v", err)
	}
	return codec
}
