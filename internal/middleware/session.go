// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/studentms/internal/auth"
	"github.com/hitoshi/studentms/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey は認証済みユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// sessionIDContextKey はセッションCookie経由で認証した場合のセッションIDのキー。
	sessionIDContextKey = contextKey("session_id")
	// requestStateContextKey はロギングミドルウェアが共有する状態のキー。
	requestStateContextKey = contextKey("request_state")
)

// SessionResolver はセッションIDからユーザーを解決するインターフェース。
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.User, error)
}

// BearerAuthenticator はアクセストークンからユーザーを解決するインターフェース。
type BearerAuthenticator interface {
	AuthenticateBearer(ctx context.Context, accessToken string) (*model.User, error)
}

// AuthConfig は認証ミドルウェアの設定。
type AuthConfig struct {
	Codec    *SessionCookieCodec
	Sessions SessionResolver
	Bearer   BearerAuthenticator
	Cookies  CookieConfig
}

// NewAuthMiddleware はリクエストの認証情報を検証するミドルウェアを返す。
// Authorization: Bearer ヘッダー、access_token Cookie、署名付きセッションCookieの順に確認し、
// 認証済みユーザーをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(config AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// 1. アクセストークン（ヘッダーまたはCookie）
			if raw, ok := accessTokenFromRequest(r); ok {
				user, err := config.Bearer.AuthenticateBearer(ctx, raw)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
					return
				}
				if errors.Is(err, auth.ErrStoreFailure) {
					slog.Error("failed to authenticate bearer token", slog.String("error", err.Error()))
					WriteInternalServerError(w)
					return
				}
				// ヘッダーで明示されたトークンが無効な場合はセッションにフォールバックしない
				if bearerFromHeader(r) != "" {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
					return
				}
			}

			// 2. セッションCookie
			sessionID, ok := config.Codec.SessionIDFromRequest(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := config.Sessions.ResolveSession(ctx, sessionID)
			switch {
			case err == nil:
				ctx = context.WithValue(ContextWithUser(ctx, user), sessionIDContextKey, sessionID)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, auth.ErrSessionUserGone):
				ClearAuthCookies(w, config.Cookies)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			case errors.Is(err, auth.ErrSessionNotFound):
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			default:
				slog.Error("failed to resolve session", slog.String("error", err.Error()))
				WriteInternalServerError(w)
			}
		})
	}
}

func bearerFromHeader(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func accessTokenFromRequest(r *http.Request) (string, bool) {
	if token := bearerFromHeader(r); token != "" {
		return token, true
	}
	if cookie, err := r.Cookie(AccessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// SessionIDFromContext はセッションCookieで認証した場合のセッションIDを返す。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// ロギングミドルウェアの配下であれば、ログ出力用にユーザーIDも記録する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if state, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		state.setUserID(user.ID)
	}
	return context.WithValue(ctx, userContextKey, user)
}
