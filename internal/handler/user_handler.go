package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/studentms/internal/auth"
	"github.com/hitoshi/studentms/internal/middleware"
	"github.com/hitoshi/studentms/internal/model"
)

// AccountServiceInterface はローカル認証に必要なサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, identifier, plain string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.LoginResult, error)
	EstablishSession(ctx context.Context, userID string) (*model.Session, error)
}

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// sessions、resources、userを削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	accounts AccountServiceInterface
	service  UserServiceInterface
	config   AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(accounts AccountServiceInterface, service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		service:  service,
		config:   config,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// loginRequest はログインリクエストのボディ。
// identifier、email、usernameのいずれかでユーザーを指定する。
type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

func (req loginRequest) identifier() string {
	for _, v := range []string{req.Identifier, req.Email, req.Username} {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// refreshRequest はトークン更新リクエストのボディ。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// loginResponse はログイン・トークン更新のAPIレスポンス。
type loginResponse struct {
	User   userResponse     `json:"user"`
	Tokens *model.TokenPair `json:"tokens"`
}

// Register はローカルユーザーを登録する。
// POST /api/v1/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), auth.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login はメールアドレスまたはユーザー名とパスワードで認証する。
// 成功時はトークンペアを返し、セッションCookieとトークンCookieを設定する。
// POST /api/v1/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.identifier(), req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.accounts.EstablishSession(r.Context(), result.User.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.config.Codec.SetSessionCookie(w, session.ID, session.ExpiresAt, h.config.Cookies)
	setTokenCookies(w, result.Tokens, h.config.Cookies)

	writeJSON(w, http.StatusOK, loginResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

// RefreshToken はリフレッシュトークンから新しいトークンペアを発行する。
// トークンはボディのrefreshTokenまたはrefresh_token Cookieから取得する。
// POST /api/v1/users/refresh-token
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req refreshRequest
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("JSONの形式が正しくありません"))
			return
		}
	}

	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		if c, err := r.Cookie(middleware.RefreshTokenCookieName); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	result, err := h.accounts.Refresh(r.Context(), raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	setTokenCookies(w, result.Tokens, h.config.Cookies)

	writeJSON(w, http.StatusOK, loginResponse{
		User:   toUserResponse(result.User),
		Tokens: result.Tokens,
	})
}

// Me は認証済みユーザーの情報を返す。
// GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/v1/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("user withdrawn", slog.String("user_id", userID))
	middleware.ClearAuthCookies(w, h.config.Cookies)
	w.WriteHeader(http.StatusNoContent)
}
