package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Cookie名
const (
	SessionCookieName      = "session_id"
	AccessTokenCookieName  = "access_token"
	RefreshTokenCookieName = "refresh_token"
)

// CookieConfig はCookie発行時の共通属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// SessionCookieCodec はセッションIDをSESSION_SECRETで署名・検証する。
// Cookieの値は "<sessionID>.<base64url(HMAC-SHA256)>" の形式。
type SessionCookieCodec struct {
	secret []byte
}

// NewSessionCookieCodec はSessionCookieCodecを生成する。
func NewSessionCookieCodec(secret string) (*SessionCookieCodec, error) {
	if secret == "" {
		return nil, errors.New("session secret cannot be empty")
	}
	return &SessionCookieCodec{secret: []byte(secret)}, nil
}

// Sign はセッションIDに署名を付与したCookie値を返す。
func (c *SessionCookieCodec) Sign(sessionID string) string {
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(c.mac(sessionID))
}

// Verify はCookie値の署名を検証し、セッションIDを返す。
func (c *SessionCookieCodec) Verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	sessionID, sig := value[:i], value[i+1:]

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, c.mac(sessionID)) {
		return "", false
	}
	return sessionID, true
}

func (c *SessionCookieCodec) mac(sessionID string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(sessionID))
	return h.Sum(nil)
}

// SetSessionCookie は署名済みセッションCookieを設定する。
func (c *SessionCookieCodec) SetSessionCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    c.Sign(sessionID),
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   maxAgeUntil(expiresAt),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionIDFromRequest はリクエストのセッションCookieを検証し、セッションIDを返す。
func (c *SessionCookieCodec) SessionIDFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.Verify(cookie.Value)
}

// SetTokenCookie はトークンをHttpOnly Cookieとして設定する。
func SetTokenCookie(w http.ResponseWriter, name, value string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   maxAgeUntil(expiresAt),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies はセッション・トークンのCookieを削除する。
func ClearAuthCookies(w http.ResponseWriter, config CookieConfig) {
	for _, name := range []string{SessionCookieName, AccessTokenCookieName, RefreshTokenCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   config.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   config.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func maxAgeUntil(t time.Time) int {
	sec := int(time.Until(t).Seconds())
	if sec < 1 {
		return -1
	}
	return sec
}
