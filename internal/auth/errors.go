package auth

import (
	"errors"

	"github.com/hitoshi/studentms/internal/token"
)

var (
	// ErrAuthenticationFailed はフェデレーテッドログインの失敗を表す。原因をラップして返す。
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrStoreFailure はユーザー・セッションストアへのアクセス失敗を表す。
	ErrStoreFailure = errors.New("credential store failure")
	// ErrSigningFailed はトークンの署名失敗を表す。
	ErrSigningFailed = token.ErrSigningFailed
	// ErrInvalidToken はトークンの検証失敗、またはトークンの主体が存在しないことを表す。
	ErrInvalidToken = token.ErrInvalidToken
	// ErrSessionNotFound はセッションが存在しないか期限切れであることを表す。
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrSessionUserGone はセッションのユーザーが削除済みであることを表す。未認証として扱う。
	ErrSessionUserGone = errors.New("session user no longer exists")
	// ErrInvalidCredentials はユーザー名・メールアドレスまたはパスワードの誤りを表す。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// InputError は登録・ログイン入力の検証エラー。
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}
