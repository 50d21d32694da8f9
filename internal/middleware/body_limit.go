package middleware

import (
	"errors"
	"net/http"

	"github.com/hitoshi/studentms/internal/model"
)

// DefaultMaxBodyBytes はJSON・フォームボディの上限（16KB）。
const DefaultMaxBodyBytes int64 = 16 << 10

// NewBodyLimitMiddleware はリクエストボディのサイズを制限するミドルウェアを返す。
// Content-Lengthが上限を超える場合は即座に413を返し、
// それ以外はhttp.MaxBytesReaderで読み取り時に打ち切る。
func NewBodyLimitMiddleware(limit int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(limit))
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsBodyTooLarge はエラーがボディサイズ上限超過によるものかを判定する。
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
