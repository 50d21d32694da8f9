package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/hitoshi/studentms/internal/auth"
	"github.com/hitoshi/studentms/internal/middleware"
	"github.com/hitoshi/studentms/internal/model"
	"github.com/hitoshi/studentms/internal/repository"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	IsVerified bool      `json:"isVerified"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Username:   u.Username,
		IsVerified: u.IsVerified,
		Role:       string(u.Role),
		CreatedAt:  u.CreatedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var inputErr *auth.InputError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &inputErr):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError(inputErr.Reason))
	case errors.As(err, &maxErr):
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(maxErr.Limit))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case errors.Is(err, auth.ErrInvalidToken):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
	case errors.Is(err, repository.ErrDuplicateEmail):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewEmailTakenError())
	case errors.Is(err, repository.ErrDuplicateUsername):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewUsernameTakenError())
	default:
		// 詳細はログのみに記録する
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeEmailTaken, model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound, model.ErrCodeResourceNotFound:
		return http.StatusNotFound
	case model.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// isFormRequest はリクエストボディがURLエンコードされたフォームかを判定する。
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// readDocument はリクエストボディをJSONドキュメントとして読み取る。
// フォーム送信の場合は各フィールドの先頭の値を文字列としたJSONオブジェクトに変換する。
// ボディサイズはBodyLimitミドルウェアで制限済みであることを前提とする。
func readDocument(r *http.Request) (json.RawMessage, error) {
	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return nil, formError(err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
		doc, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode form: %w", err)
		}
		return doc, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, bodyError(err)
	}
	return body, nil
}

// decodeRequest はJSONまたはフォームのボディをdstにデコードする。
func decodeRequest(r *http.Request, dst any) error {
	doc, err := readDocument(r)
	if err != nil {
		return err
	}
	if len(doc) == 0 {
		return model.NewInvalidInputError("リクエストボディが空です")
	}
	if err := json.Unmarshal(doc, dst); err != nil {
		return model.NewInvalidInputError("JSONの形式が正しくありません")
	}
	return nil
}

func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return model.NewInvalidInputError("フォームの形式が正しくありません")
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("failed to read request body: %w", err)
}
