package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/studentms/internal/middleware"
	"github.com/hitoshi/studentms/internal/model"
)

// ResourceServiceInterface はリソースハンドラーが必要とするサービスインターフェース。
type ResourceServiceInterface interface {
	List(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]resourceResponse, error)
	Get(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*resourceResponse, error)
	Create(ctx context.Context, kind model.ResourceKind, ownerID string, data json.RawMessage) (*resourceResponse, error)
	Replace(ctx context.Context, kind model.ResourceKind, ownerID, id string, data json.RawMessage) (*resourceResponse, error)
	Delete(ctx context.Context, kind model.ResourceKind, ownerID, id string) error
}

// resourceResponse はリソースのAPIレスポンス。
type resourceResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// resourceListResponse はリソース一覧のAPIレスポンス。
type resourceListResponse struct {
	Items  []resourceResponse `json:"items"`
	Count  int                `json:"count"`
	Offset int                `json:"offset"`
}

// ResourceHandler は1種類のリソースに対するCRUDハンドラー。
type ResourceHandler struct {
	kind    model.ResourceKind
	service ResourceServiceInterface
}

// NewResourceHandler はResourceHandlerを生成する。
func NewResourceHandler(kind model.ResourceKind, service ResourceServiceInterface) *ResourceHandler {
	return &ResourceHandler{
		kind:    kind,
		service: service,
	}
}

// Routes はリソースのCRUDルートを持つchi.Routerを返す。
func (h *ResourceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Replace)
		r.Delete("/", h.Delete)
	})
	return r
}

// List は認証ユーザーのリソース一覧を返す。
// GET /api/v1/{kind}?limit=&offset=
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("limitは整数で指定してください"))
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("offsetは整数で指定してください"))
		return
	}

	items, err := h.service.List(r.Context(), h.kind, userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resourceListResponse{
		Items:  items,
		Count:  len(items),
		Offset: offset,
	})
}

// Get はリソースを1件返す。
// GET /api/v1/{kind}/{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	res, err := h.service.Get(r.Context(), h.kind, userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Create はリソースを作成する。
// POST /api/v1/{kind}
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	doc, err := readDocument(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res, err := h.service.Create(r.Context(), h.kind, userID, doc)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Replace はリソースのデータを置き換える。
// PUT /api/v1/{kind}/{id}
func (h *ResourceHandler) Replace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	doc, err := readDocument(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	res, err := h.service.Replace(r.Context(), h.kind, userID, chi.URLParam(r, "id"), doc)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Delete はリソースを削除する。
// DELETE /api/v1/{kind}/{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), h.kind, userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireUserID はコンテキストからユーザーIDを取得する。未認証の場合は401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// queryInt はクエリパラメータを整数として取得する。未指定の場合は0を返す。
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
