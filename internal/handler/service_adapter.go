package handler

import (
	"context"
	"encoding/json"

	"github.com/hitoshi/studentms/internal/model"
	"github.com/hitoshi/studentms/internal/resource"
	"github.com/hitoshi/studentms/internal/user"
)

// ResourceServiceAdapter は resource.Service を ResourceServiceInterface に適合させるアダプタ。
type ResourceServiceAdapter struct {
	svc *resource.Service
}

// NewResourceServiceAdapter はResourceServiceAdapterを生成する。
func NewResourceServiceAdapter(svc *resource.Service) *ResourceServiceAdapter {
	return &ResourceServiceAdapter{svc: svc}
}

// List は所有者のリソース一覧をhandlerレスポンス型で返す。
func (a *ResourceServiceAdapter) List(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]resourceResponse, error) {
	resources, err := a.svc.List(ctx, kind, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	results := make([]resourceResponse, len(resources))
	for i, res := range resources {
		results[i] = toResourceResponse(res)
	}
	return results, nil
}

// Get はリソースをhandlerレスポンス型で返す。
func (a *ResourceServiceAdapter) Get(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*resourceResponse, error) {
	return wrapResource(a.svc.Get(ctx, kind, ownerID, id))
}

// Create はリソースを作成しhandlerレスポンス型で返す。
func (a *ResourceServiceAdapter) Create(ctx context.Context, kind model.ResourceKind, ownerID string, data json.RawMessage) (*resourceResponse, error) {
	return wrapResource(a.svc.Create(ctx, kind, ownerID, data))
}

// Replace はリソースのデータを置き換えhandlerレスポンス型で返す。
func (a *ResourceServiceAdapter) Replace(ctx context.Context, kind model.ResourceKind, ownerID, id string, data json.RawMessage) (*resourceResponse, error) {
	return wrapResource(a.svc.Replace(ctx, kind, ownerID, id, data))
}

// Delete はリソースを削除する。
func (a *ResourceServiceAdapter) Delete(ctx context.Context, kind model.ResourceKind, ownerID, id string) error {
	return a.svc.Delete(ctx, kind, ownerID, id)
}

func wrapResource(res *model.Resource, err error) (*resourceResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := toResourceResponse(res)
	return &resp, nil
}

// toResourceResponse はドメインのResourceをhandlerのレスポンス型に変換する。
func toResourceResponse(res *model.Resource) resourceResponse {
	return resourceResponse{
		ID:        res.ID,
		Kind:      string(res.Kind),
		Data:      res.Data,
		CreatedAt: res.CreatedAt,
		UpdatedAt: res.UpdatedAt,
	}
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ ResourceServiceInterface = (*ResourceServiceAdapter)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
