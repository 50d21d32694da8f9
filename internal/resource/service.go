// Package resource は学生・コース・成績などの汎用リソース管理のドメインロジックを提供する。
// すべての操作は種別と所有者（作成ユーザー）でスコープされる。
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/studentms/internal/model"
	"github.com/hitoshi/studentms/internal/repository"
	"github.com/hitoshi/studentms/internal/security"
)

// 一覧取得の件数
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Service はリソース管理のサービス層。
// 保存前に文書内の文字列値からHTMLを除去する。
type Service struct {
	repo      repository.ResourceRepository
	sanitizer security.ContentSanitizerService
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ResourceRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// List は所有者のリソースを新しい順に返す。
// limitが0以下の場合はDefaultListLimit、MaxListLimitを超える場合はMaxListLimitに丸める。
func (s *Service) List(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]*model.Resource, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, model.NewInvalidInputError("offsetは0以上で指定してください")
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	resources, err := s.repo.ListByOwner(ctx, kind, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("リソース一覧の取得に失敗しました: %w", err)
	}
	if resources == nil {
		resources = []*model.Resource{}
	}
	return resources, nil
}

// Get は指定IDのリソースを返す。
func (s *Service) Get(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*model.Resource, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	if !isValidID(id) {
		return nil, model.NewResourceNotFoundError(kind, id)
	}

	res, err := s.repo.FindByID(ctx, kind, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("リソースの取得に失敗しました: %w", err)
	}
	if res == nil {
		return nil, model.NewResourceNotFoundError(kind, id)
	}
	return res, nil
}

// Create はリソースを作成する。dataはJSONオブジェクトでなければならない。
func (s *Service) Create(ctx context.Context, kind model.ResourceKind, ownerID string, data json.RawMessage) (*model.Resource, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	clean, err := s.sanitize(data)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := &model.Resource{
		ID:        uuid.New().String(),
		Kind:      kind,
		OwnerID:   ownerID,
		Data:      clean,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("リソースの作成に失敗しました: %w", err)
	}
	return res, nil
}

// Replace はリソースのデータを置き換える。
func (s *Service) Replace(ctx context.Context, kind model.ResourceKind, ownerID, id string, data json.RawMessage) (*model.Resource, error) {
	existing, err := s.Get(ctx, kind, ownerID, id)
	if err != nil {
		return nil, err
	}
	clean, err := s.sanitize(data)
	if err != nil {
		return nil, err
	}

	existing.Data = clean
	existing.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, existing); err != nil {
		// 取得後に削除された場合
		if errors.Is(err, repository.ErrResourceNotFound) {
			return nil, model.NewResourceNotFoundError(kind, id)
		}
		return nil, fmt.Errorf("リソースの更新に失敗しました: %w", err)
	}
	return existing, nil
}

// Delete はリソースを削除する。
func (s *Service) Delete(ctx context.Context, kind model.ResourceKind, ownerID, id string) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	if !isValidID(id) {
		return model.NewResourceNotFoundError(kind, id)
	}

	if err := s.repo.Delete(ctx, kind, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrResourceNotFound) {
			return model.NewResourceNotFoundError(kind, id)
		}
		return fmt.Errorf("リソースの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) sanitize(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, model.NewInvalidInputError("リクエストボディが空です")
	}
	clean, err := s.sanitizer.SanitizeDocument(data)
	if err != nil {
		if errors.Is(err, security.ErrNotObject) {
			return nil, model.NewInvalidInputError("JSONオブジェクトを指定してください")
		}
		return nil, model.NewInvalidInputError("JSONの形式が正しくありません")
	}
	return clean, nil
}

func validateKind(kind model.ResourceKind) error {
	if !slices.Contains(model.ResourceKinds, kind) {
		return model.NewInvalidInputError(fmt.Sprintf("不明なリソース種別です: %s", kind))
	}
	return nil
}

// isValidID はIDがUUID形式かを判定する。UUID列への不正な値の問い合わせを避ける。
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
