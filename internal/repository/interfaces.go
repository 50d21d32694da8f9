// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/studentms/internal/model"
)

var (
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrDuplicateUsername はユーザー名の一意制約違反を表す。
	ErrDuplicateUsername = errors.New("user with this username already exists")
	// ErrResourceNotFound は更新・削除対象のリソースが存在しないことを表す。
	ErrResourceNotFound = errors.New("resource not found")
)

// UserRepository はユーザーディレクトリ（認証情報ストア）のインターフェース。
// 検索系は見つからない場合にnil, nilを返す。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByUsername はユーザー名でユーザーを取得する。
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// Create はユーザーを作成する。
	// 一意制約違反の場合はErrDuplicateEmailまたはErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error
	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ResourceRepository はCRUDリソース（学生・コース等）の永続化インターフェース。
// すべての操作は種別と所有者でスコープされる。
type ResourceRepository interface {
	// Create はリソースを作成する。
	Create(ctx context.Context, res *model.Resource) error
	// FindByID は指定IDのリソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*model.Resource, error)
	// ListByOwner は所有者のリソースを作成日時の降順で返す。
	ListByOwner(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]*model.Resource, error)
	// Update はリソースのデータを置き換える。対象がなければErrResourceNotFoundを返す。
	Update(ctx context.Context, res *model.Resource) error
	// Delete はリソースを削除する。対象がなければErrResourceNotFoundを返す。
	Delete(ctx context.Context, kind model.ResourceKind, ownerID, id string) error
	// DeleteByOwner は所有者の全リソースを削除する。
	DeleteByOwner(ctx context.Context, ownerID string) error
}
