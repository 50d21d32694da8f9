package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/studentms/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFn(ctx, id)
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserIDFn(ctx, userID)
}

type mockResourceDeleter struct {
	deleteByOwnerFn func(ctx context.Context, ownerID string) error
}

func (m *mockResourceDeleter) DeleteByOwner(ctx context.Context, ownerID string) error {
	return m.deleteByOwnerFn(ctx, ownerID)
}

// --- テスト ---

// TestService_Withdraw は退会処理が全関連データを順序通りに削除することを検証する。
func TestService_Withdraw(t *testing.T) {
	var calls []string

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "test@example.com"}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			calls = append(calls, "user:"+id)
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			calls = append(calls, "sessions:"+userID)
			return nil
		},
	}
	resources := &mockResourceDeleter{
		deleteByOwnerFn: func(ctx context.Context, ownerID string) error {
			calls = append(calls, "resources:"+ownerID)
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, resources)

	err := svc.Withdraw(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	want := []string{"sessions:user-1", "resources:user-1", "user:user-1"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

// TestService_Withdraw_UserNotFound は存在しないユーザーの退会がエラーになることを検証する。
func TestService_Withdraw_UserNotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}

	svc := NewService(userRepo, nil, nil)

	err := svc.Withdraw(context.Background(), "nonexistent-user")
	if err == nil {
		t.Fatal("expected error for nonexistent user, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("error = %v, want %s", err, model.ErrCodeUserNotFound)
	}
}

// TestService_Withdraw_StopsOnSessionFailure はセッション削除の失敗時にユーザーを削除しないことを検証する。
func TestService_Withdraw_StopsOnSessionFailure(t *testing.T) {
	userDeleted := false
	resourcesDeleted := false

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			userDeleted = true
			return nil
		},
	}
	sessionErr := errors.New("redis unavailable")
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			return sessionErr
		},
	}
	resources := &mockResourceDeleter{
		deleteByOwnerFn: func(ctx context.Context, ownerID string) error {
			resourcesDeleted = true
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, resources)

	err := svc.Withdraw(context.Background(), "user-1")
	if !errors.Is(err, sessionErr) {
		t.Fatalf("error = %v, want wrapped %v", err, sessionErr)
	}
	if resourcesDeleted || userDeleted {
		t.Error("no further deletion should happen after a session failure")
	}
}

// TestService_Withdraw_LookupError はユーザー取得失敗がラップされて返ることを検証する。
func TestService_Withdraw_LookupError(t *testing.T) {
	dbErr := errors.New("connection reset")
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, dbErr
		},
	}

	svc := NewService(userRepo, nil, nil)

	if err := svc.Withdraw(context.Background(), "user-1"); !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}
