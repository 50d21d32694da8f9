package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/studentms/internal/database"
)

// newTestMongoUserRepo はテスト専用データベース上のMongoUserRepoを返す。
// TEST_MONGO_URL未設定の場合はスキップする。
func newTestMongoUserRepo(t *testing.T) *MongoUserRepo {
	t.Helper()

	mongoURL := os.Getenv("TEST_MONGO_URL")
	if mongoURL == "" {
		t.Skip("TEST_MONGO_URL が未設定のためスキップ")
	}

	ctx := context.Background()
	db, err := database.ConnectMongo(ctx, mongoURL, "studentms_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Skipf("MongoDBに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	repo := NewMongoUserRepo(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestMongoUserRepo_CreateAndFind(t *testing.T) {
	repo := newTestMongoUserRepo(t)
	ctx := context.Background()

	user := newTestUser("jo@example.com", "jo")
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.FindByEmail(ctx, "jo@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, user.PasswordHash, found.PasswordHash)

	found, err = repo.FindByUsername(ctx, "jo")
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := repo.FindByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMongoUserRepo_Create_Duplicates(t *testing.T) {
	repo := newTestMongoUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestUser("a@example.com", "a")))
	assert.ErrorIs(t, repo.Create(ctx, newTestUser("a@example.com", "b")), ErrDuplicateEmail)
	assert.ErrorIs(t, repo.Create(ctx, newTestUser("c@example.com", "a")), ErrDuplicateUsername)
}

func TestMongoUserRepo_DeleteByID(t *testing.T) {
	repo := newTestMongoUserRepo(t)
	ctx := context.Background()

	user := newTestUser("gone@example.com", "gone")
	require.NoError(t, repo.Create(ctx, user))
	require.NoError(t, repo.DeleteByID(ctx, user.ID))
	assert.Error(t, repo.DeleteByID(ctx, user.ID))
}

func TestDuplicateKey_MapsIndexName(t *testing.T) {
	assert.ErrorIs(t, duplicateKey(errors.New("E11000 duplicate key error index: users_username_key")), ErrDuplicateUsername)
	assert.ErrorIs(t, duplicateKey(errors.New("E11000 duplicate key error index: users_email_key")), ErrDuplicateEmail)
}
