package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/studentms/internal/model"
)

const resourceColumns = `id, kind, owner_id, data, created_at, updated_at`

// PostgresResourceRepo はPostgreSQLを使用したリソースリポジトリ。
// データ本体はJSONB列に保存する。
type PostgresResourceRepo struct {
	db *sql.DB
}

// NewPostgresResourceRepo はPostgresResourceRepoを生成する。
func NewPostgresResourceRepo(db *sql.DB) *PostgresResourceRepo {
	return &PostgresResourceRepo{db: db}
}

// Create はリソースを作成する。
func (r *PostgresResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, string(res.Kind), res.OwnerID, []byte(res.Data), res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resource: %w", err)
	}
	return nil
}

// FindByID は指定IDのリソースを取得する。見つからない場合はnilを返す。
func (r *PostgresResourceRepo) FindByID(ctx context.Context, kind model.ResourceKind, ownerID, id string) (*model.Resource, error) {
	res, err := scanResource(r.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+`
		 FROM resources
		 WHERE id = $1 AND kind = $2 AND owner_id = $3`,
		id, string(kind), ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return res, nil
}

// ListByOwner は所有者のリソースを作成日時の降順で返す。
func (r *PostgresResourceRepo) ListByOwner(ctx context.Context, kind model.ResourceKind, ownerID string, limit, offset int) ([]*model.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resourceColumns+`
		 FROM resources
		 WHERE kind = $1 AND owner_id = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		string(kind), ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []*model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resources: %w", err)
	}

	return resources, nil
}

// Update はリソースのデータを置き換える。
func (r *PostgresResourceRepo) Update(ctx context.Context, res *model.Resource) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE resources SET data = $1, updated_at = $2
		 WHERE id = $3 AND kind = $4 AND owner_id = $5`,
		[]byte(res.Data), res.UpdatedAt, res.ID, string(res.Kind), res.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	return requireAffected(result)
}

// Delete はリソースを削除する。
func (r *PostgresResourceRepo) Delete(ctx context.Context, kind model.ResourceKind, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM resources WHERE id = $1 AND kind = $2 AND owner_id = $3`,
		id, string(kind), ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return requireAffected(result)
}

// DeleteByOwner は所有者の全リソースを削除する。
func (r *PostgresResourceRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM resources WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete owner resources: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*model.Resource, error) {
	res := &model.Resource{}
	var kind string
	var data []byte
	if err := row.Scan(&res.ID, &kind, &res.OwnerID, &data, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Kind = model.ResourceKind(kind)
	res.Data = data
	return res, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// compile-time interface check
var _ ResourceRepository = (*PostgresResourceRepo)(nil)
