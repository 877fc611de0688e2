package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/metrics"
)

// Ensure linkRepo implements repository.DynamicURLRepository
var _ repository.DynamicURLRepository = (*linkRepo)(nil)

type linkRepo struct {
	pool *pgxpool.Pool
}

func NewLinkRepo(pool *pgxpool.Pool) *linkRepo {
	return &linkRepo{pool: pool}
}

const linkCols = `slug, owner_id, target_url, access_count, last_accessed, created_at, updated_at`

func (r *linkRepo) Save(ctx context.Context, tx repository.Tx, u *model.DynamicURL) error {
	const q = `
INSERT INTO dynamic_urls (slug, owner_id, target_url, access_count, last_accessed, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, u.Slug, u.OwnerID, u.TargetURL, u.AccessCount, u.LastAccessed, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		case isUniqueViolation(err):
			return domain.ErrAlreadyExists
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *linkRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.DynamicURL, error) {
	start := time.Now()
	u, err := r.queryOne(ctx, tx, `SELECT `+linkCols+` FROM dynamic_urls WHERE slug=$1;`, slug)
	metrics.ObserveDBOp("dynamic_url", "find_by_slug", float64(time.Since(start).Milliseconds()), err == nil || errors.Is(err, domain.ErrNotFound))
	return u, err
}

func (r *linkRepo) UpdateTarget(ctx context.Context, tx repository.Tx, slug, targetURL string) (*model.DynamicURL, error) {
	const q = `
UPDATE dynamic_urls SET target_url=$2, updated_at=NOW()
 WHERE slug=$1
RETURNING ` + linkCols + `;`
	return r.queryOne(ctx, tx, q, slug, targetURL)
}

func (r *linkRepo) DeleteBySlug(ctx context.Context, tx repository.Tx, slug string) (string, error) {
	row, err := pickRow(ctx, r.pool, tx, `DELETE FROM dynamic_urls WHERE slug=$1 RETURNING owner_id;`, slug)
	if err != nil {
		return "", err
	}
	var ownerID string
	if err := row.Scan(&ownerID); err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return ownerID, nil
}

func (r *linkRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.DynamicURL, error) {
	const q = `SELECT ` + linkCols + ` FROM dynamic_urls WHERE owner_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.DynamicURL
	for rows.Next() {
		u, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *linkRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM dynamic_urls WHERE owner_id=$1;`, ownerID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *linkRepo) TouchAccess(ctx context.Context, tx repository.Tx, slug string) error {
	const q = `UPDATE dynamic_urls SET access_count = access_count + 1, last_accessed=NOW() WHERE slug=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, slug); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *linkRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.DynamicURL, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	u := &model.DynamicURL{}
	if err := row.Scan(&u.Slug, &u.OwnerID, &u.TargetURL, &u.AccessCount, &u.LastAccessed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func scanLink(rows pgx.Rows) (*model.DynamicURL, error) {
	u := &model.DynamicURL{}
	if err := rows.Scan(&u.Slug, &u.OwnerID, &u.TargetURL, &u.AccessCount, &u.LastAccessed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}
