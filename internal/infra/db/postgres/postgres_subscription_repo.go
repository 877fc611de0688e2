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

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subCols = `id, owner_id, tier, status, usage_count, usage_limit, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (id, owner_id, tier, status, usage_count, usage_limit, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.OwnerID, s.Tier, s.Status, s.UsageCount, s.UsageLimit, s.CreatedAt, s.UpdatedAt)
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

func (r *subscriptionRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	q := `SELECT ` + subCols + ` FROM subscriptions WHERE owner_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, tx, q, ownerID)
}

func (r *subscriptionRepo) UpdateTier(ctx context.Context, tx repository.Tx, ownerID, subID string, tier model.Tier, limit int) (*model.Subscription, error) {
	const q = `
UPDATE subscriptions SET tier=$3, usage_limit=$4, updated_at=NOW()
 WHERE owner_id=$1 AND id=$2
RETURNING ` + subCols + `;`
	return r.queryOne(ctx, tx, q, ownerID, subID, tier, limit)
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	const q = `
UPDATE subscriptions SET status=$2, updated_at=NOW()
 WHERE owner_id=$1
RETURNING ` + subCols + `;`
	return r.queryOne(ctx, tx, q, ownerID, status)
}

// IncrementUsage is a single conditional update: the WHERE clause carries the
// validity and quota checks, so under concurrency the database serializes
// competing increments and at most limit-count of them match. No
// read-modify-write round trip exists to lose.
func (r *subscriptionRepo) IncrementUsage(ctx context.Context, tx repository.Tx, ownerID string, validStatuses []model.SubscriptionStatus) (*model.Subscription, error) {
	start := time.Now()
	const q = `
UPDATE subscriptions SET usage_count = usage_count + 1, updated_at=NOW()
 WHERE owner_id=$1 AND status = ANY($2) AND usage_count < usage_limit
RETURNING ` + subCols + `;`

	statuses := make([]string, len(validStatuses))
	for i, s := range validStatuses {
		statuses[i] = string(s)
	}

	s, err := r.queryOne(ctx, tx, q, ownerID, statuses)
	if err == nil {
		metrics.ObserveDBOp("subscription", "increment_usage", float64(time.Since(start).Milliseconds()), true)
		return s, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		metrics.ObserveDBOp("subscription", "increment_usage", float64(time.Since(start).Milliseconds()), false)
		return nil, err
	}

	// No row matched; re-read to classify the rejection.
	cur, ferr := r.FindByOwner(ctx, tx, ownerID)
	metrics.ObserveDBOp("subscription", "increment_usage", float64(time.Since(start).Milliseconds()), true)
	if ferr != nil {
		return nil, ferr // includes domain.ErrNotFound for an absent owner
	}
	for _, valid := range statuses {
		if string(cur.Status) == valid {
			return nil, domain.ErrQuotaExceeded
		}
	}
	return nil, domain.ErrSubscriptionInvalid
}

func (r *subscriptionRepo) DecrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	const q = `
UPDATE subscriptions SET usage_count = GREATEST(usage_count - 1, 0), updated_at=NOW()
 WHERE owner_id=$1
RETURNING ` + subCols + `;`
	return r.queryOne(ctx, tx, q, ownerID)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}

	s := &model.Subscription{}
	var tier, status string
	if err := row.Scan(&s.ID, &s.OwnerID, &tier, &status, &s.UsageCount, &s.UsageLimit, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Tier = model.Tier(tier)
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
