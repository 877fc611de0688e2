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
)

// Ensure sessionRepo implements repository.PaymentSessionRepository
var _ repository.PaymentSessionRepository = (*sessionRepo)(nil)

type sessionRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentSessionRepo(pool *pgxpool.Pool) *sessionRepo {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error {
	const q = `
INSERT INTO payment_sessions (session_id, owner_id, intended_tier, consumed, created_at)
VALUES ($1,$2,$3,$4,$5);`

	_, err := execSQL(ctx, r.pool, tx, q, s.SessionID, s.OwnerID, s.IntendedTier, s.Consumed, s.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		case isUniqueViolation(err):
			return domain.ErrConflict
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentSession, error) {
	q := `SELECT session_id, owner_id, intended_tier, consumed, created_at FROM payment_sessions WHERE session_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return nil, err
	}

	s := &model.PaymentSession{}
	var tier string
	if err := row.Scan(&s.SessionID, &s.OwnerID, &tier, &s.Consumed, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.IntendedTier = model.Tier(tier)
	return s, nil
}

func (r *sessionRepo) MarkConsumed(ctx context.Context, tx repository.Tx, sessionID string) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE payment_sessions SET consumed=TRUE WHERE session_id=$1;`, sessionID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) DeleteUnconsumedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM payment_sessions WHERE consumed=FALSE AND created_at < $1;`, cutoff)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return tag.RowsAffected(), nil
}
