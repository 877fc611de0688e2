package repository

import (
	"context"
	"time"

	"dynamic-qr-platform/internal/domain/model"
)

type PaymentSessionRepository interface {
	// Save inserts the session; domain.ErrConflict on a duplicate session_id.
	Save(ctx context.Context, tx Tx, s *model.PaymentSession) error
	// FindByID loads the session. Under a transaction the row is locked
	// (SELECT ... FOR UPDATE) so resolve-and-consume is atomic.
	FindByID(ctx context.Context, tx Tx, sessionID string) (*model.PaymentSession, error)
	MarkConsumed(ctx context.Context, tx Tx, sessionID string) error
	// DeleteUnconsumedBefore purges stale sessions that never completed
	// checkout; returns the number of rows removed.
	DeleteUnconsumedBefore(ctx context.Context, tx Tx, cutoff time.Time) (int64, error)
}
