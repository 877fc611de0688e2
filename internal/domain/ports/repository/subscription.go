package repository

import (
	"context"

	"dynamic-qr-platform/internal/domain/model"
)

type SubscriptionRepository interface {
	// Save inserts the subscription; domain.ErrAlreadyExists when the owner
	// already has one (unique owner_id).
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByOwner(ctx context.Context, tx Tx, ownerID string) (*model.Subscription, error)

	// UpdateTier sets tier and usage_limit on the row matching both owner and
	// subscription id; usage_count and status are left untouched.
	UpdateTier(ctx context.Context, tx Tx, ownerID, subID string, tier model.Tier, limit int) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, tx Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error)

	// IncrementUsage performs a single conditional update: the counter moves
	// only when status is one of validStatuses AND usage_count < usage_limit.
	// Failures are classified as domain.ErrNotFound, ErrSubscriptionInvalid
	// or ErrQuotaExceeded without mutating state. Two concurrent calls with
	// one unit of quota left must never both succeed.
	IncrementUsage(ctx context.Context, tx Tx, ownerID string, validStatuses []model.SubscriptionStatus) (*model.Subscription, error)
	// DecrementUsage lowers the counter, floored at zero. It never consults
	// subscription validity.
	DecrementUsage(ctx context.Context, tx Tx, ownerID string) (*model.Subscription, error)

	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
