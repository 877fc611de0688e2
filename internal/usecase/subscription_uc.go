package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase is the ledger every quota-consuming mutation goes
// through. Methods take a repository.Tx so callers can compose them into
// larger transactions (link create, payment resolve); pass repository.NoTX
// for a standalone call.
type SubscriptionUseCase interface {
	Get(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error)
	Create(ctx context.Context, tx repository.Tx, ownerID string, tier model.Tier) (*model.Subscription, error)
	OverrideTier(ctx context.Context, tx repository.Tx, ownerID, subID string, tier model.Tier) (*model.Subscription, error)
	SetStatus(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error)
	// Reactivate forces status active regardless of the current status.
	// Payment resolution is the one caller allowed to leave canceled; every
	// other transition goes through SetStatus and its state machine.
	Reactivate(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error)
	// Validate is the single predicate checked before any usage-counted
	// action: active always passes, past_due passes under the grace policy.
	Validate(ctx context.Context, ownerID string) (bool, error)
	IncrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error)
	DecrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs         repository.SubscriptionRepository
	limits       map[model.Tier]int
	gracePastDue bool
	log          *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, limits map[model.Tier]int, gracePastDue bool, logger *zerolog.Logger) *subscriptionUC {
	if limits == nil {
		limits = model.DefaultUsageLimits
	}
	return &subscriptionUC{subs: subs, limits: limits, gracePastDue: gracePastDue, log: logger}
}

func (u *subscriptionUC) limitFor(tier model.Tier) int {
	if n, ok := u.limits[tier]; ok {
		return n
	}
	return model.DefaultUsageLimits[tier]
}

// validStatuses lists the statuses IncrementUsage accepts. DecrementUsage
// deliberately ignores this: releasing quota must always work.
func (u *subscriptionUC) validStatuses() []model.SubscriptionStatus {
	if u.gracePastDue {
		return []model.SubscriptionStatus{model.SubscriptionStatusActive, model.SubscriptionStatusPastDue}
	}
	return []model.SubscriptionStatus{model.SubscriptionStatusActive}
}

func (u *subscriptionUC) Get(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	return u.subs.FindByOwner(ctx, tx, ownerID)
}

func (u *subscriptionUC) Create(ctx context.Context, tx repository.Tx, ownerID string, tier model.Tier) (*model.Subscription, error) {
	s, err := model.NewSubscription(ownerID, tier, u.limitFor(tier))
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, tx, s); err != nil {
		return nil, err
	}
	metrics.IncSubscriptionCreated(string(tier))
	return s, nil
}

func (u *subscriptionUC) OverrideTier(ctx context.Context, tx repository.Tx, ownerID, subID string, tier model.Tier) (*model.Subscription, error) {
	// Tier and status are independent axes: the new limit may be below the
	// current usage_count, and that alone never demotes the status.
	s, err := u.subs.UpdateTier(ctx, tx, ownerID, subID, tier, u.limitFor(tier))
	if err != nil {
		return nil, err
	}
	metrics.IncTierOverride(string(tier))
	return s, nil
}

func (u *subscriptionUC) SetStatus(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	current, err := u.subs.FindByOwner(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if !current.CanTransitionTo(status) {
		return nil, domain.ErrInvalidStatusTransition
	}
	if current.Status == status {
		return current, nil
	}
	s, err := u.subs.UpdateStatus(ctx, tx, ownerID, status)
	if err != nil {
		return nil, err
	}
	metrics.IncStatusTransition(string(current.Status), string(status))
	return s, nil
}

func (u *subscriptionUC) Reactivate(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	current, err := u.subs.FindByOwner(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	if current.Status == model.SubscriptionStatusActive {
		return current, nil
	}
	s, err := u.subs.UpdateStatus(ctx, tx, ownerID, model.SubscriptionStatusActive)
	if err != nil {
		return nil, err
	}
	metrics.IncStatusTransition(string(current.Status), string(model.SubscriptionStatusActive))
	return s, nil
}

func (u *subscriptionUC) Validate(ctx context.Context, ownerID string) (bool, error) {
	s, err := u.subs.FindByOwner(ctx, repository.NoTX, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, valid := range u.validStatuses() {
		if s.Status == valid {
			return true, nil
		}
	}
	return false, nil
}

func (u *subscriptionUC) IncrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	s, err := u.subs.IncrementUsage(ctx, tx, ownerID, u.validStatuses())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQuotaExceeded):
			metrics.IncQuotaDenied("quota_exceeded")
		case errors.Is(err, domain.ErrSubscriptionInvalid):
			metrics.IncQuotaDenied("subscription_invalid")
		}
		return nil, err
	}
	return s, nil
}

func (u *subscriptionUC) DecrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	return u.subs.DecrementUsage(ctx, tx, ownerID)
}
