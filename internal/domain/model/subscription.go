package model

import (
	"time"

	"dynamic-qr-platform/internal/domain"

	"github.com/google/uuid"
)

type Tier string

const (
	TierFree Tier = "free"
	TierLite Tier = "lite"
	TierPro  Tier = "pro"
)

// DefaultUsageLimits maps each tier to the number of dynamic URLs it may
// hold at once. Deployments can override these via config.
var DefaultUsageLimits = map[Tier]int{
	TierFree: 1,
	TierLite: 25,
	TierPro:  250,
}

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierLite, TierPro:
		return Tier(s), nil
	}
	return "", domain.ErrInvalidArgument
}

type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
)

// Subscription is the per-owner billing record. Tier and status are
// independent axes: overriding the tier never forces a status change, and a
// status change never touches the tier or the usage counter.
type Subscription struct {
	ID         string // UUID
	OwnerID    string // normalized external identity token
	Tier       Tier
	Status     SubscriptionStatus
	UsageCount int
	UsageLimit int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewSubscription(ownerID string, tier Tier, limit int) (*Subscription, error) {
	if ownerID == "" || limit < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Tier:       tier,
		Status:     SubscriptionStatusActive,
		UsageCount: 0,
		UsageLimit: limit,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanTransitionTo reports whether the status state machine permits moving to
// next. Canceled is terminal for provider signals; a completed payment
// resolution reactivates outside this machine.
func (s *Subscription) CanTransitionTo(next SubscriptionStatus) bool {
	if s.Status == next {
		return true
	}
	switch s.Status {
	case SubscriptionStatusIncomplete:
		return next == SubscriptionStatusActive
	case SubscriptionStatusActive:
		return next == SubscriptionStatusPastDue || next == SubscriptionStatusCanceled
	case SubscriptionStatusPastDue:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCanceled
	}
	return false
}

func (s *Subscription) HasQuota() bool { return s.UsageCount < s.UsageLimit }
