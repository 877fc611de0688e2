package model

import (
	"time"

	"dynamic-qr-platform/internal/domain"
)

// PaymentSession associates an externally issued checkout session with the
// owner who opened it and the tier they intend to buy. It is consumed exactly
// once: the consumed flag is the idempotency boundary for at-least-once
// webhook delivery.
type PaymentSession struct {
	SessionID    string // issued by the payment provider
	OwnerID      string
	IntendedTier Tier
	Consumed     bool
	CreatedAt    time.Time
}

func NewPaymentSession(sessionID, ownerID string, tier Tier) (*PaymentSession, error) {
	if sessionID == "" || ownerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentSession{
		SessionID:    sessionID,
		OwnerID:      ownerID,
		IntendedTier: tier,
		CreatedAt:    time.Now(),
	}, nil
}
