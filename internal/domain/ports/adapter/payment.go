package adapter

import (
	"context"

	"dynamic-qr-platform/internal/domain/model"
)

// CheckoutSession is what the provider hands back when a checkout is opened:
// its own session id plus the hosted page the client is sent to.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// CheckoutGateway abstracts the payment provider's checkout API. The provider
// later reports completion through a webhook carrying the same session id;
// this port only covers the outbound half.
type CheckoutGateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, ownerID, email string, tier model.Tier) (CheckoutSession, error)
}
