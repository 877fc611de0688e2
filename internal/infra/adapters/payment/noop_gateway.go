// File: internal/infra/adapters/payment/noop_gateway.go
package payment

import (
	"context"
	"fmt"
	"sync"

	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/adapter"

	"github.com/google/uuid"
)

var _ adapter.CheckoutGateway = (*NoopGateway)(nil)

// NoopGateway fakes checkout for dev mode: every session "succeeds"
// immediately and the returned URL points at the local webhook-free success
// page. Sessions are held in memory for inspection by tests.
type NoopGateway struct {
	mu       sync.Mutex
	sessions map[string]model.Tier
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{sessions: make(map[string]model.Tier)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateCheckoutSession(ctx context.Context, ownerID, email string, tier model.Tier) (adapter.CheckoutSession, error) {
	id := "dev_" + uuid.NewString()
	g.mu.Lock()
	g.sessions[id] = tier
	g.mu.Unlock()
	return adapter.CheckoutSession{
		SessionID:   id,
		CheckoutURL: fmt.Sprintf("http://localhost/dev/checkout/%s", id),
	}, nil
}

// Session reports whether a session id was opened through this gateway.
func (g *NoopGateway) Session(id string) (model.Tier, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tier, ok := g.sessions[id]
	return tier, ok
}
