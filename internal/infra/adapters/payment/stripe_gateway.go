// File: internal/infra/adapters/payment/stripe_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dynamic-qr-platform/internal/config"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*StripeGateway)(nil)

// StripeGateway implements adapter.CheckoutGateway against the Stripe Checkout
// Sessions REST API. Requests are form-encoded per Stripe's API conventions.
type StripeGateway struct {
	apiKey     string
	baseURL    string
	successURL string
	cancelURL  string
	prices     map[model.Tier]string
	client     *http.Client
}

func NewStripeGateway(cfg *config.PaymentConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("payment api key empty")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.stripe.com"
	}
	if _, err := url.Parse(cfg.SuccessURL); err != nil {
		return nil, fmt.Errorf("invalid success url: %w", err)
	}
	return &StripeGateway{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		prices: map[model.Tier]string{
			model.TierLite: cfg.Prices.Lite,
			model.TierPro:  cfg.Prices.Pro,
		},
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

// CreateCheckoutSession opens a hosted checkout session for the given tier and
// returns its id plus the URL to redirect the customer to. The owner id rides
// along as client_reference_id so the webhook can bind the session back.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, ownerID, email string, tier model.Tier) (adapter.CheckoutSession, error) {
	price, ok := g.prices[tier]
	if !ok || price == "" {
		return adapter.CheckoutSession{}, fmt.Errorf("no price configured for tier %q", tier)
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("client_reference_id", ownerID)
	form.Set("customer_email", email)
	form.Set("success_url", g.successURL)
	form.Set("cancel_url", g.cancelURL)
	form.Set("line_items[0][price]", price)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[tier]", string(tier))
	// Copied onto the provider-side subscription so lifecycle webhooks
	// (payment failed, deleted) can be mapped back to the owner.
	form.Set("subscription_data[metadata][owner_id]", ownerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return adapter.CheckoutSession{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.CheckoutSession{}, err
	}
	defer resp.Body.Close()

	var out struct {
		ID    string `json:"id"`
		URL   string `json:"url"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.CheckoutSession{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil {
			return adapter.CheckoutSession{}, fmt.Errorf("checkout session failed: %s", out.Error.Message)
		}
		return adapter.CheckoutSession{}, fmt.Errorf("checkout session http %d", resp.StatusCode)
	}
	if out.ID == "" || out.URL == "" {
		return adapter.CheckoutSession{}, errors.New("checkout session response missing id or url")
	}
	return adapter.CheckoutSession{SessionID: out.ID, CheckoutURL: out.URL}, nil
}
