//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamic-qr-platform/internal/config"
	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/api"
	"dynamic-qr-platform/internal/usecase"
)

const (
	testSecret        = "test-hmac-secret"
	testWebhookSecret = "test-webhook-secret"
)

//
// ---------------- use case stubs ----------------
//

type stubUserUC struct {
	RegisterFunc func(ctx context.Context, externalID, email string) (*model.User, error)
	GetFunc      func(ctx context.Context, ownerID string) (*model.User, error)
	EraseFunc    func(ctx context.Context, ownerID string) error
}

func (s *stubUserUC) Register(ctx context.Context, externalID, email string) (*model.User, error) {
	return s.RegisterFunc(ctx, externalID, email)
}
func (s *stubUserUC) Get(ctx context.Context, ownerID string) (*model.User, error) {
	return s.GetFunc(ctx, ownerID)
}
func (s *stubUserUC) Erase(ctx context.Context, ownerID string) error {
	return s.EraseFunc(ctx, ownerID)
}

type stubSubUC struct {
	GetFunc       func(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error)
	SetStatusFunc func(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error)
}

func (s *stubSubUC) Get(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	return s.GetFunc(ctx, tx, ownerID)
}
func (s *stubSubUC) Create(ctx context.Context, tx repository.Tx, ownerID string, tier model.Tier) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}
func (s *stubSubUC) OverrideTier(ctx context.Context, tx repository.Tx, ownerID, subID string, tier model.Tier) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}
func (s *stubSubUC) SetStatus(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	if s.SetStatusFunc != nil {
		return s.SetStatusFunc(ctx, tx, ownerID, status)
	}
	return nil, domain.ErrOperationFailed
}
func (s *stubSubUC) Reactivate(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}
func (s *stubSubUC) Validate(ctx context.Context, ownerID string) (bool, error) { return true, nil }
func (s *stubSubUC) IncrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}
func (s *stubSubUC) DecrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}

type stubLinkUC struct {
	CreateFunc       func(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error)
	UpdateTargetFunc func(ctx context.Context, ownerID, slug, targetURL string) (*model.DynamicURL, error)
	DeleteFunc       func(ctx context.Context, ownerID, slug string) error
	ListFunc         func(ctx context.Context, ownerID string) ([]*model.DynamicURL, error)
	LookupFunc       func(ctx context.Context, slug string) (string, error)
}

func (s *stubLinkUC) Create(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error) {
	return s.CreateFunc(ctx, ownerID, targetURL)
}
func (s *stubLinkUC) UpdateTarget(ctx context.Context, ownerID, slug, targetURL string) (*model.DynamicURL, error) {
	return s.UpdateTargetFunc(ctx, ownerID, slug, targetURL)
}
func (s *stubLinkUC) Delete(ctx context.Context, ownerID, slug string) error {
	return s.DeleteFunc(ctx, ownerID, slug)
}
func (s *stubLinkUC) ListForOwner(ctx context.Context, ownerID string) ([]*model.DynamicURL, error) {
	return s.ListFunc(ctx, ownerID)
}
func (s *stubLinkUC) Lookup(ctx context.Context, slug string) (string, error) {
	return s.LookupFunc(ctx, slug)
}

type stubCheckoutUC struct {
	mu          sync.Mutex
	resolved    map[string]int
	OpenFunc    func(ctx context.Context, ownerID string, tier model.Tier) (*model.PaymentSession, string, error)
	ResolveFunc func(ctx context.Context, sessionID string) (*model.Subscription, error)
}

func (s *stubCheckoutUC) Open(ctx context.Context, ownerID string, tier model.Tier) (*model.PaymentSession, string, error) {
	return s.OpenFunc(ctx, ownerID, tier)
}
func (s *stubCheckoutUC) Resolve(ctx context.Context, sessionID string) (*model.Subscription, error) {
	s.mu.Lock()
	if s.resolved == nil {
		s.resolved = make(map[string]int)
	}
	s.resolved[sessionID]++
	n := s.resolved[sessionID]
	s.mu.Unlock()
	if s.ResolveFunc != nil {
		return s.ResolveFunc(ctx, sessionID)
	}
	if n > 1 {
		return nil, domain.ErrAlreadyConsumed
	}
	return &model.Subscription{
		ID:         "sub-1",
		OwnerID:    "owner-1",
		Tier:       model.TierPro,
		Status:     model.SubscriptionStatusActive,
		UsageLimit: 250,
	}, nil
}
func (s *stubCheckoutUC) ReapStale(ctx context.Context, ttl time.Duration) (int64, error) {
	return 0, nil
}

//
// ---------------- helpers ----------------
//

func newNopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.BaseURL = "https://qr.example.com"
	cfg.Auth.HMACSecret = testSecret
	cfg.Payment.WebhookSecret = testWebhookSecret
	cfg.RateLimit.RedirectPerMinute = 120
	return cfg
}

func newTestServer(userUC usecase.UserUseCase, subUC usecase.SubscriptionUseCase, linkUC usecase.LinkUseCase, checkoutUC usecase.CheckoutUseCase) http.Handler {
	logger := newNopLogger()
	srv := api.NewServer(testConfig(), userUC, subUC, linkUC, checkoutUC, nil, logger)
	return srv.Router()
}

func bearerToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

//
// ---------------- tests ----------------
//

func TestRedirect(t *testing.T) {
	linkUC := &stubLinkUC{
		LookupFunc: func(ctx context.Context, slug string) (string, error) {
			if slug == "abc123defg" {
				return "https://example.com/menu", nil
			}
			return "", domain.ErrNotFound
		},
	}
	h := newTestServer(&stubUserUC{}, &stubSubUC{}, linkUC, &stubCheckoutUC{})

	t.Run("known slug redirects with 302", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc123defg", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com/menu", rec.Header().Get("Location"))
	})

	t.Run("unknown slug is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nosuchslug", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuthGuard(t *testing.T) {
	linkUC := &stubLinkUC{
		ListFunc: func(ctx context.Context, ownerID string) ([]*model.DynamicURL, error) {
			return nil, nil
		},
	}
	h := newTestServer(&stubUserUC{}, &stubSubUC{}, linkUC, &stubCheckoutUC{})

	t.Run("missing token is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/links", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token passes and normalizes the subject", func(t *testing.T) {
		var seenOwner string
		linkUC.ListFunc = func(ctx context.Context, ownerID string) ([]*model.DynamicURL, error) {
			seenOwner = ownerID
			return nil, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, "auth0|64f-abc"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "auth0_64f_abc", seenOwner)
	})
}

func TestLinkEndpoints(t *testing.T) {
	now := time.Now()
	link := &model.DynamicURL{
		Slug:      "abc123defg",
		OwnerID:   "auth0_64f_abc",
		TargetURL: "https://example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	linkUC := &stubLinkUC{
		CreateFunc: func(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error) {
			return link, nil
		},
		DeleteFunc: func(ctx context.Context, ownerID, slug string) error { return nil },
	}
	h := newTestServer(&stubUserUC{}, &stubSubUC{}, linkUC, &stubCheckoutUC{})
	auth := "Bearer " + bearerToken(t, "auth0|64f-abc")

	t.Run("create returns the short url", func(t *testing.T) {
		body := bytes.NewBufferString(`{"target_url":"example.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/links", body)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var out struct {
			Data struct {
				Slug     string `json:"slug"`
				ShortURL string `json:"short_url"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "abc123defg", out.Data.Slug)
		assert.Equal(t, "https://qr.example.com/abc123defg", out.Data.ShortURL)
	})

	t.Run("quota exhaustion maps to 403", func(t *testing.T) {
		linkUC.CreateFunc = func(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error) {
			return nil, domain.ErrQuotaExceeded
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/links", bytes.NewBufferString(`{"target_url":"example.com"}`))
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid subscription maps to 402", func(t *testing.T) {
		linkUC.CreateFunc = func(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error) {
			return nil, domain.ErrSubscriptionInvalid
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/links", bytes.NewBufferString(`{"target_url":"example.com"}`))
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("delete is 204", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/links/abc123defg", nil)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestPaymentWebhook(t *testing.T) {
	checkoutUC := &stubCheckoutUC{}
	subUC := &stubSubUC{}
	h := newTestServer(&stubUserUC{}, subUC, &stubLinkUC{}, checkoutUC)

	event := func(id string) []byte {
		return []byte(fmt.Sprintf(`{"type":"checkout.session.completed","data":{"object":{"id":"%s"}}}`, id))
	}
	post := func(body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Webhook-Signature", sig)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing signature is 401", func(t *testing.T) {
		rec := post(event("cs_1"), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signature is 401", func(t *testing.T) {
		rec := post(event("cs_1"), strings.Repeat("0", 64))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid delivery resolves once, replay is 409", func(t *testing.T) {
		body := event("cs_2")
		rec := post(body, signBody(body))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = post(body, signBody(body))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unrelated event types are acknowledged untouched", func(t *testing.T) {
		body := []byte(`{"type":"charge.refunded","data":{"object":{"id":"ch_3"}}}`)
		rec := post(body, signBody(body))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, checkoutUC.resolved["ch_3"])
	})

	lifecycle := func(eventType, ownerID string) []byte {
		return []byte(fmt.Sprintf(
			`{"type":"%s","data":{"object":{"id":"sub_1","metadata":{"owner_id":"%s"}}}}`,
			eventType, ownerID))
	}

	statusEvents := []struct {
		name  string
		event string
		want  model.SubscriptionStatus
	}{
		{"payment failure marks past_due", "invoice.payment_failed", model.SubscriptionStatusPastDue},
		{"paid invoice reactivates", "invoice.paid", model.SubscriptionStatusActive},
		{"subscription deletion cancels", "customer.subscription.deleted", model.SubscriptionStatusCanceled},
	}
	for _, tc := range statusEvents {
		t.Run(tc.name, func(t *testing.T) {
			var gotOwner string
			var gotStatus model.SubscriptionStatus
			subUC.SetStatusFunc = func(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
				gotOwner, gotStatus = ownerID, status
				return &model.Subscription{ID: "sub-1", OwnerID: ownerID, Tier: model.TierPro, Status: status}, nil
			}
			body := lifecycle(tc.event, "auth0_64f_abc")
			rec := post(body, signBody(body))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "auth0_64f_abc", gotOwner)
			assert.Equal(t, tc.want, gotStatus)
		})
	}

	t.Run("lifecycle event without an owner is rejected", func(t *testing.T) {
		subUC.SetStatusFunc = func(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
			t.Error("SetStatus must not be called without an owner")
			return nil, domain.ErrOperationFailed
		}
		body := []byte(`{"type":"invoice.payment_failed","data":{"object":{"id":"in_1"}}}`)
		rec := post(body, signBody(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lifecycle event for an erased owner is acknowledged", func(t *testing.T) {
		subUC.SetStatusFunc = func(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
			return nil, domain.ErrNotFound
		}
		body := lifecycle("customer.subscription.deleted", "auth0_gone")
		rec := post(body, signBody(body))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&stubUserUC{}, &stubSubUC{}, &stubLinkUC{}, &stubCheckoutUC{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"), "every response carries its trace id")
}
