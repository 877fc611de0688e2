//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/adapter"
	"dynamic-qr-platform/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager runs the callback directly; the in-memory repos below apply
// each operation atomically under their own mutex, so transactional
// composition reduces to sequencing for these tests.
type mockTxManager struct{}

func newMockTxManager() *mockTxManager { return &mockTxManager{} }

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// ---- users ----

type memUserRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.User
	saveErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[u.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memUserRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}

// ---- subscriptions ----

type memSubRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription // owner_id -> subscription
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[s.OwnerID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *s
	m.store[s.OwnerID] = &cp
	return nil
}

func (m *memSubRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(ownerID)
}

func (m *memSubRepo) find(ownerID string) (*model.Subscription, error) {
	s, ok := m.store[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) UpdateTier(ctx context.Context, tx repository.Tx, ownerID, subID string, tier model.Tier, limit int) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[ownerID]
	if !ok || s.ID != subID {
		return nil, domain.ErrNotFound
	}
	s.Tier = tier
	s.UsageLimit = limit
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) UpdateStatus(ctx context.Context, tx repository.Tx, ownerID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

// IncrementUsage mirrors the conditional-update semantics: the status and
// quota checks and the increment happen under one lock.
func (m *memSubRepo) IncrementUsage(ctx context.Context, tx repository.Tx, ownerID string, validStatuses []model.SubscriptionStatus) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	valid := false
	for _, st := range validStatuses {
		if s.Status == st {
			valid = true
			break
		}
	}
	if !valid {
		return nil, domain.ErrSubscriptionInvalid
	}
	if s.UsageCount >= s.UsageLimit {
		return nil, domain.ErrQuotaExceeded
	}
	s.UsageCount++
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) DecrementUsage(ctx context.Context, tx repository.Tx, ownerID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.UsageCount > 0 {
		s.UsageCount--
	}
	s.UpdatedAt = time.Now()
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		counts[s.Status]++
	}
	return counts, nil
}

// ---- payment sessions ----

type memSessionRepo struct {
	mu    sync.Mutex
	store map[string]*model.PaymentSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{store: make(map[string]*model.PaymentSession)}
}

func (m *memSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[s.SessionID]; ok {
		return domain.ErrConflict
	}
	cp := *s
	m.store[s.SessionID] = &cp
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) MarkConsumed(ctx context.Context, tx repository.Tx, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[sessionID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Consumed = true
	return nil
}

func (m *memSessionRepo) DeleteUnconsumedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.store {
		if !s.Consumed && s.CreatedAt.Before(cutoff) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

// ---- dynamic urls ----

type memLinkRepo struct {
	mu      sync.Mutex
	store   map[string]*model.DynamicURL
	saveErr error
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{store: make(map[string]*model.DynamicURL)}
}

func (m *memLinkRepo) Save(ctx context.Context, tx repository.Tx, u *model.DynamicURL) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[u.Slug]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *u
	m.store[u.Slug] = &cp
	return nil
}

func (m *memLinkRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.DynamicURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[slug]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memLinkRepo) UpdateTarget(ctx context.Context, tx repository.Tx, slug, targetURL string) (*model.DynamicURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[slug]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.TargetURL = targetURL
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (m *memLinkRepo) DeleteBySlug(ctx context.Context, tx repository.Tx, slug string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[slug]
	if !ok {
		return "", domain.ErrNotFound
	}
	delete(m.store, slug)
	return u.OwnerID, nil
}

func (m *memLinkRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.DynamicURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DynamicURL
	for _, u := range m.store {
		if u.OwnerID == ownerID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLinkRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.store {
		if u.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *memLinkRepo) TouchAccess(ctx context.Context, tx repository.Tx, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[slug]
	if !ok {
		return domain.ErrNotFound
	}
	u.AccessCount++
	now := time.Now()
	u.LastAccessed = &now
	return nil
}

// ---- payment gateway ----

type mockGateway struct {
	mu       sync.Mutex
	nextID   int
	openErr  error
	sessions []adapter.CheckoutSession
}

func newMockGateway() *mockGateway { return &mockGateway{} }

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreateCheckoutSession(ctx context.Context, ownerID, email string, tier model.Tier) (adapter.CheckoutSession, error) {
	if g.openErr != nil {
		return adapter.CheckoutSession{}, g.openErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	cs := adapter.CheckoutSession{
		SessionID:   fmt.Sprintf("cs_test_%d", g.nextID),
		CheckoutURL: "https://pay.example.com/session",
	}
	g.sessions = append(g.sessions, cs)
	return cs, nil
}
