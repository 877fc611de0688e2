package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/adapter"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/logging"
	"dynamic-qr-platform/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase binds externally issued payment sessions to subscription
// mutations. Resolve is the idempotency boundary for the provider's
// at-least-once webhook delivery.
type CheckoutUseCase interface {
	// Open creates a checkout session with the provider and records it;
	// returns the session and the hosted checkout URL.
	Open(ctx context.Context, ownerID string, tier model.Tier) (*model.PaymentSession, string, error)
	// Resolve consumes the session exactly once, creating the owner's
	// subscription or overriding its tier. A replay returns
	// domain.ErrAlreadyConsumed and mutates nothing.
	Resolve(ctx context.Context, sessionID string) (*model.Subscription, error)
	// ReapStale deletes unconsumed sessions older than ttl.
	ReapStale(ctx context.Context, ttl time.Duration) (int64, error)
}

type checkoutUC struct {
	sessions repository.PaymentSessionRepository
	users    repository.UserRepository
	ledger   SubscriptionUseCase
	gateway  adapter.CheckoutGateway
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewCheckoutUseCase(
	sessions repository.PaymentSessionRepository,
	users repository.UserRepository,
	ledger SubscriptionUseCase,
	gateway adapter.CheckoutGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{sessions: sessions, users: users, ledger: ledger, gateway: gateway, tm: tm, log: logger}
}

func (u *checkoutUC) Open(ctx context.Context, ownerID string, tier model.Tier) (*model.PaymentSession, string, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Open")()

	if tier == model.TierFree {
		// Nothing to buy; Free is assigned at registration.
		return nil, "", domain.ErrInvalidArgument
	}
	usr, err := u.users.FindByID(ctx, repository.NoTX, ownerID)
	if err != nil {
		return nil, "", err
	}

	cs, err := u.gateway.CreateCheckoutSession(ctx, usr.ID, usr.Email, tier)
	if err != nil {
		metrics.IncPayment("open_failed")
		return nil, "", err
	}

	sess, err := model.NewPaymentSession(cs.SessionID, usr.ID, tier)
	if err != nil {
		return nil, "", err
	}
	if err := u.sessions.Save(ctx, repository.NoTX, sess); err != nil {
		return nil, "", err
	}
	metrics.IncPayment("opened")
	return sess, cs.CheckoutURL, nil
}

func (u *checkoutUC) Resolve(ctx context.Context, sessionID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Resolve")()

	var out *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Row lock: concurrent deliveries of the same webhook serialize here,
		// so exactly one sees consumed=false.
		sess, err := u.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if sess.Consumed {
			return domain.ErrAlreadyConsumed
		}

		sub, err := u.ledger.Get(ctx, tx, sess.OwnerID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			sub, err = u.ledger.Create(ctx, tx, sess.OwnerID, sess.IntendedTier)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			sub, err = u.ledger.OverrideTier(ctx, tx, sess.OwnerID, sub.ID, sess.IntendedTier)
			if err != nil {
				return err
			}
			if sub.Status != model.SubscriptionStatusActive {
				// A completed payment reactivates from any status, canceled
				// included; resubscribing lands on the same row.
				sub, err = u.ledger.Reactivate(ctx, tx, sess.OwnerID)
				if err != nil {
					return err
				}
			}
		}

		if err := u.sessions.MarkConsumed(ctx, tx, sessionID); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyConsumed) {
			metrics.IncPayment("replayed")
		} else {
			metrics.IncPayment("resolve_failed")
		}
		return nil, err
	}
	metrics.IncPayment("resolved")
	return out, nil
}

func (u *checkoutUC) ReapStale(ctx context.Context, ttl time.Duration) (int64, error) {
	return u.sessions.DeleteUnconsumedBefore(ctx, repository.NoTX, time.Now().Add(-ttl))
}
