package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/logging"
	"dynamic-qr-platform/internal/infra/metrics"
)

// Compile-time check
var _ LinkUseCase = (*linkUC)(nil)

// slugRetries bounds regeneration attempts on a slug collision.
const slugRetries = 3

// LinkUseCase owns the slug -> target mapping. Create and Delete adjust the
// usage ledger inside the same transaction as the row write, so quota is
// never consumed for a row that was not written and vice versa. Lookup is
// the redirect read path and performs no quota checks at all.
type LinkUseCase interface {
	Create(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error)
	UpdateTarget(ctx context.Context, ownerID, slug, targetURL string) (*model.DynamicURL, error)
	// Delete is idempotent: deleting an absent slug succeeds without touching
	// usage. A real delete releases one quota unit.
	Delete(ctx context.Context, ownerID, slug string) error
	ListForOwner(ctx context.Context, ownerID string) ([]*model.DynamicURL, error)
	// Lookup resolves a slug to its current target.
	Lookup(ctx context.Context, slug string) (string, error)
}

type linkUC struct {
	links  repository.DynamicURLRepository
	ledger SubscriptionUseCase
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewLinkUseCase(links repository.DynamicURLRepository, ledger SubscriptionUseCase, tm repository.TransactionManager, logger *zerolog.Logger) *linkUC {
	return &linkUC{links: links, ledger: ledger, tm: tm, log: logger}
}

func (u *linkUC) Create(ctx context.Context, ownerID, targetURL string) (*model.DynamicURL, error) {
	defer logging.TraceDuration(u.log, "LinkUC.Create")()

	var out *model.DynamicURL
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The conditional increment and the row insert commit together; a
		// failed insert rolls the counter back with the transaction.
		if _, err := u.ledger.IncrementUsage(ctx, tx, ownerID); err != nil {
			return err
		}
		for attempt := 0; attempt < slugRetries; attempt++ {
			link, err := model.NewDynamicURL(ownerID, targetURL)
			if err != nil {
				return err
			}
			err = u.links.Save(ctx, tx, link)
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			if err != nil {
				return err
			}
			out = link
			return nil
		}
		return domain.ErrOperationFailed
	})
	if err != nil {
		return nil, err
	}
	metrics.IncLinkMutation("create")
	return out, nil
}

func (u *linkUC) UpdateTarget(ctx context.Context, ownerID, slug, targetURL string) (*model.DynamicURL, error) {
	defer logging.TraceDuration(u.log, "LinkUC.UpdateTarget")()

	target, err := model.NormalizeTargetURL(targetURL)
	if err != nil {
		return nil, err
	}
	existing, err := u.links.FindBySlug(ctx, repository.NoTX, slug)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		// Not yours, not visible.
		return nil, domain.ErrNotFound
	}
	// Single-row write, last writer wins; no usage cost.
	link, err := u.links.UpdateTarget(ctx, repository.NoTX, slug, target)
	if err != nil {
		return nil, err
	}
	metrics.IncLinkMutation("update_target")
	return link, nil
}

func (u *linkUC) Delete(ctx context.Context, ownerID, slug string) error {
	defer logging.TraceDuration(u.log, "LinkUC.Delete")()

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.links.FindBySlug(ctx, tx, slug)
		if errors.Is(err, domain.ErrNotFound) {
			return nil // idempotent: intent already satisfied
		}
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return nil
		}
		if _, err := u.links.DeleteBySlug(ctx, tx, slug); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		_, err = u.ledger.DecrementUsage(ctx, tx, ownerID)
		return err
	})
	if err != nil {
		return err
	}
	metrics.IncLinkMutation("delete")
	return nil
}

func (u *linkUC) ListForOwner(ctx context.Context, ownerID string) ([]*model.DynamicURL, error) {
	return u.links.ListByOwner(ctx, repository.NoTX, ownerID)
}

func (u *linkUC) Lookup(ctx context.Context, slug string) (string, error) {
	link, err := u.links.FindBySlug(ctx, repository.NoTX, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncRedirect("not_found")
		}
		return "", err
	}

	// Access bookkeeping happens off the response path; a failed touch only
	// costs a stat, never a redirect.
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := u.links.TouchAccess(bg, repository.NoTX, slug); err != nil {
			u.log.Debug().Err(err).Str("slug", slug).Msg("access touch failed")
		}
	}()

	metrics.IncRedirect("ok")
	return link.TargetURL, nil
}
