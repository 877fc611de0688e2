package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	// Register stores the identity record once and assigns the implicit
	// Free-tier subscription; domain.ErrAlreadyExists on a repeat.
	Register(ctx context.Context, externalID, email string) (*model.User, error)
	Get(ctx context.Context, ownerID string) (*model.User, error)
	// Erase removes the account; subscription and dynamic URLs cascade.
	Erase(ctx context.Context, ownerID string) error
}

type userUC struct {
	users  repository.UserRepository
	ledger SubscriptionUseCase
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, ledger SubscriptionUseCase, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, ledger: ledger, tm: tm, log: logger}
}

func (u *userUC) Register(ctx context.Context, externalID, email string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Register")()

	usr, err := model.NewUser(externalID, email)
	if err != nil {
		return nil, err
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.Save(ctx, tx, usr); err != nil {
			return err
		}
		// Every registered owner carries a subscription row, so the quota
		// gate never has to special-case its absence.
		_, err := u.ledger.Create(ctx, tx, usr.ID, model.TierFree)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("owner_id", usr.ID).Msg("user registered")
	return usr, nil
}

func (u *userUC) Get(ctx context.Context, ownerID string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, ownerID)
}

func (u *userUC) Erase(ctx context.Context, ownerID string) error {
	defer logging.TraceDuration(u.log, "UserUC.Erase")()

	err := u.users.Delete(ctx, repository.NoTX, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err == nil {
		u.log.Info().Str("owner_id", ownerID).Msg("user erased")
	}
	return err
}
