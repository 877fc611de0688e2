package repository

import (
	"context"

	"dynamic-qr-platform/internal/domain/model"
)

type UserRepository interface {
	// Save inserts the user; domain.ErrAlreadyExists on a duplicate id.
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// Delete removes the user row; owned subscriptions and dynamic URLs
	// cascade at the schema level.
	Delete(ctx context.Context, tx Tx, id string) error
	Count(ctx context.Context, tx Tx) (int, error)
}
