package repository

import (
	"context"

	"dynamic-qr-platform/internal/domain/model"
)

type DynamicURLRepository interface {
	// Save inserts the row; domain.ErrAlreadyExists on a slug collision so
	// callers can regenerate and retry.
	Save(ctx context.Context, tx Tx, u *model.DynamicURL) error
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.DynamicURL, error)
	// UpdateTarget is a single-row write with last-writer-wins semantics.
	UpdateTarget(ctx context.Context, tx Tx, slug, targetURL string) (*model.DynamicURL, error)
	// DeleteBySlug removes the row and returns its owner id so the caller can
	// release the quota unit; domain.ErrNotFound when the slug is absent.
	DeleteBySlug(ctx context.Context, tx Tx, slug string) (string, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.DynamicURL, error)
	CountByOwner(ctx context.Context, tx Tx, ownerID string) (int, error)
	// TouchAccess bumps access_count/last_accessed; called off the redirect
	// response path, failures are non-fatal.
	TouchAccess(ctx context.Context, tx Tx, slug string) error
}
