package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/infra/metrics"
	red "dynamic-qr-platform/internal/infra/redis"
)

var _ repository.DynamicURLRepository = (*linkRepoCacheDecorator)(nil)

// linkRepoCacheDecorator puts a Redis read-through cache in front of the slug
// lookup, which carries almost all of the read traffic (every QR scan).
// Writes invalidate the slug's key only after the row write succeeded:
// deleting first would let a concurrent scan refill the key from the old row
// and pin the stale target for a full TTL.
type linkRepoCacheDecorator struct {
	inner repository.DynamicURLRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewLinkRepoCacheDecorator(inner repository.DynamicURLRepository, cache red.RedisClient, ttl time.Duration) repository.DynamicURLRepository {
	return &linkRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func slugKey(slug string) string { return fmt.Sprintf("link:slug:%s", slug) }

func (d *linkRepoCacheDecorator) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.DynamicURL, error) {
	if tx != nil {
		// Transactional readers want the row, not a cached copy.
		metrics.IncCacheRequest("link", "bypass")
		return d.inner.FindBySlug(ctx, tx, slug)
	}

	val, err := d.cache.Get(ctx, slugKey(slug))
	if err == nil {
		var link model.DynamicURL
		if json.Unmarshal([]byte(val), &link) == nil {
			metrics.IncCacheRequest("link", "hit")
			return &link, nil
		}
	}

	metrics.IncCacheRequest("link", "miss")
	link, err := d.inner.FindBySlug(ctx, tx, slug)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(link); err == nil {
		_ = d.cache.Set(ctx, slugKey(slug), bytes, d.ttl)
	}
	return link, nil
}

func (d *linkRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.DynamicURL) error {
	if err := d.inner.Save(ctx, tx, u); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, slugKey(u.Slug))
	return nil
}

func (d *linkRepoCacheDecorator) UpdateTarget(ctx context.Context, tx repository.Tx, slug, targetURL string) (*model.DynamicURL, error) {
	link, err := d.inner.UpdateTarget(ctx, tx, slug, targetURL)
	if err != nil {
		return nil, err
	}
	_ = d.cache.Del(ctx, slugKey(slug))
	return link, nil
}

func (d *linkRepoCacheDecorator) DeleteBySlug(ctx context.Context, tx repository.Tx, slug string) (string, error) {
	ownerID, err := d.inner.DeleteBySlug(ctx, tx, slug)
	if err != nil {
		return "", err
	}
	_ = d.cache.Del(ctx, slugKey(slug))
	return ownerID, nil
}

// Pass-through methods that don't need caching
func (d *linkRepoCacheDecorator) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.DynamicURL, error) {
	return d.inner.ListByOwner(ctx, tx, ownerID)
}

func (d *linkRepoCacheDecorator) CountByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int, error) {
	return d.inner.CountByOwner(ctx, tx, ownerID)
}

func (d *linkRepoCacheDecorator) TouchAccess(ctx context.Context, tx repository.Tx, slug string) error {
	// access_count lives only in Postgres; the cached copy may lag, which is
	// fine for a stat.
	return d.inner.TouchAccess(ctx, tx, slug)
}
