package model

import (
	"net/url"
	"strings"
	"time"

	"dynamic-qr-platform/internal/domain"

	"github.com/oklog/ulid/v2"
)

// DynamicURL maps an immutable server-issued slug to a mutable target. The
// slug is what gets printed into QR codes, so it never changes after
// creation; only the target moves.
type DynamicURL struct {
	Slug         string
	OwnerID      string
	TargetURL    string
	AccessCount  int64
	LastAccessed *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSlug returns a short, URL-safe identifier. The random tail of a ULID
// gives 50 bits of entropy in 10 Crockford base32 characters, which keeps
// printed codes compact; collisions are handled by the unique constraint.
func NewSlug() string {
	id := ulid.Make().String()
	return strings.ToLower(id[len(id)-10:])
}

// NormalizeTargetURL validates the destination and defaults the scheme to
// https so a stored "example.com" redirects somewhere sensible.
func NormalizeTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidArgument
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", domain.ErrInvalidArgument
	}
	return u.String(), nil
}

func NewDynamicURL(ownerID, targetURL string) (*DynamicURL, error) {
	if ownerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	target, err := NormalizeTargetURL(targetURL)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &DynamicURL{
		Slug:      NewSlug(),
		OwnerID:   ownerID,
		TargetURL: target,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
