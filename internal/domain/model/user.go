package model

import (
	"strings"
	"time"

	"dynamic-qr-platform/internal/domain"
)

// User is a domain entity keyed by the external identity token. The token is
// issued by the identity provider (auth0-style) and trusted as-is; we only
// normalize it for storage.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// FormatOwnerID normalizes an external identity token for use as a row key.
// Provider ids look like "auth0|64f..." and the separator characters are not
// safe in every context we key on, so they become underscores.
func FormatOwnerID(raw string) string {
	return strings.NewReplacer("|", "_", "-", "_").Replace(raw)
}

func NewUser(externalID, email string) (*User, error) {
	if externalID == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:        FormatOwnerID(externalID),
		Email:     email,
		CreatedAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
