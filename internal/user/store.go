package user

import (
	"context"
	"errors"
	"time"
)

// User is the persisted account record. Email is the uniqueness key for
// account linking; Handle is the provider login and may change over time.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`

	// Provider access token retained for later API calls on the user's
	// behalf. Never serialized to clients.
	ProviderToken          string    `json:"-"`
	ProviderTokenExpiresAt time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("user not found")

// Store is the persistence collaborator for accounts. The session core
// depends only on these four operations.
type Store interface {
	// FindByHandleOrEmail returns the record matching either key.
	// This is the de-duplication lookup: a user who changes handle but
	// keeps the email (or vice versa) resolves to the same record.
	FindByHandleOrEmail(ctx context.Context, handle, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
}
