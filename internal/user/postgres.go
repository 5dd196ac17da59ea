package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresStore persists users in a single `users` table:
//
//	CREATE TABLE users (
//	  id UUID PRIMARY KEY,
//	  email TEXT NOT NULL UNIQUE,
//	  handle TEXT NOT NULL UNIQUE,
//	  name TEXT NOT NULL DEFAULT '',
//	  avatar_url TEXT NOT NULL DEFAULT '',
//	  provider_token TEXT NOT NULL DEFAULT '',
//	  provider_token_expires_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const userColumns = `id, email, handle, name, avatar_url, provider_token, provider_token_expires_at, created_at, updated_at`

func (s *PostgresStore) FindByHandleOrEmail(ctx context.Context, handle, email string) (User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE handle = $1 OR email = $2
LIMIT 1
`
	return scanUser(s.db.QueryRowContext(ctx, q, handle, email))
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`
	return scanUser(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) Create(ctx context.Context, u User) (User, error) {
	now := s.clock().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now

	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := s.db.ExecContext(ctx, q,
		u.ID, u.Email, u.Handle, u.Name, u.AvatarURL,
		u.ProviderToken, u.ProviderTokenExpiresAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) Update(ctx context.Context, u User) (User, error) {
	u.UpdatedAt = s.clock().UTC()

	const q = `
UPDATE users
SET email = $2, handle = $3, name = $4, avatar_url = $5,
    provider_token = $6, provider_token_expires_at = $7, updated_at = $8
WHERE id = $1
RETURNING created_at
`
	err := s.db.QueryRowContext(ctx, q,
		u.ID, u.Email, u.Handle, u.Name, u.AvatarURL,
		u.ProviderToken, u.ProviderTokenExpiresAt, u.UpdatedAt,
	).Scan(&u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Handle,
		&u.Name,
		&u.AvatarURL,
		&u.ProviderToken,
		&u.ProviderTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
