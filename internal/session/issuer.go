package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codelink-platform/internal/auth"
	"codelink-platform/internal/github"
	"codelink-platform/internal/user"
)

// Provider is the slice of the identity provider the issuer needs.
type Provider interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchUser(ctx context.Context, accessToken string) (github.Profile, error)
}

// providerTokenLifetime bounds how long a stored provider access token is
// considered usable before a fresh login is needed for provider API calls.
const providerTokenLifetime = 8 * time.Hour

// Issuer runs the authentication pipeline: code exchange, identity
// resolution, account upsert, token minting. Each call is independent;
// there is no shared mutable state and no partial session on failure.
type Issuer struct {
	codec    *auth.Codec
	provider Provider
	users    user.Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewIssuer(codec *auth.Codec, provider Provider, users user.Store) *Issuer {
	return &Issuer{codec: codec, provider: provider, users: users, clock: time.Now}
}

// Login exchanges an authorization code for a full session: the resolved
// user record plus a freshly minted token pair.
func (i *Issuer) Login(ctx context.Context, code string) (auth.TokenPair, user.User, error) {
	providerToken, err := i.provider.ExchangeCode(ctx, code)
	if err != nil {
		return auth.TokenPair{}, user.User{}, mapProviderErr(err)
	}

	profile, err := i.provider.FetchUser(ctx, providerToken)
	if err != nil {
		return auth.TokenPair{}, user.User{}, mapProviderErr(err)
	}
	if profile.Email == "" {
		return auth.TokenPair{}, user.User{}, ErrIdentityIncomplete
	}

	u, err := i.upsertUser(ctx, profile, providerToken)
	if err != nil {
		return auth.TokenPair{}, user.User{}, fmt.Errorf("upsert user: %w", err)
	}

	pair, err := i.codec.MintPair(i.clock(), auth.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Handle: u.Handle,
	})
	if err != nil {
		return auth.TokenPair{}, user.User{}, fmt.Errorf("mint tokens: %w", err)
	}
	return pair, u, nil
}

// upsertUser matches on provider handle OR email: if either matches an
// existing record, that record is updated rather than duplicated. A user
// who changes their provider handle but keeps the email (or vice versa)
// is recognized as the same account.
func (i *Issuer) upsertUser(ctx context.Context, p github.Profile, providerToken string) (user.User, error) {
	tokenExpiry := i.clock().UTC().Add(providerTokenLifetime)

	existing, err := i.users.FindByHandleOrEmail(ctx, p.Login, p.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		return i.users.Create(ctx, user.User{
			Email:                  p.Email,
			Handle:                 p.Login,
			Name:                   p.Name,
			AvatarURL:              p.AvatarURL,
			ProviderToken:          providerToken,
			ProviderTokenExpiresAt: tokenExpiry,
		})
	}

	existing.Email = p.Email
	existing.Handle = p.Login
	if p.Name != "" {
		existing.Name = p.Name
	}
	if p.AvatarURL != "" {
		existing.AvatarURL = p.AvatarURL
	}
	existing.ProviderToken = providerToken
	existing.ProviderTokenExpiresAt = tokenExpiry
	return i.users.Update(ctx, existing)
}

// Refresh verifies a refresh token and mints a brand-new pair from the
// claims embedded in it. The identity is NOT re-read from the store:
// stale profile fields persist in refreshed tokens until the next full
// login. The old refresh token stays valid until its natural expiry;
// there is no server-side revocation list.
func (i *Issuer) Refresh(refreshToken string) (auth.TokenPair, error) {
	claims, ok := i.codec.Verify(refreshToken, auth.TokenKindRefresh, i.clock())
	if !ok {
		return auth.TokenPair{}, ErrRefreshRejected
	}

	pair, err := i.codec.MintPair(i.clock(), claims.Identity())
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("mint tokens: %w", err)
	}
	return pair, nil
}

// CurrentUser resolves the account behind an authenticated request.
func (i *Issuer) CurrentUser(ctx context.Context, userID string) (user.User, error) {
	return i.users.FindByID(ctx, userID)
}

func mapProviderErr(err error) error {
	switch {
	case errors.Is(err, github.ErrCodeRejected):
		return ErrProviderExchange
	case errors.Is(err, github.ErrUnavailable):
		return ErrUpstreamUnavailable
	default:
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
}
