package auth

import (
	"errors"
	"time"

	"codelink-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec signs and verifies session tokens. It is stateless and safe for
// unlimited concurrent use; the only shared data are the immutable secrets.
//
// Access and refresh tokens are signed with independent secrets, so a
// token of one kind never verifies as the other even if the kind claim
// were forged.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(cfg config.AuthConfig) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("both JWT secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// MintPair issues a fresh access/refresh pair for one identity.
// Both tokens carry identical identity claims; only kind and expiry differ.
func (c *Codec) MintPair(now time.Time, id Identity) (TokenPair, error) {
	access, err := c.mint(now, TokenKindAccess, id, c.accessTTL, c.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.mint(now, TokenKindRefresh, id, c.refreshTTL, c.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, expiry, and kind. It reports only ok/not-ok:
// callers must treat every failure as the same unauthenticated outcome
// and never surface the reason to the end user.
func (c *Codec) Verify(raw string, kind TokenKind, now time.Time) (Claims, bool) {
	secret := c.accessSecret
	if kind == TokenKindRefresh {
		secret = c.refreshSecret
	}

	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
	)

	_, err := parser.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return Claims{}, false
	}

	if c.issuer != "" && !claimsIssuedBy(claims, c.issuer) {
		return Claims{}, false
	}
	if claims.TokenKind != kind {
		return Claims{}, false
	}
	if claims.Subject == "" || claims.Email == "" {
		return Claims{}, false
	}
	return claims, true
}

func (c *Codec) mint(now time.Time, kind TokenKind, id Identity, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Email:     id.Email,
		Handle:    id.Handle,
		TokenKind: kind,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func claimsIssuedBy(claims Claims, issuer string) bool {
	iss, err := claims.GetIssuer()
	return err == nil && iss == issuer
}
