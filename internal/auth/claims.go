package auth

import "github.com/golang-jwt/jwt/v5"

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the only supported JWT claims shape for this service.
// Subject carries the stable user id; Email and Handle are snapshots
// taken at mint time. Both token kinds carry the same identity fields;
// they differ only in TokenKind, expiry, and signing secret.
type Claims struct {
	jwt.RegisteredClaims

	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	TokenKind TokenKind `json:"token_kind"`
}

// Identity is the claim payload independent of token plumbing.
type Identity struct {
	UserID string
	Email  string
	Handle string
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Handle: c.Handle}
}
