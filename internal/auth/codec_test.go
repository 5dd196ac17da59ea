package auth

import (
	"strings"
	"testing"
	"time"

	"codelink-platform/internal/config"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		Issuer:          "codelink",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return c
}

var testIdentity = Identity{UserID: "user-1", Email: "a@x.com", Handle: "alice"}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	c := testCodec(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := c.MintPair(now, testIdentity)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, ok := c.Verify(pair.AccessToken, TokenKindAccess, now.Add(time.Minute))
	if !ok {
		t.Fatalf("expected valid access token")
	}
	if claims.Identity() != testIdentity {
		t.Fatalf("unexpected identity: %+v", claims.Identity())
	}

	if _, ok := c.Verify(pair.RefreshToken, TokenKindRefresh, now.Add(time.Hour)); !ok {
		t.Fatalf("expected valid refresh token")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	c := testCodec(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := c.MintPair(now, testIdentity)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, ok := c.Verify(pair.AccessToken, TokenKindAccess, now.Add(16*time.Minute)); ok {
		t.Fatalf("expected expired access token to be rejected")
	}
	if _, ok := c.Verify(pair.RefreshToken, TokenKindRefresh, now.Add(8*24*time.Hour)); ok {
		t.Fatalf("expected expired refresh token to be rejected")
	}
}

func TestVerifyRejectsCrossKind(t *testing.T) {
	// Secret isolation: an access token must never verify as a refresh
	// token and vice versa, even before expiry.
	c := testCodec(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := c.MintPair(now, testIdentity)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, ok := c.Verify(pair.AccessToken, TokenKindRefresh, now); ok {
		t.Fatalf("access token verified with refresh secret")
	}
	if _, ok := c.Verify(pair.RefreshToken, TokenKindAccess, now); ok {
		t.Fatalf("refresh token verified with access secret")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	c := testCodec(t)
	other, err := NewCodec(config.AuthConfig{
		AccessSecret:    "other-access",
		RefreshSecret:   "other-refresh",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := other.MintPair(now, testIdentity)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, ok := c.Verify(pair.AccessToken, TokenKindAccess, now); ok {
		t.Fatalf("token signed with foreign secret verified")
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	c := testCodec(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := c.MintPair(now, testIdentity)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	parts := strings.Split(pair.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + ".eyJzdWIiOiJhdHRhY2tlciJ9." + parts[2]
	if _, ok := c.Verify(tampered, TokenKindAccess, now); ok {
		t.Fatalf("tampered token verified")
	}

	if _, ok := c.Verify("not-a-token", TokenKindAccess, now); ok {
		t.Fatalf("garbage verified")
	}
}

func TestNewCodecRejectsSharedSecret(t *testing.T) {
	_, err := NewCodec(config.AuthConfig{
		AccessSecret:    "same",
		RefreshSecret:   "same",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}
