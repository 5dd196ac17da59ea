package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"codelink-platform/internal/auth"
	"codelink-platform/internal/config"
	"codelink-platform/internal/github"
	"codelink-platform/internal/user"
)

// fakeProvider scripts the identity provider for issuer tests.
type fakeProvider struct {
	exchangeErr error
	token       string
	profile     github.Profile
	profileErr  error

	exchangeCalls int
}

func (f *fakeProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeProvider) FetchUser(ctx context.Context, accessToken string) (github.Profile, error) {
	if f.profileErr != nil {
		return github.Profile{}, f.profileErr
	}
	return f.profile, nil
}

func newTestCodec(t *testing.T) *auth.Codec {
	t.Helper()
	codec, err := auth.NewCodec(config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return codec
}

func TestLogin_CreatesUserAndMintsPair(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()
	provider := &fakeProvider{
		token:   "gh-token",
		profile: github.Profile{Login: "alice", Email: "a@x.com", Name: "Alice", AvatarURL: "http://img"},
	}
	issuer := NewIssuer(codec, provider, store)

	pair, u, err := issuer.Login(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID == "" || u.Email != "a@x.com" || u.Handle != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.ProviderToken != "gh-token" {
		t.Fatalf("provider token not retained")
	}

	claims, ok := codec.Verify(pair.AccessToken, auth.TokenKindAccess, time.Now())
	if !ok {
		t.Fatalf("minted access token does not verify")
	}
	if claims.Subject != u.ID || claims.Email != "a@x.com" || claims.Handle != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLogin_UpsertMatchesByEmail(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()

	first := &fakeProvider{token: "t1", profile: github.Profile{Login: "alice", Email: "a@x.com"}}
	issuer := NewIssuer(codec, first, store)
	_, u1, err := issuer.Login(context.Background(), "c1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	// Same email, renamed handle: must update the existing record.
	second := &fakeProvider{token: "t2", profile: github.Profile{Login: "alice2", Email: "a@x.com"}}
	issuer = NewIssuer(codec, second, store)
	_, u2, err := issuer.Login(context.Background(), "c2")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if u2.ID != u1.ID {
		t.Fatalf("expected same record, got %s and %s", u1.ID, u2.ID)
	}
	if u2.Handle != "alice2" {
		t.Fatalf("handle not updated: %q", u2.Handle)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", store.Len())
	}
}

func TestLogin_UpsertMatchesByHandle(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()

	first := &fakeProvider{token: "t1", profile: github.Profile{Login: "alice", Email: "a@x.com"}}
	_, u1, err := NewIssuer(codec, first, store).Login(context.Background(), "c1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	// Same handle, new email: still the same account.
	second := &fakeProvider{token: "t2", profile: github.Profile{Login: "alice", Email: "new@x.com"}}
	_, u2, err := NewIssuer(codec, second, store).Login(context.Background(), "c2")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if u2.ID != u1.ID {
		t.Fatalf("expected same record, got %s and %s", u1.ID, u2.ID)
	}
	if u2.Email != "new@x.com" {
		t.Fatalf("email not updated: %q", u2.Email)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", store.Len())
	}
}

func TestLogin_UpsertKeepsNameWhenProviderOmitsIt(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()

	first := &fakeProvider{token: "t1", profile: github.Profile{Login: "alice", Email: "a@x.com", Name: "Alice"}}
	if _, _, err := NewIssuer(codec, first, store).Login(context.Background(), "c1"); err != nil {
		t.Fatalf("first login: %v", err)
	}

	second := &fakeProvider{token: "t2", profile: github.Profile{Login: "alice", Email: "a@x.com"}}
	_, u, err := NewIssuer(codec, second, store).Login(context.Background(), "c2")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if u.Name != "Alice" {
		t.Fatalf("existing name overwritten: %q", u.Name)
	}
}

func TestLogin_IdentityIncomplete(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()
	provider := &fakeProvider{token: "t", profile: github.Profile{Login: "ghost"}} // no email anywhere
	issuer := NewIssuer(codec, provider, store)

	_, _, err := issuer.Login(context.Background(), "c")
	if !errors.Is(err, ErrIdentityIncomplete) {
		t.Fatalf("expected ErrIdentityIncomplete, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("no partial session: expected 0 users, got %d", store.Len())
	}
}

func TestLogin_ProviderErrorMapping(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()

	issuer := NewIssuer(codec, &fakeProvider{exchangeErr: github.ErrCodeRejected}, store)
	if _, _, err := issuer.Login(context.Background(), "bad"); !errors.Is(err, ErrProviderExchange) {
		t.Fatalf("expected ErrProviderExchange, got %v", err)
	}

	issuer = NewIssuer(codec, &fakeProvider{exchangeErr: github.ErrUnavailable}, store)
	if _, _, err := issuer.Login(context.Background(), "x"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestRefresh_MintsNewPairFromEmbeddedClaims(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()
	provider := &fakeProvider{token: "t", profile: github.Profile{Login: "alice", Email: "a@x.com"}}
	issuer := NewIssuer(codec, provider, store)

	pair, u, err := issuer.Login(context.Background(), "c")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := issuer.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	claims, ok := codec.Verify(next.AccessToken, auth.TokenKindAccess, time.Now())
	if !ok {
		t.Fatalf("refreshed access token does not verify")
	}
	if claims.Subject != u.ID || claims.Email != "a@x.com" {
		t.Fatalf("refreshed claims diverged: %+v", claims)
	}
	// The store must not be consulted during refresh.
	if provider.exchangeCalls != 1 {
		t.Fatalf("refresh must not hit the provider")
	}
}

func TestRefresh_RejectsExpiredAndTampered(t *testing.T) {
	codec := newTestCodec(t)
	store := user.NewMemoryStore()
	issuer := NewIssuer(codec, &fakeProvider{}, store)

	// Expired: mint with a clock far in the past.
	past := NewIssuer(codec, &fakeProvider{token: "t", profile: github.Profile{Login: "a", Email: "a@x.com"}}, store)
	past.clock = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	pair, _, err := past.Login(context.Background(), "c")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := issuer.Refresh(pair.RefreshToken); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected for expired token, got %v", err)
	}

	if _, err := issuer.Refresh("garbage"); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected for garbage, got %v", err)
	}

	// An access token must never pass as a refresh token.
	now := NewIssuer(codec, &fakeProvider{token: "t", profile: github.Profile{Login: "a", Email: "a@x.com"}}, store)
	fresh, _, err := now.Login(context.Background(), "c")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := issuer.Refresh(fresh.AccessToken); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected for access token, got %v", err)
	}
}
