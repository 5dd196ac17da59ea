package session

import "errors"

// The error taxonomy crossing the session boundary. Internal faults are
// converted to one of these before reaching handlers; no raw provider
// payloads leak out.
var (
	// ErrProviderExchange: the provider rejected the authorization code.
	ErrProviderExchange = errors.New("provider code exchange failed")

	// ErrIdentityIncomplete: the provider yielded no usable email.
	// Fatal for the attempt: email is the uniqueness key for account
	// linking and is never defaulted.
	ErrIdentityIncomplete = errors.New("provider identity lacks a verified email")

	// ErrRefreshRejected: the refresh token is invalid or expired.
	// Terminal; the client must perform a full login.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrUpstreamUnavailable: the provider could not be reached. The
	// user may retry; the core never retries automatically.
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
)
