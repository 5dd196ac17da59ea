// Package apiclient is the Go client for the codelink session API. It
// owns the token pair for one session and transparently recovers from
// expired access tokens: a 401 on an authenticated call triggers at most
// one concurrent refresh exchange, and the failed call is replayed once
// with the fresh credentials.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when the refresh exchange itself is
// rejected; the caller must run a full login.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-2xx response that is not handled by token recovery.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

const refreshTimeout = 10 * time.Second

type Options struct {
	HTTPClient *http.Client

	// OnSessionExpired is invoked exactly once per failed refresh
	// exchange (not once per waiting caller). Typical use: route the
	// user back to the login entry point.
	OnSessionExpired func()
}

// Client wraps outbound calls to the session API. Safe for concurrent
// use: the token pair and the in-flight refresh are the only shared
// state, and both are owned by the client instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	onExpired  func()

	mu      sync.Mutex
	access  string
	refresh string
	// version increments on every token install; it lets late 401s
	// detect that a refresh already happened and skip a second one.
	version uint64

	refreshGroup singleflight.Group
}

func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: hc,
		onExpired:  opts.OnSessionExpired,
	}
}

// SetTokens installs a token pair, e.g. after an out-of-band login.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = access
	c.refresh = refresh
	c.version++
}

func (c *Client) snapshot() (access, refresh string, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.refresh, c.version
}

// Request describes one outbound call.
type Request struct {
	Method string
	Path   string
	Body   any

	// RequiresAuth marks the call as needing a session. Only these
	// calls participate in 401 recovery; others propagate unchanged.
	RequiresAuth bool
}

// Do executes the request, decoding a 2xx JSON body into out (when out
// is non-nil). On a 401 for an authenticated call it refreshes the
// session once and replays the call once; a second 401 is terminal.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	access, _, version := c.snapshot()

	resp, err := c.send(ctx, req, access)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && req.RequiresAuth {
		drain(resp)
		if err := c.refreshSession(version); err != nil {
			return err
		}
		access, _, _ = c.snapshot()
		resp, err = c.send(ctx, req, access)
		if err != nil {
			return err
		}
	}

	return decode(resp, out)
}

// ExchangeCode performs the initial login: trades an authorization code
// for a token pair and installs it.
func (c *Client) ExchangeCode(ctx context.Context, code string) error {
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/session/exchange",
		Body:   map[string]string{"code": code},
	}, &out)
	if err != nil {
		return err
	}
	c.SetTokens(out.AccessToken, out.RefreshToken)
	return nil
}

// Logout clears the server-side cookie transport and drops local tokens.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/session/logout"}, nil)
	if err != nil {
		return err
	}
	c.SetTokens("", "")
	return nil
}

// refreshSession runs the single-flight refresh exchange. Callers that
// arrive while a refresh is underway wait on the same shared outcome;
// callers whose 401 predates an already-installed pair skip entirely.
func (c *Client) refreshSession(seenVersion uint64) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		_, refresh, version := c.snapshot()
		if version != seenVersion {
			// Tokens changed since the 401 was observed: a refresh
			// already happened, just replay with the new pair.
			return nil, nil
		}
		if refresh == "" {
			c.signalExpired()
			return nil, ErrSessionExpired
		}
		return nil, c.doRefresh(refresh)
	})
	return err
}

func (c *Client) doRefresh(refreshToken string) error {
	// The flight is shared by many callers, so it must not inherit any
	// single caller's cancellation, but it must stay bounded so queued
	// callers never wait forever.
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	resp, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/session/refresh",
		Body:   map[string]string{"refresh_token": refreshToken},
	}, "")
	if err != nil {
		c.signalExpired()
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(resp, &out); err != nil {
		c.signalExpired()
		return ErrSessionExpired
	}

	c.SetTokens(out.AccessToken, out.RefreshToken)
	return nil
}

func (c *Client) signalExpired() {
	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *Client) send(ctx context.Context, req Request, access string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}

	return c.httpClient.Do(httpReq)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
