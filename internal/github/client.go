package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"codelink-platform/internal/config"
)

// Client talks to the GitHub OAuth and REST APIs. It is the only
// component that reaches the identity provider; everything network-bound
// runs under a bounded timeout so callers queued behind a refresh are
// never blocked indefinitely.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string

	// Overridable for tests.
	oauthBaseURL string
	apiBaseURL   string
}

var (
	// ErrCodeRejected means GitHub refused the authorization code
	// (expired, already used, or malformed).
	ErrCodeRejected = errors.New("github: authorization code rejected")

	// ErrUnavailable means GitHub could not be reached or answered
	// with a server error.
	ErrUnavailable = errors.New("github: provider unavailable")
)

const defaultTimeout = 10 * time.Second

func NewClient(cfg config.GitHubConfig) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		oauthBaseURL: "https://github.com",
		apiBaseURL:   "https://api.github.com",
	}
}

// Profile is the provider-side view of a user. Email may be empty after
// the primary profile fetch; FetchUser fills it from the emails endpoint
// when possible.
type Profile struct {
	Login     string `json:"login"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// AuthorizeURL builds the browser redirect target starting the OAuth flow.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("scope", "read:user user:email")
	q.Set("state", state)
	return c.oauthBaseURL + "/login/oauth/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a provider access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"code":          code,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthBaseURL+"/login/oauth/access_token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// GitHub reports bad codes with 200 + an error field, so the token
	// presence is the only reliable signal.
	if out.AccessToken == "" {
		return "", ErrCodeRejected
	}
	return out.AccessToken, nil
}

// FetchUser loads the provider profile. When the public profile omits an
// email, the verified primary address from the emails endpoint is used.
// An empty Email in the returned profile means no usable address exists.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (Profile, error) {
	var p Profile
	if err := c.getJSON(ctx, "/user", accessToken, &p); err != nil {
		return Profile{}, err
	}

	if p.Email == "" {
		email, err := c.fetchPrimaryEmail(ctx, accessToken)
		if err != nil {
			return Profile{}, err
		}
		p.Email = email
	}
	return p, nil
}

func (c *Client) fetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := c.getJSON(ctx, "/user/emails", accessToken, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func (c *Client) getJSON(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %d", ErrUnavailable, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
