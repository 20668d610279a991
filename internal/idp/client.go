// Package idp is the client for the identity provider: it verifies browser
// sessions and builds the provider's browser-facing entry points. The
// provider owns identities, credentials, and the session cookie; the bridge
// only asks "who is this".
package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/instillct/authbridge/internal/ioutil"
	"github.com/instillct/authbridge/internal/urlutil"
)

// SessionCookie is the identity provider's session cookie name.
const SessionCookie = "ory_kratos_session"

// ErrNoSession indicates the session cookie was absent, expired, or
// rejected by the identity provider. This is expected and frequent; it
// drives a redirect back to the login entry point, never an error page.
var ErrNoSession = errors.New("no active identity provider session")

// Session is the normalized record of an authenticated session.
type Session struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// Identity carries the subject identifier and trait attributes.
type Identity struct {
	ID     string `json:"id"`
	Traits Traits `json:"traits"`
}

// Traits are the identity attributes the bridge forwards downstream.
type Traits struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Client calls the identity provider's public API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an identity provider client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WhoAmI resolves a session cookie value into a session record. It returns
// ErrNoSession when the provider does not recognize the session, and a
// plain error for transport or server failures.
func (c *Client) WhoAmI(ctx context.Context, sessionCookie string) (*Session, error) {
	endpoint := urlutil.MustJoinPath(c.baseURL, "sessions", "whoami")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building whoami request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionCookie})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whoami request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrNoSession
	default:
		body := ioutil.ReadLimited(resp.Body, 1024)
		return nil, fmt.Errorf("whoami returned status %d: %s", resp.StatusCode, body)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding whoami response: %w", err)
	}

	if !session.Active {
		return nil, ErrNoSession
	}

	return &session, nil
}

// LoginURL builds the identity provider's browser login entry point with
// return_to pointing back at the bridge.
func (c *Client) LoginURL(returnTo string) string {
	u, _ := url.Parse(urlutil.MustJoinPath(c.baseURL, "self-service", "login", "browser"))
	q := u.Query()
	q.Set("refresh", "false")
	q.Set("return_to", returnTo)
	u.RawQuery = q.Encode()
	return u.String()
}

// LogoutURL builds the identity provider's browser logout entry point.
func (c *Client) LogoutURL() string {
	return urlutil.MustJoinPath(c.baseURL, "self-service", "logout", "browser")
}
