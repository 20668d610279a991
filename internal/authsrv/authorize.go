package authsrv

import (
	"fmt"
	"net/url"

	"github.com/instillct/authbridge/internal/config"
	"github.com/instillct/authbridge/internal/crypto"
	"github.com/instillct/authbridge/internal/urlutil"
)

// AuthorizeURL builds the authorization server's authorize endpoint URL
// with a fresh OIDC nonce and state. max_age=0 forces the server to
// re-check authentication rather than reuse an arbitrarily old session.
func AuthorizeURL(cfg *config.Config) (string, error) {
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	stateParam, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	u, err := url.Parse(urlutil.MustJoinPath(cfg.AuthServerPublicURL, "oauth2", "auth"))
	if err != nil {
		return "", fmt.Errorf("parsing authorize endpoint: %w", err)
	}

	q := u.Query()
	q.Set("audience", cfg.OAuthAudience)
	q.Set("client_id", cfg.OAuthClientID)
	q.Set("max_age", "0")
	q.Set("nonce", nonce)
	q.Set("redirect_uri", urlutil.MustJoinPath(cfg.PublicBaseURL, "callback"))
	q.Set("response_type", "code")
	q.Set("scope", cfg.OAuthScope)
	q.Set("state", stateParam)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
