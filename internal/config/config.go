package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the complete bridge configuration. It is constructed once at
// process start and passed by reference into each component; nothing reads
// the environment after Load returns.
type Config struct {
	// Env controls cookie security defaults: outside development, cookies
	// are Secure and the token-set cookie is HttpOnly.
	Env string `env:"AUTHBRIDGE_ENV" envDefault:"development"`

	// Addr is the listen address of the bridge itself.
	Addr string `env:"AUTHBRIDGE_ADDR" envDefault:":3000"`

	// PublicBaseURL is the browser-facing base URL of the bridge, used to
	// build redirect_uri and nonce return URLs.
	PublicBaseURL string `env:"AUTHBRIDGE_PUBLIC_BASE_URL,required"`

	// AuthServerPublicURL is the OAuth2/OIDC authorization server's public
	// endpoint (authorize and token endpoints live here).
	AuthServerPublicURL string `env:"AUTHBRIDGE_AUTH_SERVER_PUBLIC_URL,required"`

	// AuthServerAdminURL is the authorization server's admin API, where
	// login and consent requests are fetched and accepted.
	AuthServerAdminURL string `env:"AUTHBRIDGE_AUTH_SERVER_ADMIN_URL,required"`

	// AuthServerAPIKey optionally authenticates admin API calls.
	AuthServerAPIKey Secret `env:"AUTHBRIDGE_AUTH_SERVER_API_KEY"`

	// IdentityProviderURL is the identity provider's public base URL
	// (session whoami and the browser login entry point).
	IdentityProviderURL string `env:"AUTHBRIDGE_IDENTITY_PROVIDER_URL,required"`

	OAuthClientID     string `env:"AUTHBRIDGE_OAUTH_CLIENT_ID,required"`
	OAuthClientSecret Secret `env:"AUTHBRIDGE_OAUTH_CLIENT_SECRET,required"`
	OAuthScope        string `env:"AUTHBRIDGE_OAUTH_SCOPE" envDefault:"openid offline"`
	OAuthAudience     string `env:"AUTHBRIDGE_OAUTH_AUDIENCE"`

	// TrustedClientIDs lists OAuth client IDs whose consent is accepted
	// without showing the consent prompt.
	TrustedClientIDs []string `env:"AUTHBRIDGE_TRUSTED_CLIENT_IDS" envSeparator:","`
}

// Load parses the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	for name, value := range map[string]string{
		"AUTHBRIDGE_PUBLIC_BASE_URL":        cfg.PublicBaseURL,
		"AUTHBRIDGE_AUTH_SERVER_PUBLIC_URL": cfg.AuthServerPublicURL,
		"AUTHBRIDGE_AUTH_SERVER_ADMIN_URL":  cfg.AuthServerAdminURL,
		"AUTHBRIDGE_IDENTITY_PROVIDER_URL":  cfg.IdentityProviderURL,
	} {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, value)
		}
	}

	switch strings.ToLower(cfg.Env) {
	case "development", "dev", "production":
	default:
		return fmt.Errorf("AUTHBRIDGE_ENV must be development or production, got %q", cfg.Env)
	}

	return nil
}

// IsDev reports whether the bridge runs in development mode, where cookie
// security requirements are relaxed for local testing.
func (c *Config) IsDev() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}
