package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("AUTHBRIDGE_PUBLIC_BASE_URL", "https://console.example.com")
	t.Setenv("AUTHBRIDGE_AUTH_SERVER_PUBLIC_URL", "https://auth.example.com")
	t.Setenv("AUTHBRIDGE_AUTH_SERVER_ADMIN_URL", "https://auth-admin.example.com")
	t.Setenv("AUTHBRIDGE_IDENTITY_PROVIDER_URL", "https://id.example.com")
	t.Setenv("AUTHBRIDGE_OAUTH_CLIENT_ID", "console-client")
	t.Setenv("AUTHBRIDGE_OAUTH_CLIENT_SECRET", "super-secret")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTHBRIDGE_TRUSTED_CLIENT_IDS", "cloud-client,cli-client")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://console.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "console-client", cfg.OAuthClientID)
	assert.Equal(t, "super-secret", cfg.OAuthClientSecret.Value())
	assert.Equal(t, "openid offline", cfg.OAuthScope)
	assert.Equal(t, []string{"cloud-client", "cli-client"}, cfg.TrustedClientIDs)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.True(t, cfg.IsDev())
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTHBRIDGE_OAUTH_CLIENT_ID", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsRelativeURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTHBRIDGE_AUTH_SERVER_ADMIN_URL", "/not-absolute")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTHBRIDGE_AUTH_SERVER_ADMIN_URL")
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTHBRIDGE_ENV", "staging")

	_, err := Load()
	require.Error(t, err)
}

func TestIsDev(t *testing.T) {
	for env, dev := range map[string]bool{
		"development": true,
		"dev":         true,
		"production":  false,
	} {
		cfg := Config{Env: env}
		assert.Equal(t, dev, cfg.IsDev(), "env %q", env)
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "***", s.String())
	assert.Equal(t, "***", fmt.Sprintf("%v", s))
	assert.Equal(t, "hunter2", s.Value())

	data, err := json.Marshal(struct {
		ClientSecret Secret `json:"client_secret"`
	}{ClientSecret: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"client_secret":"***"}`, string(data))

	empty, err := json.Marshal(Secret(""))
	require.NoError(t, err)
	assert.Equal(t, `""`, string(empty))
}
