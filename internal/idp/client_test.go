package idp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhoAmI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/whoami", r.URL.Path)
		c, err := r.Cookie(SessionCookie)
		require.NoError(t, err)
		assert.Equal(t, "session-cookie-value", c.Value)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sess-1",
			"active": true,
			"identity": {
				"id": "user-1",
				"traits": {"email": "jo@example.com", "username": "jo"}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	session, err := client.WhoAmI(context.Background(), "session-cookie-value")
	require.NoError(t, err)

	assert.Equal(t, "user-1", session.Identity.ID)
	assert.Equal(t, "jo@example.com", session.Identity.Traits.Email)
	assert.True(t, session.Active)
}

func TestWhoAmIUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.WhoAmI(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestWhoAmIInactiveSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "sess-1", "active": false}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.WhoAmI(context.Background(), "inactive")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestWhoAmIServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.WhoAmI(context.Background(), "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWhoAmIUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.WhoAmI(context.Background(), "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestLoginURL(t *testing.T) {
	client := NewClient("https://id.example.com")
	raw := client.LoginURL("https://console.example.com/oauth?login_state=abc")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/self-service/login/browser", u.Path)
	assert.Equal(t, "false", u.Query().Get("refresh"))
	assert.Equal(t, "https://console.example.com/oauth?login_state=abc", u.Query().Get("return_to"))
}

func TestLogoutURL(t *testing.T) {
	client := NewClient("https://id.example.com")
	assert.Equal(t, "https://id.example.com/self-service/logout/browser", client.LogoutURL())
}
