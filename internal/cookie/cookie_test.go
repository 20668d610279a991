package cookie

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestSetLoginState(t *testing.T) {
	m := NewManager(false)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/oauth", nil)
	r.Header.Set("Origin", "https://console.example.com")

	m.SetLoginState(rec, r, "nonce-value")

	c := findCookie(t, rec, LoginStateCookie)
	assert.Equal(t, "nonce-value", c.Value)
	assert.Equal(t, "console.example.com", c.Domain)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, int(LoginStateTTL.Seconds()), c.MaxAge)
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestSetLoginStateDevRelaxesSecurity(t *testing.T) {
	m := NewManager(true)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/oauth", nil)

	m.SetLoginState(rec, r, "nonce-value")

	c := findCookie(t, rec, LoginStateCookie)
	assert.False(t, c.Secure)
	assert.False(t, c.HttpOnly)
	assert.Empty(t, c.Domain)
}

func TestSetTokenSet(t *testing.T) {
	m := NewManager(false)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	r.Header.Set("Origin", "https://console.example.com")

	m.SetTokenSet(rec, r, `{"access_token":"at"}`)

	c := findCookie(t, rec, TokenSetCookie)
	decoded, err := base64.RawURLEncoding.DecodeString(c.Value)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"at"}`, string(decoded))
	assert.Equal(t, int(TokenSetTTL.Seconds()), c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
}

func TestSetTokenSetValueSurvivesCookieWrite(t *testing.T) {
	// Raw JSON is not a legal cookie value: net/http drops the quote
	// bytes on write. The stored value must decode back to the exact
	// serialized token set.
	serialized := `{"access_token":"at-123","token_type":"bearer","refresh_token":"rt-456"}`

	m := NewManager(false)
	rec := httptest.NewRecorder()
	m.SetTokenSet(rec, httptest.NewRequest(http.MethodGet, "/callback", nil), serialized)

	c := findCookie(t, rec, TokenSetCookie)
	decoded, err := base64.RawURLEncoding.DecodeString(c.Value)
	require.NoError(t, err)
	assert.Equal(t, serialized, string(decoded))

	var tokenSet map[string]string
	require.NoError(t, json.Unmarshal(decoded, &tokenSet))
	assert.Equal(t, "at-123", tokenSet["access_token"])
	assert.Equal(t, "rt-456", tokenSet["refresh_token"])
}

func TestClearRemovesWithNegativeMaxAge(t *testing.T) {
	m := NewManager(false)
	rec := httptest.NewRecorder()

	m.ClearTokenSet(rec)

	c := findCookie(t, rec, TokenSetCookie)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.Equal(t, "/", c.Path)
}

func TestGet(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/oauth", nil)
	r.AddCookie(&http.Cookie{Name: LoginStateCookie, Value: "abc"})

	value, err := Get(r, LoginStateCookie)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	_, err = Get(r, "missing")
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestDomainFromOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, DomainFromOrigin(r))

	r.Header.Set("Origin", "https://console.example.com:8443")
	assert.Equal(t, "console.example.com", DomainFromOrigin(r))

	r.Header.Set("Origin", "://bad")
	assert.Empty(t, DomainFromOrigin(r))
}
