package cookie

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"github.com/instillct/authbridge/internal/log"
)

// Cookie names used by the bridge
const (
	LoginStateCookie = "bridge_login_state"
	TokenSetCookie   = "bridge_token_set"
)

// Lifetimes for the cookies the bridge sets
const (
	LoginStateTTL = 5 * time.Minute
	TokenSetTTL   = 8 * time.Hour
)

// Manager sets and clears the bridge's cookies with security settings
// derived from the deployment environment. The cookie domain is always
// derived from the request's Origin header, never hardcoded.
type Manager struct {
	dev bool
}

// NewManager creates a cookie manager. In development mode Secure and
// HttpOnly are relaxed so the flow works over plain http.
func NewManager(dev bool) *Manager {
	return &Manager{dev: dev}
}

// SetLoginState sets the short-lived login state nonce cookie.
func (m *Manager) SetLoginState(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginStateCookie,
		Value:    value,
		Domain:   DomainFromOrigin(r),
		Path:     "/",
		HttpOnly: !m.dev,
		Secure:   !m.dev,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(LoginStateTTL.Seconds()),
	})

	log.LogDebugWithFields("cookie", "Login state cookie set", map[string]any{
		"maxAge": LoginStateTTL.String(),
		"secure": !m.dev,
	})
}

// ClearLoginState removes the login state cookie once the nonce has been
// consumed.
func (m *Manager) ClearLoginState(w http.ResponseWriter) {
	remove(w, LoginStateCookie)
}

// SetTokenSet stores the serialized token set. The value is opaque to the
// bridge; it is written once after a successful code exchange and never
// parsed again. Cookie values cannot carry quotes, so the JSON is
// base64-encoded; net/http would otherwise drop the offending bytes and
// corrupt the stored value.
func (m *Manager) SetTokenSet(w http.ResponseWriter, r *http.Request, serialized string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenSetCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(serialized)),
		Domain:   DomainFromOrigin(r),
		Path:     "/",
		HttpOnly: !m.dev,
		Secure:   !m.dev,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(TokenSetTTL.Seconds()),
	})

	log.LogDebugWithFields("cookie", "Token set cookie set", map[string]any{
		"maxAge": TokenSetTTL.String(),
		"secure": !m.dev,
	})
}

// ClearTokenSet removes the token set cookie.
func (m *Manager) ClearTokenSet(w http.ResponseWriter) {
	remove(w, TokenSetCookie)
}

// remove removes a cookie by setting MaxAge to -1 with a matching path
func remove(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// DomainFromOrigin derives the cookie domain from the request's Origin
// header. An absent or malformed Origin yields the empty string, which
// scopes the cookie to the request host.
func DomainFromOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
