package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/instillct/authbridge/internal/authsrv"
	"github.com/instillct/authbridge/internal/config"
	"github.com/instillct/authbridge/internal/cookie"
	"github.com/instillct/authbridge/internal/idp"
	jsonwriter "github.com/instillct/authbridge/internal/json"
	"github.com/instillct/authbridge/internal/log"
	"github.com/instillct/authbridge/internal/metrics"
	"github.com/instillct/authbridge/internal/state"
)

// Remember durations sent with accepted requests, in seconds. Login
// decisions are remembered for an hour, consent slightly less so expired
// consent resolves before the login does.
const (
	loginRememberFor   = 3600
	consentRememberFor = 3000
)

// loginStateParam is the query parameter carrying the nonce on the
// identity provider's return URL.
const loginStateParam = "login_state"

// LoginConsentClient resolves pending login and consent requests at the
// authorization server.
type LoginConsentClient interface {
	GetLoginRequest(ctx context.Context, challenge string) (*authsrv.LoginRequest, error)
	AcceptLoginRequest(ctx context.Context, challenge string, accept authsrv.AcceptLogin) (*authsrv.CompletedRequest, error)
	GetConsentRequest(ctx context.Context, challenge string) (*authsrv.ConsentRequest, error)
	AcceptConsentRequest(ctx context.Context, challenge string, decision authsrv.ConsentDecision) (*authsrv.CompletedRequest, error)
	RejectConsentRequest(ctx context.Context, challenge string, reject authsrv.RejectConsent) (*authsrv.CompletedRequest, error)
}

// SessionVerifier resolves identity provider sessions and entry points.
type SessionVerifier interface {
	WhoAmI(ctx context.Context, sessionCookie string) (*idp.Session, error)
	LoginURL(returnTo string) string
	LogoutURL() string
}

// CodeExchanger trades an authorization code for a token set.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string, scopes []string) (*authsrv.TokenSet, error)
}

// Bridge orchestrates the login-consent flow between the authorization
// server and the identity provider. It holds no per-request state: all
// correlation travels through the browser as cookies and query parameters.
type Bridge struct {
	cfg       *config.Config
	authsrv   LoginConsentClient
	idp       SessionVerifier
	exchanger CodeExchanger
	cookies   *cookie.Manager
	metrics   *metrics.Metrics
}

// NewBridge creates the bridge with explicitly injected collaborators.
func NewBridge(
	cfg *config.Config,
	loginConsent LoginConsentClient,
	sessions SessionVerifier,
	exchanger CodeExchanger,
	cookies *cookie.Manager,
	m *metrics.Metrics,
) *Bridge {
	return &Bridge{
		cfg:       cfg,
		authsrv:   loginConsent,
		idp:       sessions,
		exchanger: exchanger,
		cookies:   cookies,
		metrics:   m,
	}
}

// OAuthHandler drives the login leg of the flow. Each request resolves to
// exactly one redirect; failures always leave a restart path open.
func (b *Bridge) OAuthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	challenge := q.Get("login_challenge")
	if challenge == "" {
		// No pending login request yet: send the browser to the
		// authorize endpoint so the server issues us a challenge.
		authURL, err := authsrv.AuthorizeURL(b.cfg)
		if err != nil {
			log.LogError("Failed to build authorize URL: %v", err)
			b.errorRedirect(w, r, "internal_error", "Could not start the login flow")
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}

	loginRequest, err := b.authsrv.GetLoginRequest(ctx, challenge)
	if err != nil {
		log.LogErrorWithFields("bridge", "Failed to fetch login request", map[string]any{
			"request_id": GetRequestID(ctx),
			"error":      err.Error(),
		})
		b.redirectForRequestError(w, r, err)
		return
	}

	if loginRequest.Skip {
		// The server already authenticated this subject in this
		// browser; accept without consulting the identity provider.
		completed, err := b.authsrv.AcceptLoginRequest(ctx, challenge, authsrv.AcceptLogin{
			Subject:     loginRequest.Subject,
			Remember:    true,
			RememberFor: loginRememberFor,
		})
		if err != nil {
			log.LogErrorWithFields("bridge", "Failed to accept skipped login request", map[string]any{
				"request_id": GetRequestID(ctx),
				"error":      err.Error(),
			})
			b.redirectForRequestError(w, r, err)
			return
		}

		b.metrics.SkipAccepts.Inc()
		log.LogInfoWithFields("bridge", "Login request accepted via skip", map[string]any{
			"request_id": GetRequestID(ctx),
			"subject":    loginRequest.Subject,
		})
		http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
		return
	}

	stateValue := q.Get(loginStateParam)
	if stateValue == "" {
		b.restartLogin(w, r)
		return
	}

	cookieValue, _ := cookie.Get(r, cookie.LoginStateCookie)
	if !state.Verify(stateValue, cookieValue) {
		// Cookie loss, an expired nonce, or a forged link. Never
		// proceed to session trust decisions from here.
		b.metrics.StateMismatches.Inc()
		log.LogWarnWithFields("bridge", "Login state mismatch, restarting", map[string]any{
			"request_id": GetRequestID(ctx),
		})
		b.restartLogin(w, r)
		return
	}

	sessionCookie, err := cookie.Get(r, idp.SessionCookie)
	if err != nil {
		b.restartLogin(w, r)
		return
	}

	session, err := b.idp.WhoAmI(ctx, sessionCookie)
	if errors.Is(err, idp.ErrNoSession) {
		b.restartLogin(w, r)
		return
	}
	if err != nil {
		log.LogErrorWithFields("bridge", "Session verification failed", map[string]any{
			"request_id": GetRequestID(ctx),
			"error":      err.Error(),
		})
		b.errorRedirect(w, r, "identity_provider_unreachable", "Could not verify your session")
		return
	}

	completed, err := b.authsrv.AcceptLoginRequest(ctx, challenge, authsrv.AcceptLogin{
		Subject:     session.Identity.ID,
		Remember:    true,
		RememberFor: loginRememberFor,
		Context:     session,
	})
	if err != nil {
		log.LogErrorWithFields("bridge", "Failed to accept login request", map[string]any{
			"request_id": GetRequestID(ctx),
			"subject":    session.Identity.ID,
			"error":      err.Error(),
		})
		b.redirectForRequestError(w, r, err)
		return
	}

	// The nonce is single-use; drop the cookie now that it verified.
	b.cookies.ClearLoginState(w)

	b.metrics.LoginsAccepted.Inc()
	log.LogInfoWithFields("bridge", "Login request accepted", map[string]any{
		"request_id": GetRequestID(ctx),
		"subject":    session.Identity.ID,
	})
	http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
}

// restartLogin mints a fresh nonce, binds it to the browser via cookie,
// and sends the user to the identity provider's login entry point with the
// nonce embedded in the return URL.
func (b *Bridge) restartLogin(w http.ResponseWriter, r *http.Request) {
	nonce, err := state.Issue()
	if err != nil {
		log.LogError("Failed to issue login state: %v", err)
		b.errorRedirect(w, r, "internal_error", "Could not start the login flow")
		return
	}

	base, err := url.Parse(b.cfg.PublicBaseURL)
	if err != nil {
		log.LogError("Invalid public base URL: %v", err)
		b.errorRedirect(w, r, "internal_error", "Could not start the login flow")
		return
	}

	returnTo := *r.URL
	q := returnTo.Query()
	q.Set(loginStateParam, nonce)
	returnTo.RawQuery = q.Encode()

	b.cookies.SetLoginState(w, r, nonce)
	http.Redirect(w, r, b.idp.LoginURL(base.ResolveReference(&returnTo).String()), http.StatusFound)
}

// ConsentHandler drives the consent leg. Trusted first-party clients and
// server-side skip are auto-accepted; everyone else sees the prompt.
func (b *Bridge) ConsentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	challenge := q.Get("consent_challenge")
	if challenge == "" {
		challenge = q.Get("challenge")
	}
	if challenge == "" {
		http.Redirect(w, r, "/oauth", http.StatusFound)
		return
	}

	consentRequest, err := b.authsrv.GetConsentRequest(ctx, challenge)
	if err != nil {
		log.LogErrorWithFields("bridge", "Failed to fetch consent request", map[string]any{
			"request_id": GetRequestID(ctx),
			"error":      err.Error(),
		})
		b.redirectForRequestError(w, r, err)
		return
	}

	if consentRequest.Skip || b.trustedClient(consentRequest.Client.ClientID) {
		b.acceptConsent(w, r, consentRequest, consentRequest.RequestedScope, true)
		return
	}

	b.metrics.ConsentPrompts.Inc()

	clientName := consentRequest.Client.ClientName
	if clientName == "" {
		clientName = consentRequest.Client.ClientID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := consentPageTemplate.Execute(w, ConsentPageData{
		Challenge:  consentRequest.Challenge,
		ClientName: clientName,
		Subject:    consentRequest.Subject,
		Scopes:     consentRequest.RequestedScope,
	}); err != nil {
		log.LogError("Failed to render consent page: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to render page")
	}
}

// ConsentSubmitHandler accepts the decision submitted from the consent
// prompt.
func (b *Bridge) ConsentSubmitHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid form submission")
		return
	}

	challenge := r.PostForm.Get("challenge")
	if challenge == "" {
		jsonwriter.WriteBadRequest(w, "Missing consent challenge")
		return
	}

	consentRequest, err := b.authsrv.GetConsentRequest(ctx, challenge)
	if err != nil {
		log.LogErrorWithFields("bridge", "Failed to fetch consent request on submit", map[string]any{
			"request_id": GetRequestID(ctx),
			"error":      err.Error(),
		})
		b.redirectForRequestError(w, r, err)
		return
	}

	if r.PostForm.Get("action") == "deny" {
		completed, err := b.authsrv.RejectConsentRequest(ctx, challenge, authsrv.RejectConsent{
			Error:            "access_denied",
			ErrorDescription: "The resource owner denied the request",
		})
		if err != nil {
			b.redirectForRequestError(w, r, err)
			return
		}
		http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
		return
	}

	// Grant only scopes that were both requested and checked.
	var granted []string
	for _, scope := range r.PostForm["grant_scope"] {
		if slices.Contains(consentRequest.RequestedScope, scope) {
			granted = append(granted, scope)
		}
	}

	b.acceptConsent(w, r, consentRequest, granted, false)
}

// acceptConsent resolves a consent request with the given scopes, echoing
// the requested audiences and embedding the session email into the issued
// id_token claims.
func (b *Bridge) acceptConsent(w http.ResponseWriter, r *http.Request, consentRequest *authsrv.ConsentRequest, grantScope []string, auto bool) {
	ctx := r.Context()

	completed, err := b.authsrv.AcceptConsentRequest(ctx, consentRequest.Challenge, authsrv.ConsentDecision{
		GrantScope: grantScope,
		// The authorization server checks requested audiences against
		// the client's policy, so they are echoed as granted.
		GrantAudience: consentRequest.RequestedAudience,
		Remember:      true,
		RememberFor:   consentRememberFor,
		Session:       consentSession(consentRequest.Context),
	})
	if err != nil {
		log.LogErrorWithFields("bridge", "Failed to accept consent request", map[string]any{
			"request_id": GetRequestID(ctx),
			"client_id":  consentRequest.Client.ClientID,
			"error":      err.Error(),
		})
		b.redirectForRequestError(w, r, err)
		return
	}

	if auto {
		b.metrics.ConsentAutoAccepts.Inc()
	}
	log.LogInfoWithFields("bridge", "Consent request accepted", map[string]any{
		"request_id": GetRequestID(ctx),
		"client_id":  consentRequest.Client.ClientID,
		"auto":       auto,
		"scopes":     len(grantScope),
	})
	http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
}

// CallbackHandler finalizes the flow: it exchanges the authorization code
// for a token set and persists it as a browser cookie.
func (b *Bridge) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		// The server redirects here with an error when a pending
		// request lapsed, most often an unaccepted consent that
		// outlived its lifespan. Restart from the top.
		log.LogWarnWithFields("bridge", "Callback carried an error, restarting", map[string]any{
			"request_id":  GetRequestID(ctx),
			"error":       errParam,
			"description": q.Get("error_description"),
		})
		http.Redirect(w, r, "/oauth", http.StatusFound)
		return
	}

	scope := q.Get("scope")
	code := q.Get("code")
	if scope == "" || code == "" {
		http.Redirect(w, r, "/oauth", http.StatusFound)
		return
	}

	tokenSet, err := b.exchanger.Exchange(ctx, code, strings.Fields(scope))
	if err != nil {
		b.metrics.TokenExchangeErrors.Inc()
		log.LogErrorWithFields("bridge", "Code exchange failed", map[string]any{
			"request_id": GetRequestID(ctx),
			"error":      err.Error(),
		})
		b.errorRedirect(w, r, "exchange_failed", "Could not complete the sign-in")
		return
	}

	serialized, err := tokenSet.Serialize()
	if err != nil {
		log.LogError("Failed to serialize token set: %v", err)
		b.errorRedirect(w, r, "internal_error", "Could not complete the sign-in")
		return
	}

	// Drop any stale token cookie before setting the fresh one.
	b.cookies.ClearTokenSet(w)
	b.cookies.SetTokenSet(w, r, serialized)

	b.metrics.TokenExchanges.Inc()
	log.LogInfoWithFields("bridge", "Token set issued", map[string]any{
		"request_id": GetRequestID(ctx),
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successPageTemplate.Execute(w, nil); err != nil {
		log.LogError("Failed to render success page: %v", err)
	}
}

// LogoutHandler clears the token cookie and hands the browser to the
// identity provider's logout flow.
func (b *Bridge) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	b.cookies.ClearTokenSet(w)
	http.Redirect(w, r, b.idp.LogoutURL(), http.StatusFound)
}

// ErrorPageHandler renders the generic error surface. Query parameters are
// display text only; tokens and session payloads never reach this page.
func (b *Bridge) ErrorPageHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := errorPageTemplate.Execute(w, ErrorPageData{
		Error:       q.Get("error"),
		Description: q.Get("error_description"),
		RequestID:   GetRequestID(r.Context()),
	}); err != nil {
		log.LogError("Failed to render error page: %v", err)
	}
}

// redirectForRequestError converts a classified authorization server
// failure into the next redirect. Gone follows the server's own recovery
// link; Conflict restarts the flow; everything else lands on the error
// page.
func (b *Bridge) redirectForRequestError(w http.ResponseWriter, r *http.Request, err error) {
	reqErr, ok := authsrv.AsRequestError(err)
	if !ok {
		b.errorRedirect(w, r, "internal_error", "Something went wrong")
		return
	}

	switch reqErr.Kind {
	case authsrv.KindGone:
		if reqErr.RedirectTo != "" {
			http.Redirect(w, r, reqErr.RedirectTo, http.StatusFound)
			return
		}
		http.Redirect(w, r, "/oauth", http.StatusFound)
	case authsrv.KindConflict:
		// A duplicated accept; the next navigation re-resolves to a
		// consistent state.
		log.LogWarnWithFields("bridge", "Duplicate accept, restarting flow", map[string]any{
			"request_id": GetRequestID(r.Context()),
		})
		http.Redirect(w, r, "/oauth", http.StatusFound)
	case authsrv.KindBadRequest:
		b.errorRedirect(w, r, "invalid_request", "The request could not be processed")
	default:
		b.errorRedirect(w, r, "server_unreachable", "The authorization server could not be reached")
	}
}

// errorRedirect routes the browser to the error page with display-safe
// diagnostics.
func (b *Bridge) errorRedirect(w http.ResponseWriter, r *http.Request, code, description string) {
	v := url.Values{}
	v.Set("error", code)
	v.Set("error_description", description)
	http.Redirect(w, r, "/error?"+v.Encode(), http.StatusFound)
}

// trustedClient reports whether consent for this client is accepted
// without prompting.
func (b *Bridge) trustedClient(clientID string) bool {
	return clientID != "" && slices.Contains(b.cfg.TrustedClientIDs, clientID)
}

// consentSession extracts identifying claims from the login context (the
// identity provider session attached at login accept) for embedding into
// the issued id_token.
func consentSession(raw json.RawMessage) *authsrv.ConsentSession {
	if len(raw) == 0 {
		return nil
	}

	var ctx struct {
		Identity struct {
			Traits struct {
				Email string `json:"email"`
			} `json:"traits"`
		} `json:"identity"`
	}
	if err := json.Unmarshal(raw, &ctx); err != nil || ctx.Identity.Traits.Email == "" {
		return nil
	}

	return &authsrv.ConsentSession{
		IDToken: map[string]any{"email": ctx.Identity.Traits.Email},
	}
}
