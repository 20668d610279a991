// Package authsrv is the typed client for the OAuth2 authorization server:
// its admin API for pending login and consent requests, its public
// authorize endpoint, and its token endpoint. Challenges are single-use
// and owned by the server; the bridge only fetches and resolves them.
package authsrv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/instillct/authbridge/internal/config"
	"github.com/instillct/authbridge/internal/ioutil"
	"github.com/instillct/authbridge/internal/urlutil"
)

// LoginRequest is a pending login request fetched by challenge. Skip means
// the server already authenticated this subject in this browser and no
// fresh identity check is needed.
type LoginRequest struct {
	Challenge      string     `json:"challenge"`
	Skip           bool       `json:"skip"`
	Subject        string     `json:"subject"`
	RequestedScope []string   `json:"requested_scope"`
	Client         ClientInfo `json:"client"`
}

// ConsentRequest is a pending consent request fetched by challenge.
// Context carries whatever the login accept attached, typically the
// identity provider session.
type ConsentRequest struct {
	Challenge         string          `json:"challenge"`
	Skip              bool            `json:"skip"`
	Subject           string          `json:"subject"`
	Client            ClientInfo      `json:"client"`
	RequestedScope    []string        `json:"requested_scope"`
	RequestedAudience []string        `json:"requested_access_token_audience"`
	Context           json.RawMessage `json:"context,omitempty"`
}

// ClientInfo identifies the OAuth client behind a request.
type ClientInfo struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
}

// AcceptLogin is the payload resolving a login request.
type AcceptLogin struct {
	Subject     string `json:"subject"`
	Remember    bool   `json:"remember"`
	RememberFor int    `json:"remember_for"`
	Context     any    `json:"context,omitempty"`
}

// ConsentDecision is the payload resolving a consent request: granted
// scopes and audiences plus optional claims for the issued tokens.
type ConsentDecision struct {
	GrantScope    []string        `json:"grant_scope"`
	GrantAudience []string        `json:"grant_access_token_audience"`
	Remember      bool            `json:"remember"`
	RememberFor   int             `json:"remember_for"`
	Session       *ConsentSession `json:"session,omitempty"`
}

// ConsentSession holds claims embedded into the issued tokens.
type ConsentSession struct {
	IDToken     map[string]any `json:"id_token,omitempty"`
	AccessToken map[string]any `json:"access_token,omitempty"`
}

// RejectConsent is the payload denying a consent request.
type RejectConsent struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// CompletedRequest is the server's answer to an accept or reject call: the
// URL the browser must be sent to next.
type CompletedRequest struct {
	RedirectTo string `json:"redirect_to"`
}

// Client calls the authorization server's admin API.
type Client struct {
	adminURL string
	apiKey   config.Secret
	http     *http.Client
}

// NewClient creates an admin API client. apiKey may be empty when the
// admin endpoint is network-restricted instead.
func NewClient(adminURL string, apiKey config.Secret) *Client {
	return &Client{
		adminURL: adminURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// GetLoginRequest fetches a pending login request by challenge.
func (c *Client) GetLoginRequest(ctx context.Context, challenge string) (*LoginRequest, error) {
	var lr LoginRequest
	if err := c.do(ctx, http.MethodGet, "login", "", "login_challenge", challenge, nil, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// AcceptLoginRequest resolves a login request. Challenges are single-use;
// a duplicate accept fails with KindConflict.
func (c *Client) AcceptLoginRequest(ctx context.Context, challenge string, accept AcceptLogin) (*CompletedRequest, error) {
	var completed CompletedRequest
	if err := c.do(ctx, http.MethodPut, "login", "accept", "login_challenge", challenge, accept, &completed); err != nil {
		return nil, err
	}
	return &completed, nil
}

// GetConsentRequest fetches a pending consent request by challenge.
func (c *Client) GetConsentRequest(ctx context.Context, challenge string) (*ConsentRequest, error) {
	var cr ConsentRequest
	if err := c.do(ctx, http.MethodGet, "consent", "", "consent_challenge", challenge, nil, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// AcceptConsentRequest resolves a consent request with the given decision.
func (c *Client) AcceptConsentRequest(ctx context.Context, challenge string, decision ConsentDecision) (*CompletedRequest, error) {
	var completed CompletedRequest
	if err := c.do(ctx, http.MethodPut, "consent", "accept", "consent_challenge", challenge, decision, &completed); err != nil {
		return nil, err
	}
	return &completed, nil
}

// RejectConsentRequest denies a consent request on the user's behalf.
func (c *Client) RejectConsentRequest(ctx context.Context, challenge string, reject RejectConsent) (*CompletedRequest, error) {
	var completed CompletedRequest
	if err := c.do(ctx, http.MethodPut, "consent", "reject", "consent_challenge", challenge, reject, &completed); err != nil {
		return nil, err
	}
	return &completed, nil
}

func (c *Client) do(ctx context.Context, method, flow, action, challengeParam, challenge string, payload, out any) error {
	endpoint := urlutil.MustJoinPath(c.adminURL, "admin", "oauth2", "auth", "requests", flow)
	if action != "" {
		endpoint = urlutil.MustJoinPath(endpoint, action)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing admin endpoint: %w", err)
	}
	q := u.Query()
	q.Set(challengeParam, challenge)
	u.RawQuery = q.Encode()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request payload: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("building admin request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey.Value())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Kind: KindUnreachable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classify(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{
			Kind:   KindUnreachable,
			Status: resp.StatusCode,
			Detail: fmt.Sprintf("decoding response: %v", err),
		}
	}
	return nil
}

// classify maps a non-200 admin response onto the error taxonomy. Gone
// responses carry the server's own recovery redirect in the body.
func classify(resp *http.Response) *RequestError {
	reqErr := &RequestError{Status: resp.StatusCode}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		reqErr.Kind = KindBadRequest
	case http.StatusConflict:
		reqErr.Kind = KindConflict
	case http.StatusGone:
		reqErr.Kind = KindGone
	default:
		reqErr.Kind = KindUnreachable
	}

	body := ioutil.ReadLimited(resp.Body, 4096)
	if reqErr.Kind == KindGone {
		var recovery CompletedRequest
		if err := json.Unmarshal([]byte(body), &recovery); err == nil {
			reqErr.RedirectTo = recovery.RedirectTo
		}
	}

	var apiErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal([]byte(body), &apiErr); err == nil && apiErr.Error != "" {
		reqErr.Detail = apiErr.Error
		if apiErr.ErrorDescription != "" {
			reqErr.Detail += ": " + apiErr.ErrorDescription
		}
	}

	return reqErr
}
