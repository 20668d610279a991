package authsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/instillct/authbridge/internal/config"
	"github.com/instillct/authbridge/internal/urlutil"
)

// TokenSet is the bundle returned by a code exchange. It is serialized
// into a browser cookie as-is; the bridge never parses or mutates it after
// the exchange.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// Serialize encodes the token set for cookie storage.
func (t *TokenSet) Serialize() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("serializing token set: %w", err)
	}
	return string(data), nil
}

// Exchanger performs the authorization-code-for-token exchange against the
// authorization server's token endpoint.
type Exchanger struct {
	conf *oauth2.Config
}

// NewExchanger creates an exchanger from the bridge configuration.
func NewExchanger(cfg *config.Config) *Exchanger {
	return &Exchanger{
		conf: &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret.Value(),
			RedirectURL:  urlutil.MustJoinPath(cfg.PublicBaseURL, "callback"),
			Endpoint: oauth2.Endpoint{
				TokenURL: urlutil.MustJoinPath(cfg.AuthServerPublicURL, "oauth2", "token"),
			},
		},
	}
}

// Exchange trades an authorization code for a token set.
func (e *Exchanger) Exchange(ctx context.Context, code string, scopes []string) (*TokenSet, error) {
	token, err := e.conf.Exchange(ctx, code,
		oauth2.SetAuthURLParam("scope", strings.Join(scopes, " ")),
	)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	scope, _ := token.Extra("scope").(string)

	return &TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scope:        scope,
	}, nil
}
