// Package oauth talks to external identity providers. Only Google is
// supported today.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/chirpnet/chirp/pkg/httpclient"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"
)

// GoogleConfig holds the OAuth client credentials and redirect registered
// with Google.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// GoogleTokens is the response from Google's token endpoint.
type GoogleTokens struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// GoogleUser is the profile returned by Google's userinfo endpoint.
type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// HTTPDoer is the outbound client surface GoogleClient needs. The
// circuit-breaker client satisfies it.
type HTTPDoer interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error)
}

// GoogleClient implements the Google sign-in exchange.
type GoogleClient struct {
	cfg         GoogleConfig
	http        HTTPDoer
	tokenURL    string
	userInfoURL string
}

// NewGoogleClient creates a Google OAuth client. Calls go through the
// provided HTTP client, which is expected to carry retry and circuit-breaker
// behavior.
func NewGoogleClient(cfg GoogleConfig, client HTTPDoer) *GoogleClient {
	return &GoogleClient{
		cfg:         cfg,
		http:        client,
		tokenURL:    googleTokenURL,
		userInfoURL: googleUserInfoURL,
	}
}

// WithEndpoints overrides the Google endpoints. Tests point this at a local
// server.
func (c *GoogleClient) WithEndpoints(tokenURL, userInfoURL string) *GoogleClient {
	cpy := *c
	cpy.tokenURL = tokenURL
	cpy.userInfoURL = userInfoURL
	return &cpy
}

// ExchangeCode redeems an authorization code for Google tokens.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*GoogleTokens, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
		"grant_type":    {"authorization_code"},
	}

	resp, err := c.http.PostForm(ctx, c.tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("google token exchange: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseProviderError(resp, "google")
	}
	defer func() { _ = resp.Body.Close() }()

	var tokens GoogleTokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode google tokens: %w", err)
	}
	return &tokens, nil
}

// FetchUser loads the Google profile for an access token.
func (c *GoogleClient) FetchUser(ctx context.Context, accessToken string) (*GoogleUser, error) {
	u, err := url.Parse(c.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("parse userinfo url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	q.Set("alt", "json")
	u.RawQuery = q.Encode()

	resp, err := c.http.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseProviderError(resp, "google")
	}
	defer func() { _ = resp.Body.Close() }()

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode google user: %w", err)
	}
	return &user, nil
}
