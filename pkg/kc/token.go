package kc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenEndpoint returns the OpenID Connect token URL for a realm.
func tokenEndpoint(baseURL, realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", baseURL, realm)
}

type oauthTokenSource struct {
	src oauth2.TokenSource
}

func (s *oauthTokenSource) Token(ctx context.Context) (string, error) {
	tok, err := s.src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// NewClientCredentialsTokenSource exchanges the client secret for access
// tokens using the client_credentials grant. Tokens are cached and renewed
// on expiry by the underlying oauth2 source.
func NewClientCredentialsTokenSource(baseURL, realm, clientID, clientSecret string) TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenEndpoint(baseURL, realm),
	}
	return &oauthTokenSource{src: cfg.TokenSource(context.Background())}
}

// NewPasswordTokenSource exchanges a username and password for access tokens
// using the resource-owner password grant. Intended for tests and bootstrap
// tooling that authenticate as the realm admin.
func NewPasswordTokenSource(baseURL, realm, clientID, username, password string) TokenSource {
	cfg := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{TokenURL: tokenEndpoint(baseURL, realm)},
	}
	return &passwordTokenSource{cfg: cfg, username: username, password: password}
}

type passwordTokenSource struct {
	cfg      *oauth2.Config
	username string
	password string

	// mu guards cached; one Client serves concurrent service calls.
	mu     sync.Mutex
	cached *oauth2.Token
}

func (s *passwordTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cached.Valid() {
		return s.cached.AccessToken, nil
	}
	tok, err := s.cfg.PasswordCredentialsToken(ctx, s.username, s.password)
	if err != nil {
		return "", err
	}
	s.cached = tok
	return tok.AccessToken, nil
}

// StaticTokenSource wraps a raw access token obtained elsewhere, e.g. from a
// session's security context. Token fails once the token's exp claim has
// passed, so a stale session surfaces before a call is issued.
type StaticTokenSource struct {
	raw    string
	expiry time.Time
}

// NewStaticTokenSource parses the token's expiry claim without verifying the
// signature; verification is the backend's job on every call.
func NewStaticTokenSource(raw string) (*StaticTokenSource, error) {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	src := &StaticTokenSource{raw: raw}
	if claims.ExpiresAt != nil {
		src.expiry = claims.ExpiresAt.Time
	}
	return src, nil
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if !s.expiry.IsZero() && time.Now().After(s.expiry) {
		return "", fmt.Errorf("access token expired at %s", s.expiry.Format(time.RFC3339))
	}
	return s.raw, nil
}
