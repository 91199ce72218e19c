// Package auth guards the HTTP server's endpoints.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/immich-dedup/pkg/config"
	"golang.org/x/oauth2"
)

// tokenCacheTTL bounds how long a token stays accepted after the identity provider last confirmed it.
const tokenCacheTTL = time.Minute

var (
	// ErrMissingCredentials is returned when a request carries no credentials at all.
	ErrMissingCredentials = errors.New("no credentials provided")
	// ErrInvalidCredentials is returned when credentials are present but rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type contextKey int

const (
	contextKeyAPIKey contextKey = iota
	contextKeyOAuthToken
)

// Provider authenticates an inbound request and returns a context carrying the caller's identity.
type Provider interface {
	Authenticate(r *http.Request) (context.Context, error)
}

// NewProvider builds the provider for the configured auth mode.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.AuthMode {
	case "none", "":
		return NewNoOpProvider(), nil
	case "api_key":
		return NewAPIKeyProvider(cfg.APIKeys), nil
	case "oauth":
		return NewOAuthProvider(cfg.OAuth)
	case "both":
		oauthProvider, err := NewOAuthProvider(cfg.OAuth)
		if err != nil {
			return nil, err
		}
		return NewMultiProvider(NewAPIKeyProvider(cfg.APIKeys), oauthProvider), nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.AuthMode)
	}
}

// NoOpProvider accepts every request.
type NoOpProvider struct{}

// NewNoOpProvider creates a new no-op auth provider
func NewNoOpProvider() Provider {
	return &NoOpProvider{}
}

func (p *NoOpProvider) Authenticate(r *http.Request) (context.Context, error) {
	return r.Context(), nil
}

// APIKeyProvider accepts requests carrying one of a fixed set of keys.
type APIKeyProvider struct {
	keys [][]byte
}

// NewAPIKeyProvider creates a new API key provider
func NewAPIKeyProvider(keys []string) Provider {
	p := &APIKeyProvider{}
	for _, key := range keys {
		if key != "" {
			p.keys = append(p.keys, []byte(key))
		}
	}
	return p
}

// Authenticate reads the key from the X-API-Key header, falling back to the api_key query parameter.
func (p *APIKeyProvider) Authenticate(r *http.Request) (context.Context, error) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		apiKey = r.URL.Query().Get("api_key")
	}

	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrMissingCredentials)
	}

	if !p.valid(apiKey) {
		return nil, fmt.Errorf("%w: unknown API key", ErrInvalidCredentials)
	}

	return context.WithValue(r.Context(), contextKeyAPIKey, apiKey), nil
}

func (p *APIKeyProvider) valid(apiKey string) bool {
	candidate := []byte(apiKey)
	for _, key := range p.keys {
		if subtle.ConstantTimeCompare(key, candidate) == 1 {
			return true
		}
	}
	return false
}

// OAuthProvider accepts bearer tokens that the identity provider's userinfo
// endpoint confirms.
type OAuthProvider struct {
	config      *oauth2.Config
	userInfoURL string
	verified    *cache.Cache
}

// NewOAuthProvider creates a new OAuth provider
func NewOAuthProvider(cfg *config.OAuthConfig) (*OAuthProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("OAuth config is nil")
	}
	if cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("OAuth userinfo_url is required to verify tokens")
	}

	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		verified:    cache.New(tokenCacheTTL, 2*tokenCacheTTL),
	}, nil
}

// Authenticate accepts the request when the userinfo endpoint answers 2xx for its bearer token.
func (p *OAuthProvider) Authenticate(r *http.Request) (context.Context, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: no authorization header", ErrMissingCredentials)
	}

	scheme, value, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, fmt.Errorf("%w: invalid authorization header format", ErrInvalidCredentials)
	}

	token := &oauth2.Token{AccessToken: strings.TrimSpace(value), TokenType: "Bearer"}
	if !token.Valid() {
		return nil, fmt.Errorf("%w: empty bearer token", ErrInvalidCredentials)
	}

	if err := p.verify(r.Context(), token); err != nil {
		return nil, err
	}

	return context.WithValue(r.Context(), contextKeyOAuthToken, token), nil
}

func (p *OAuthProvider) verify(ctx context.Context, token *oauth2.Token) error {
	sum := sha256.Sum256([]byte(token.AccessToken))
	key := hex.EncodeToString(sum[:])
	if _, ok := p.verified.Get(key); ok {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build userinfo request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("userinfo request failed")
		return fmt.Errorf("%w: token could not be verified", ErrInvalidCredentials)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().Int("status", resp.StatusCode).Msg("userinfo rejected bearer token")
		return fmt.Errorf("%w: token rejected by identity provider", ErrInvalidCredentials)
	}

	p.verified.SetDefault(key, struct{}{})
	return nil
}

// LoginURL returns the authorization server URL a user should visit to obtain a token.
func (p *OAuthProvider) LoginURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// MultiProvider tries multiple auth providers
type MultiProvider struct {
	providers []Provider
}

// NewMultiProvider creates a provider that tries multiple auth methods
func NewMultiProvider(providers ...Provider) Provider {
	return &MultiProvider{providers: providers}
}

// Authenticate tries each provider until one succeeds
func (p *MultiProvider) Authenticate(r *http.Request) (context.Context, error) {
	var lastErr error

	for _, provider := range p.providers {
		ctx, err := provider.Authenticate(r)
		if err == nil {
			return ctx, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return nil, fmt.Errorf("no auth providers configured")
}

// LoginURL returns the first OAuth login URL among the wrapped providers.
func (p *MultiProvider) LoginURL(state string) string {
	for _, provider := range p.providers {
		if o, ok := provider.(*OAuthProvider); ok {
			return o.LoginURL(state)
		}
	}
	return ""
}

// APIKeyFromContext returns the API key the request authenticated with.
func APIKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(contextKeyAPIKey).(string)
	return key, ok
}

// TokenFromContext returns the bearer token the request authenticated with.
func TokenFromContext(ctx context.Context) (*oauth2.Token, bool) {
	token, ok := ctx.Value(contextKeyOAuthToken).(*oauth2.Token)
	return token, ok
}
