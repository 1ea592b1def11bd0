package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tffhost/backend/internal/domain/integration"
)

// refreshMargin is how long before its expiry a token is replaced
const refreshMargin = 5 * time.Minute

// TokenSource hands out the orchestrator JWT, fetching a new one with the client
// credentials when the cached token is about to expire
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource creates a token source for the given token endpoint
func NewTokenSource(tokenURL, clientID, clientSecret string, httpClient *http.Client) *TokenSource {
	return &TokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

// Token returns a valid token
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(refreshMargin).Before(s.expires) {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	expires, err := expiry(token)
	if err != nil {
		return "", err
	}
	s.token, s.expires = token, expires
	return token, nil
}

// Invalidate drops the cached token, e.g. after the orchestrator rejected it
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"response_type": {"id_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("fleet: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("fleet: failed to read token: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", integration.ErrAuthFailed
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: token endpoint HTTP %d", integration.ErrRequestFailed, resp.StatusCode)
	}

	// the endpoint answers either the bare JWT or {"access_token": "..."}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.AccessToken != "" {
		return payload.AccessToken, nil
	}
	return strings.TrimSpace(string(body)), nil
}

// expiry reads the exp claim. The signature is checked by the orchestrator, not here.
func expiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: token is not a JWT: %v", integration.ErrInvalidResponse, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("%w: token has no expiry", integration.ErrInvalidResponse)
	}
	return exp.Time, nil
}
