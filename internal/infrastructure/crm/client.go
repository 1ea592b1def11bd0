// Package crm is the client of the customer relationship system. Users are tagged
// there by role (hoster, investor) and emails are sent through it.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseSize = 1024 * 1024

var _ integration.CRM = (*Client)(nil)

// Client implements integration.CRM on the Intercom REST API
type Client struct {
	baseURL    string
	apiKey     string
	adminID    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a CRM client
func NewClient(cfg config.CRMConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, integration.ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		adminID:    cfg.AdminID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TagUser creates or updates the user and applies each tag. Tagging is idempotent on
// the CRM side.
func (c *Client) TagUser(ctx context.Context, username, email string, tags []string) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "crm", "TagUser")
	defer func() { telemetry.End(span, err) }()

	if _, err := c.upsertUser(ctx, username, email); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := c.do(ctx, http.MethodPost, "/tags", map[string]any{
			"name":  tag,
			"users": []map[string]string{{"user_id": username}},
		}); err != nil {
			return fmt.Errorf("tag %q: %w", tag, err)
		}
	}
	c.logger.Debug("Tagged CRM user", zap.String("username", username), zap.Strings("tags", tags))
	return nil
}

// SendEmail sends an email from the configured admin to the user with the given
// address. Users who unsubscribed from emails are skipped.
func (c *Client) SendEmail(ctx context.Context, email, subject, body string) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "crm", "SendEmail")
	defer func() { telemetry.End(span, err) }()

	if c.adminID == "" {
		return fmt.Errorf("%w: no admin to send emails from", integration.ErrNotConfigured)
	}
	user, err := c.upsertUser(ctx, "", email)
	if err != nil {
		return err
	}
	if user.Get("unsubscribed_from_emails").Bool() {
		c.logger.Warn("User unsubscribed from emails, not sending", zap.String("crm_user_id", user.Get("id").String()))
		return nil
	}
	_, err = c.do(ctx, http.MethodPost, "/messages", map[string]any{
		"message_type": "email",
		"subject":      subject,
		"body":         body,
		"template":     "plain",
		"from":         map[string]string{"type": "admin", "id": c.adminID},
		"to":           map[string]string{"type": "user", "id": user.Get("id").String()},
	})
	return err
}

func (c *Client) upsertUser(ctx context.Context, username, email string) (gjson.Result, error) {
	payload := map[string]any{"email": email}
	if username != "" {
		payload["user_id"] = username
	}
	user, err := c.do(ctx, http.MethodPost, "/users", payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("upsert user: %w", err)
	}
	if !user.Get("id").Exists() {
		return gjson.Result{}, fmt.Errorf("%w: user without id", integration.ErrInvalidResponse)
	}
	return user, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crm: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crm: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", integration.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("crm: failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return gjson.Result{}, integration.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return gjson.Result{}, integration.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return gjson.Result{}, integration.ErrNotFound
	case resp.StatusCode >= 400:
		msg := gjson.GetBytes(raw, "errors.0.message").String()
		return gjson.Result{}, fmt.Errorf("%w: %s %s HTTP %d %s", integration.ErrRequestFailed, method, path, resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%w: %s %s", integration.ErrInvalidResponse, method, path)
	}
	return gjson.ParseBytes(raw), nil
}
