// Package chat is the client of the messaging app API. Calls are JSON-RPC requests
// authenticated with the service API key.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxResponseSize = 1024 * 1024
	apiKeyHeader    = "X-Nuntiuz-API-Key"

	// alertFlagVibrate makes the app vibrate once on a new message
	alertFlagVibrate = 2

	signature = "\n\nKind regards,\nThe ThreeFold Team"
)

// Mailer sends plain emails to users
type Mailer interface {
	SendEmail(ctx context.Context, email, subject, body string) error
}

var _ integration.Chat = (*Client)(nil)

// Client implements integration.Chat
type Client struct {
	url          string
	apiKey       string
	supportEmail string
	httpClient   *http.Client
	limiter      *rate.Limiter
	mailer       Mailer
	logger       *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithMailer sets where the email copies of messages and support notifications go.
// Without a mailer they are logged and dropped.
func WithMailer(m Mailer) Option {
	return func(cl *Client) { cl.mailer = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a chat client
func NewClient(cfg config.ChatConfig, opts ...Option) (*Client, error) {
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
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		supportEmail: cfg.SupportEmail,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(limit, 1),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type member struct {
	Member     string `json:"member"`
	AppID      string `json:"app_id"`
	AlertFlags int    `json:"alert_flags"`
}

func toMembers(m integration.Member) []member {
	return []member{{Member: m.Email, AppID: m.AppID, AlertFlags: alertFlagVibrate}}
}

// SendMessage sends the body as a chat message and, signed, as an email
func (c *Client) SendMessage(ctx context.Context, to integration.Member, subject, body string) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "chat", "SendMessage")
	defer func() { telemetry.End(span, err) }()

	if _, err := c.call(ctx, "messaging.send", map[string]any{
		"message":     body,
		"members":     toMembers(to),
		"answers":     []any{},
		"flags":       0,
		"alert_flags": alertFlagVibrate,
	}); err != nil {
		return err
	}
	return c.email(ctx, to.Email, subject, body+signature)
}

// StartFlow starts a message flow. Attachments are handed to the flow as a parameter.
func (c *Client) StartFlow(ctx context.Context, to integration.Member, flow integration.Flow) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "chat", "StartFlow")
	defer func() { telemetry.End(span, err) }()

	params := make(map[string]any, len(flow.Params)+1)
	for k, v := range flow.Params {
		params[k] = v
	}
	if len(flow.Attachments) > 0 {
		params["attachments"] = flow.Attachments
	}
	flowParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("chat: encode flow params: %w", err)
	}
	_, err = c.call(ctx, "messaging.start_local_flow", map[string]any{
		"flow":         flow.Flow,
		"members":      toMembers(to),
		"tag":          flow.Tag,
		"push_message": flow.PushMessage,
		"flow_params":  string(flowParams),
	})
	return err
}

// PutUserData merges data into the user data the app shows the member
func (c *Client) PutUserData(ctx context.Context, to integration.Member, data map[string]any) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "chat", "PutUserData")
	defer func() { telemetry.End(span, err) }()

	_, err = c.call(ctx, "system.put_user_data", map[string]any{
		"email":     to.Email,
		"app_id":    to.AppID,
		"user_data": data,
	})
	return err
}

// AddRole grants a service role to the member
func (c *Client) AddRole(ctx context.Context, to integration.Member, role string) (err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "chat", "AddRole")
	defer func() { telemetry.End(span, err) }()

	_, err = c.call(ctx, "system.add_role_member", map[string]any{
		"role_name": role,
		"member":    to.Email,
		"app_id":    to.AppID,
	})
	return err
}

// NotifySupport emails the support address
func (c *Client) NotifySupport(ctx context.Context, subject, body string) error {
	if c.supportEmail == "" {
		c.logger.Warn("No support address configured, dropping notification", zap.String("subject", subject))
		return nil
	}
	return c.email(ctx, c.supportEmail, subject, body)
}

func (c *Client) email(ctx context.Context, address, subject, body string) error {
	if c.mailer == nil {
		c.logger.Info("No mailer configured, not sending email",
			zap.String("to", address),
			zap.String("subject", subject))
		return nil
	}
	if address == "" {
		return nil
	}
	return c.mailer.SendEmail(ctx, address, subject, body)
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}
	body, err := json.Marshal(map[string]any{
		"id":     uuid.NewString(),
		"method": method,
		"params": params,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("chat: encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("chat: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", integration.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("chat: failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return gjson.Result{}, integration.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return gjson.Result{}, integration.ErrRateLimited
	case resp.StatusCode >= 400:
		return gjson.Result{}, fmt.Errorf("%w: %s HTTP %d", integration.ErrRequestFailed, method, resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%w: %s", integration.ErrInvalidResponse, method)
	}
	res := gjson.ParseBytes(raw)
	if e := res.Get("error"); e.Exists() && e.Type != gjson.Null {
		return gjson.Result{}, rpcError(method, e)
	}
	return res.Get("result"), nil
}

func rpcError(method string, e gjson.Result) error {
	msg := e.Get("message").String()
	if msg == "" {
		msg = e.String()
	}
	if strings.HasSuffix(e.Get("type").String(), "NotFoundException") {
		return fmt.Errorf("%w: %s: %s", integration.ErrNotFound, method, msg)
	}
	return fmt.Errorf("%w: %s: %s", integration.ErrRequestFailed, method, msg)
}
