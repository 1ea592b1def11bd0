// Package fleet is the client of the node orchestrator. Every request is a blueprint
// that schedules actions on nodes; the orchestrator answers with tasks that are
// polled until they finish.
package fleet

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
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	maxResponseSize = 10 * 1024 * 1024

	nodeTemplate = "github.com/zero-os/0-templates/node/0.0.1"

	// statsWindow is the history window, in seconds, read from node stats
	statsWindow = "300"
)

// TaskState is the state of an orchestrator task
type TaskState string

const (
	TaskStateNew     TaskState = "new"
	TaskStateRunning TaskState = "running"
	TaskStateOK      TaskState = "ok"
	TaskStateError   TaskState = "error"
)

// Task is an action scheduled on one node
type Task struct {
	GUID        string    `json:"guid"`
	ServiceGUID string    `json:"service_guid"`
	ServiceName string    `json:"service_name"`
	ActionName  string    `json:"action_name"`
	State       TaskState `json:"state"`
	Result      string    `json:"result"`
}

// Done reports whether the task finished, successfully or not
func (t Task) Done() bool {
	return t.State == TaskStateOK || t.State == TaskStateError
}

var _ integration.Fleet = (*Client)(nil)

// Client implements integration.Fleet
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokens       *TokenSource
	limiter      *rate.Limiter
	concurrency  int
	pollInterval time.Duration
	deadline     time.Duration
	logger       *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithPolling sets how often tasks are polled and how long to wait for them
func WithPolling(interval, deadline time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.deadline = deadline
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenURL overrides the token endpoint, by default <url>/auth/token
func WithTokenURL(tokenURL string) Option {
	return func(c *Client) { c.tokens.tokenURL = tokenURL }
}

// NewClient creates a fleet client
func NewClient(cfg config.FleetConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" || cfg.ClientID == "" {
		return nil, integration.ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout}
	c := &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		tokens:       NewTokenSource(baseURL+"/auth/token", cfg.ClientID, cfg.ClientSecret, httpClient),
		limiter:      rate.NewLimiter(limit, cfg.Concurrency),
		concurrency:  cfg.Concurrency,
		pollInterval: 10 * time.Second,
		deadline:     2 * time.Minute,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NodeStatuses runs the info action and maps each node that finished to running (ok)
// or halted (error). Nodes that did not finish before the deadline are absent.
func (c *Client) NodeStatuses(ctx context.Context, ids []string) (_ map[string]node.Status, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "fleet", "NodeStatuses")
	defer func() { telemetry.End(span, err) }()

	var actions any
	if len(ids) == 0 {
		actions = blueprintAction{Template: nodeTemplate, Actions: "info"}
	} else {
		list := make([]blueprintAction, 0, len(ids))
		for _, id := range ids {
			list = append(list, blueprintAction{Template: nodeTemplate, Actions: "info", Service: id})
		}
		actions = list
	}

	tasks, err := c.executeBlueprint(ctx, actions)
	if err != nil {
		return nil, err
	}
	done, err := c.waitForTasks(ctx, tasks)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]node.Status, len(done))
	for _, t := range done {
		if t.State == TaskStateOK {
			statuses[t.ServiceName] = node.StatusRunning
		} else {
			statuses[t.ServiceName] = node.StatusHalted
		}
	}
	return statuses, nil
}

// Snapshots runs the info and stats actions on the given nodes
func (c *Client) Snapshots(ctx context.Context, statuses map[string]node.Status) (_ []node.Snapshot, err error) {
	ctx, span := telemetry.StartClientSpan(ctx, "fleet", "Snapshots")
	defer func() { telemetry.End(span, err) }()

	snapshots := make(map[string]*node.Snapshot, len(statuses))
	actions := make([]blueprintAction, 0, len(statuses))
	for id, status := range statuses {
		snapshots[id] = &node.Snapshot{ID: id, Status: status}
		actions = append(actions, blueprintAction{Template: nodeTemplate, Actions: []string{"info", "stats"}, Service: id})
	}
	if len(actions) == 0 {
		return nil, nil
	}

	tasks, err := c.executeBlueprint(ctx, actions)
	if err != nil {
		return nil, err
	}
	done, err := c.waitForTasks(ctx, tasks)
	if err != nil {
		return nil, err
	}

	for _, t := range done {
		snap, ok := snapshots[t.ServiceName]
		if !ok {
			continue
		}
		if t.State != TaskStateOK {
			c.logger.Warn("Node task failed",
				zap.String("node_id", t.ServiceName),
				zap.String("action", t.ActionName))
			continue
		}
		if err := applyTaskResult(snap, t); err != nil {
			c.logger.Warn("Invalid node task result",
				zap.String("node_id", t.ServiceName),
				zap.String("action", t.ActionName),
				zap.Error(err))
		}
	}

	out := make([]node.Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, *s)
	}
	return out, nil
}

func applyTaskResult(snap *node.Snapshot, t Task) error {
	switch t.ActionName {
	case "info":
		var info node.Info
		if err := json.Unmarshal([]byte(t.Result), &info); err != nil {
			return err
		}
		snap.Info = &info
	case "stats":
		var stats map[string]struct {
			History map[string][]node.StatSample `json:"history"`
		}
		if err := json.Unmarshal([]byte(t.Result), &stats); err != nil {
			return err
		}
		snap.Stats = make(map[string][]node.StatSample, len(stats))
		for key, s := range stats {
			snap.Stats[key] = s.History[statsWindow]
		}
	}
	return nil
}

type blueprintAction struct {
	Template string `json:"template"`
	Actions  any    `json:"actions"`
	Service  string `json:"service,omitempty"`
}

func (c *Client) executeBlueprint(ctx context.Context, actions any) ([]Task, error) {
	body, err := json.Marshal(map[string]any{"content": map[string]any{"actions": actions}})
	if err != nil {
		return nil, fmt.Errorf("fleet: encode blueprint: %w", err)
	}
	raw, err := c.doRequest(ctx, http.MethodPost, "/blueprints", body)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("%w: blueprint tasks: %v", integration.ErrInvalidResponse, err)
	}
	return tasks, nil
}

// waitForTasks polls the unfinished tasks until all are done or the deadline passes.
// Tasks whose status cannot be fetched are dropped.
func (c *Client) waitForTasks(ctx context.Context, tasks []Task) ([]Task, error) {
	pending := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		pending[t.GUID] = t
	}
	deadline := time.Now().Add(c.deadline)
	var done []Task

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			c.logger.Info("Task deadline exceeded", zap.Duration("deadline", c.deadline), zap.Int("pending", len(pending)))
			break
		}

		polled := make([]Task, 0, len(pending))
		for _, t := range pending {
			polled = append(polled, t)
		}
		// results[i] is the fetched state of polled[i]; a zero GUID marks a failed poll
		results := make([]Task, len(polled))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for i, t := range polled {
			g.Go(func() error {
				current, err := c.fetchTask(gctx, t)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					c.logger.Warn("Task poll failed", zap.String("node_id", t.ServiceName), zap.Error(err))
					return nil
				}
				current.GUID = t.GUID
				results[i] = current
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, t := range polled {
			current := results[i]
			switch {
			case current.GUID == "":
				delete(pending, t.GUID)
			case current.Done():
				if current.ServiceName == "" {
					current.ServiceName = t.ServiceName
				}
				done = append(done, current)
				delete(pending, t.GUID)
			}
		}
	}
	return done, nil
}

func (c *Client) fetchTask(ctx context.Context, t Task) (Task, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/services/"+t.ServiceGUID+"/task_list/"+t.GUID, nil)
	if err != nil {
		return Task{}, err
	}
	var current Task
	if err := json.Unmarshal(raw, &current); err != nil {
		return Task{}, fmt.Errorf("%w: task: %v", integration.ErrInvalidResponse, err)
	}
	return current, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("fleet: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "caddyoauth", Value: token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("fleet: failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		return nil, integration.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, integration.ErrRateLimited
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %s %s HTTP %d", integration.ErrRequestFailed, method, path, resp.StatusCode)
	}
	return raw, nil
}
