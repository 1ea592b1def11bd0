package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxResponseSize = 4 * 1024 * 1024

// apiError is an error envelope returned by the server
type apiError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

type apiClient struct {
	baseURL        string
	username       string
	roles          string
	usernameHeader string
	rolesHeader    string
	httpClient     *http.Client
}

type clientOption func(*apiClient)

func withHeaders(username, roles string) clientOption {
	return func(c *apiClient) {
		if username != "" {
			c.usernameHeader = username
		}
		if roles != "" {
			c.rolesHeader = roles
		}
	}
}

func withTimeout(d time.Duration) clientOption {
	return func(c *apiClient) { c.httpClient.Timeout = d }
}

func newAPIClient(baseURL, username, roles string, opts ...clientOption) *apiClient {
	c := &apiClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		username:       username,
		roles:          roles,
		usernameHeader: "X-Auth-Username",
		rolesHeader:    "X-Auth-Roles",
		httpClient:     &http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// api calls a versioned API route and returns the whole envelope
func (c *apiClient) api(ctx context.Context, method, path string, query url.Values) (gjson.Result, error) {
	return c.do(ctx, method, "/api/v1"+path, query)
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values) (gjson.Result, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.Header.Set(c.usernameHeader, c.username)
	}
	if c.roles != "" {
		req.Header.Set(c.rolesHeader, c.roles)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s %s: HTTP %d with a non JSON body", method, path, resp.StatusCode)
	}

	envelope := gjson.ParseBytes(body)
	if resp.StatusCode >= 400 || !envelope.Get("success").Bool() {
		return envelope, &apiError{
			Status:    resp.StatusCode,
			Code:      envelope.Get("error.code").String(),
			Message:   envelope.Get("error.message").String(),
			RequestID: envelope.Get("error.request_id").String(),
		}
	}
	return envelope, nil
}

func isStatus(err error, status int) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
