// Package client wraps the Optima backend's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/optima-study/optima/internal/id"
)

const (
	DefaultTimeout       = 180 * time.Second
	DefaultUploadTimeout = 300 * time.Second
	registerTimeout      = 30 * time.Second
)

// TokenStore is the durable slot holding the bearer token.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Notifier receives a transient, user-visible notice for every classified
// failure.
type Notifier interface {
	Notify(err *APIError)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(err *APIError)

func (f NotifierFunc) Notify(err *APIError) { f(err) }

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	Tokens        TokenStore
	Notifier      Notifier // optional
	Logger        *slog.Logger
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL  string
	api      *http.Client
	upload   *http.Client
	register *http.Client
	tokens   TokenStore
	notifier Notifier
	logger   *slog.Logger

	mu             sync.RWMutex
	onUnauthorized func()
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		api:      &http.Client{Timeout: opts.Timeout},
		upload:   &http.Client{Timeout: opts.UploadTimeout},
		register: &http.Client{Timeout: registerTimeout},
		tokens:   opts.Tokens,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
}

// OnUnauthorized registers the hook run after any 401, once the stored
// token has been cleared.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Request plumbing
// ============================================================================

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool         // send no bearer token
	httpClient  *http.Client // defaults to the API client
}

func jsonRequest(method, path string, payload any) (request, error) {
	r := request{method: method, path: path}
	if payload == nil {
		return r, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return r, fmt.Errorf("failed to marshal request: %w", err)
	}
	r.body = bytes.NewReader(data)
	r.contentType = "application/json"
	return r, nil
}

// do sends r and decodes a successful JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", id.RequestID())

	if !r.anonymous && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Warn("failed to read auth token", "error", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	hc := r.httpClient
	if hc == nil {
		hc = c.api
	}

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%s %s: %w", r.method, r.path, ctx.Err())
		}
		return c.fail(ctx, &APIError{
			Kind:    kindForTransport(err),
			Method:  r.method,
			Path:    r.path,
			Wrapped: err,
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(ctx, &APIError{
			Kind:    kindForTransport(err),
			Status:  resp.StatusCode,
			Method:  r.method,
			Path:    r.path,
			Wrapped: err,
		})
	}

	if resp.StatusCode >= 400 {
		return c.fail(ctx, &APIError{
			Kind:   kindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Detail: parseDetail(body),
			Method: r.method,
			Path:   r.path,
		})
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

// fail runs the side effects of a classified error and returns it.
func (c *Client) fail(ctx context.Context, apiErr *APIError) error {
	c.logger.Debug("request failed",
		"method", apiErr.Method,
		"path", apiErr.Path,
		"status", apiErr.Status,
		"kind", apiErr.Kind,
		"detail", apiErr.Detail,
	)

	if apiErr.Kind == KindUnauthorized {
		if c.tokens != nil {
			// The request context may already be done; clearing must still happen.
			if err := c.tokens.ClearToken(context.WithoutCancel(ctx)); err != nil {
				c.logger.Error("failed to clear auth token", "error", err)
			}
		}
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
	}

	if c.notifier != nil {
		c.notifier.Notify(apiErr)
	}
	return apiErr
}
