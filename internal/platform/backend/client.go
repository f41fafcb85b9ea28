// Package backend is the HTTP client for the store backend API. It is the
// only place outbound requests are built: bearer credentials, tracing and
// the circuit breaker all live here so feature services stay thin.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avryx-pos/avryx-pos/internal/platform/httpx"
)

// maxResponseBody caps how much of an upstream response is read.
const maxResponseBody = 4 << 20

// Config carries client settings. Token is attached as a bearer credential
// on every request; acquisition and refresh belong to the auth collaborator,
// not this client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the store backend. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[result]
	logger  *slog.Logger

	// onUnauthorized is invoked when the backend answers 401, so the auth
	// collaborator can react. The request still fails with ErrUnauthorized.
	onUnauthorized func()
}

type result struct {
	status int
	body   []byte
}

// New constructs a client. A non-positive timeout defaults to 15s.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[result](gobreaker.Settings{
		Name:    "store-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		logger:  logger,
	}
}

// OnUnauthorized registers the auth collaborator callback.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// APIError is a non-2xx answer from the backend, carrying the most specific
// message the server provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.breaker.Execute(func() (result, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return result{}, fmt.Errorf("read response: %w", err)
		}
		r := result{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			// Count upstream 5xx as breaker failures.
			return r, &APIError{Status: resp.StatusCode, Message: serverMessage(data)}
		}
		return r, nil
	})
	if err != nil {
		return c.mapError(method, path, res, err)
	}

	switch {
	case res.status == http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%w: %s %s", httpx.ErrUnauthorized, method, path)
	case res.status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", httpx.ErrNotFound, serverMessage(res.body))
	case res.status >= http.StatusBadRequest:
		return &APIError{Status: res.status, Message: serverMessage(res.body)}
	}

	if out == nil || res.status == http.StatusNoContent || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) mapError(method, path string, res result, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Cancellation is the caller's doing; keep it recognizable so stale
		// responses can be discarded silently.
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: backend circuit open", httpx.ErrUnavailable)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.logger.Warn("backend error response",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", apiErr.Status))
		return fmt.Errorf("%w: %s", httpx.ErrUnavailable, apiErr.Message)
	}
	c.logger.Warn("backend request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Any("error", err))
	return fmt.Errorf("%w: %v", httpx.ErrUnavailable, err)
}

// serverMessage pulls the human-readable message out of an error payload.
func serverMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}
