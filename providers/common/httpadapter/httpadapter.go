// Package httpadapter is the shared JSON-over-HTTP client for capability
// adapters. It normalizes transport results into a retryable/terminal
// classification so stage retry loops never inspect raw status codes.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Config configures a capability HTTP client.
type Config struct {
	Timeout       time.Duration
	StaticHeaders map[string]string
}

// Client executes capability requests with outcome normalization.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a client with defaults applied.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.StaticHeaders == nil {
		cfg.StaticHeaders = map[string]string{}
	}
	return &Client{cfg: cfg, http: &http.Client{}}
}

// StatusError is a non-2xx capability response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("capability status %d", e.Code)
}

// TransportError is a network-level failure before any status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("capability transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a capability error is worth another attempt.
// Timeouts, network failures, overload, server errors, and validation-error
// responses (422) are retryable; other client errors and cancellations are
// terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests,
			statusErr.Code == http.StatusRequestTimeout,
			statusErr.Code == http.StatusGatewayTimeout,
			statusErr.Code == http.StatusUnprocessableEntity:
			return true
		case statusErr.Code >= 500:
			return true
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// DoJSON sends an optional JSON body and decodes a 2xx JSON response into
// out. A nil body sends no payload; a nil out discards the response.
func (c *Client) DoJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	payload, err := c.do(ctx, method, endpoint, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode capability response: %w", err)
	}
	return nil
}

// DoRaw sends an optional JSON body and returns the raw 2xx response bytes,
// for audio payloads.
func (c *Client) DoRaw(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	return c.do(ctx, method, endpoint, body, "")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, accept string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode capability request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for key, value := range c.cfg.StaticHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(payload)}
	}
	if readErr != nil {
		return nil, &TransportError{Err: readErr}
	}
	return payload, nil
}

// WithQuery appends/overrides a query key on an endpoint URL.
func WithQuery(rawEndpoint string, key string, value string) (string, error) {
	u, err := url.Parse(rawEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
