// Package delivery posts webhook payloads over HTTP/1.1 and classifies the
// result as either an HTTP response or a connection failure.
package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 64 << 10
	userAgentProduct = "sgtm-webhook"
)

// Options configures the HTTP client.
type Options struct {
	Timeout     time.Duration
	ValidateSSL bool
	Version     string
	// Transport overrides the default HTTP/1.1 transport. Tests use it.
	Transport http.RoundTripper
}

// Request is one delivery attempt.
type Request struct {
	Endpoint  string
	Payload   any
	AuthToken string
	AuthKey   string
}

// Response is any HTTP answer from the endpoint, successful or not.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	// BodyErr is set when the status arrived but the body was cut short.
	// Body then holds whatever was read.
	BodyErr error
}

// IsSuccess reports whether the status is 2xx.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ConnectionError is a transport-level failure: DNS, TCP, TLS or timeout.
// No HTTP status was received.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Client sends webhook requests synchronously.
type Client struct {
	http      *http.Client
	userAgent string
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = newTransport(opts.ValidateSSL)
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgentProduct + "/" + version,
	}
}

// newTransport pins HTTP/1.1: a non-nil empty TLSNextProto disables h2.
func newTransport(validateSSL bool) *http.Transport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false
	base.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	if base.TLSClientConfig == nil {
		base.TLSClientConfig = &tls.Config{}
	}
	base.TLSClientConfig.InsecureSkipVerify = !validateSSL //nolint:gosec // operator opt-out for diagnostics
	return base
}

// Send POSTs the JSON-encoded payload. A nil error always comes with a
// non-nil Response, whatever the status code. Failures before a status line
// return *ConnectionError; encoding failures return a plain error.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(req.AuthToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if key := strings.TrimSpace(req.AuthKey); key != "" {
		httpReq.Header.Set("X-Webhook-Key", key)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
		Duration:   time.Since(started),
	}
	if err != nil {
		out.BodyErr = fmt.Errorf("read response: %w", err)
	}
	return out, nil
}

// ProbeResult reports a connectivity check.
type ProbeResult struct {
	Reachable  bool
	StatusCode int
	Duration   time.Duration
	Message    string
}

// Probe issues a GET against url. 200 and 405 count as reachable since
// collection endpoints commonly reject GET.
func (c *Client) Probe(ctx context.Context, url, authToken string) (*ProbeResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if token := strings.TrimSpace(authToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Endpoint: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	result := &ProbeResult{
		StatusCode: resp.StatusCode,
		Duration:   time.Since(started),
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusMethodNotAllowed:
		result.Reachable = true
		result.Message = "endpoint reachable"
	default:
		result.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result, nil
}
