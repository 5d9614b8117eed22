// Package newsletter reads subscriber totals from ConvertKit.
package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is ConvertKit's API host.
const DefaultBaseURL = "https://api.convertkit.com"

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 1 << 20

// ErrNotConfigured means no API secret was provided.
var ErrNotConfigured = errors.New("newsletter: api secret not configured")

// UpstreamError describes a failed call to the provider. It never carries
// the API secret.
type UpstreamError struct {
	Status  int // upstream HTTP status, 0 if no response arrived
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("newsletter: upstream timeout: %v", e.Err)
	case e.Status != 0:
		return fmt.Sprintf("newsletter: upstream returned %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("newsletter: upstream request failed: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client calls the ConvertKit v3 API.
type Client struct {
	baseURL    string
	apiSecret  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client. timeout bounds each request; 0 means 10s.
func NewClient(apiSecret string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API secret is set.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.apiSecret) != ""
}

type subscribersResponse struct {
	TotalSubscribers *int64 `json:"total_subscribers"`
}

// SubscriberCount returns the account's current subscriber total.
func (c *Client) SubscriberCount(ctx context.Context) (int64, error) {
	if !c.Configured() {
		return 0, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("api_secret", c.apiSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v3/subscribers?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("newsletter: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &UpstreamError{Timeout: isTimeout(err), Err: scrub(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, &UpstreamError{Status: resp.StatusCode, Timeout: isTimeout(err), Err: scrub(err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", http.StatusText(resp.StatusCode))}
	}

	var payload subscribersResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if payload.TotalSubscribers == nil {
		return 0, &UpstreamError{Status: resp.StatusCode, Err: errors.New("response has no total_subscribers")}
	}
	if *payload.TotalSubscribers < 0 {
		return 0, &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("negative total_subscribers %d", *payload.TotalSubscribers)}
	}
	return *payload.TotalSubscribers, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// scrub drops the request URL (which contains the secret) from transport
// errors.
func scrub(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
