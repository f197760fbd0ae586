// Package client provides the tuned HTTP client shared by the
// resolution strategies and the stream relay.
package client

import (
	"context"
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3

	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 3 * time.Second

	// UserAgent is the desktop browser identity used for page fetches.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// defaultTransport is a tuned transport reused across clients.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 30 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Transport returns the shared tuned transport for callers that build
// their own http.Client, such as the media relay.
func Transport() http.RoundTripper { return defaultTransport }

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
}

// Client wraps http.Client with retry/backoff and default headers.
type Client struct {
	HTTPClient *http.Client
	Retries    int
	UserAgent  string
}

// New creates a Client with the tuned transport and default timeout.
func New() *Client {
	return NewWith(Config{})
}

// NewWith creates a Client from cfg. Zero values use defaults.
func NewWith(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = UserAgent
	}
	return &Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: defaultTransport,
		},
		Retries:   retries,
		UserAgent: ua,
	}
}

// Get performs a GET with a simple retry policy for transient errors
// (HTTP 5xx or network failures). The context bounds all attempts.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	var resp *http.Response
	backoff := initialBackoff
	for attempt := 0; attempt < retries; attempt++ {
		resp, err = c.HTTPClient.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if attempt == retries-1 || ctx.Err() != nil {
			break
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return resp, err
}
