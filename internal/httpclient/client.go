// Package httpclient implements the rate-limited, retrying HTTP client
// shared by every source adapter in internal/source: callers supply a base
// URL, a request pace, and a retry budget, and get back a client that
// paces requests, retries transient failures with exponential backoff, and
// carries cookies across requests (needed for the Senate EFD CSRF
// handshake).
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is a rate-limited HTTP client with retry/backoff and a shared
// cookie jar, suitable for embedding in any source.Source implementation.
type Client struct {
	BaseURL    string
	UserAgent  string
	MaxRetries int

	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// Options configures a new Client.
type Options struct {
	BaseURL      string
	RequestDelay time.Duration // paces requests; 0 disables pacing
	Timeout      time.Duration
	MaxRetries   int
	UserAgent    string
	Debug        bool
}

// New builds a Client with a fresh cookie jar, ready for adapters that need
// session affinity (the Senate CSRF handshake in particular).
func New(opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}

	ratePerSec := 1.0
	if opts.RequestDelay > 0 {
		ratePerSec = 1.0 / opts.RequestDelay.Seconds()
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "polidisc/1.0"
	}

	return &Client{
		BaseURL:    opts.BaseURL,
		UserAgent:  userAgent,
		MaxRetries: maxRetries,
		httpClient: &http.Client{Timeout: opts.Timeout, Jar: jar},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		debug:      opts.Debug,
	}, nil
}

// Request describes one HTTP call through Do.
type Request struct {
	Method  string
	URL     string // absolute, or relative to BaseURL
	Form    url.Values
	Headers map[string]string
}

// Response is the outcome of a successful Do call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string // reflects redirects the stdlib client followed
}

// retryableStatus reports whether a status code should trigger a retry with
// a doubled backoff (per SourceConfig retry policy: 429/503/502 retry, 404
// is terminal, everything else outside 2xx is a hard failure).
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusBadGateway || code == http.StatusServiceUnavailable
}

// Do issues req, retrying transient failures with exponential backoff
// (2^attempt) up to MaxRetries. A 404 is never retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := req.URL
	if !strings.HasPrefix(reqURL, "http://") && !strings.HasPrefix(reqURL, "https://") {
		reqURL = strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(reqURL, "/")
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))*500) * time.Millisecond
			if c.debug {
				slog.Debug("httpclient: retrying after backoff", "attempt", attempt, "backoff", backoff, "url", redactURL(reqURL))
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		httpReq, err := c.buildRequest(ctx, req, reqURL)
		if err != nil {
			return nil, err
		}

		if c.debug {
			slog.Debug("httpclient: request", "method", req.Method, "url", redactURL(reqURL))
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}

		if c.debug {
			slog.Debug("httpclient: response", "status", resp.StatusCode, "bytes", len(body))
		}

		if resp.StatusCode == http.StatusNotFound {
			return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body, FinalURL: resp.Request.URL.String()}, nil
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
			continue
		}

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body, FinalURL: resp.Request.URL.String()}, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.MaxRetries+1, lastErr)
}

func (c *Client) buildRequest(ctx context.Context, req Request, reqURL string) (*http.Request, error) {
	var body io.Reader
	if req.Form != nil && (req.Method == http.MethodPost || req.Method == http.MethodPut) {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.UserAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Cookie returns the value of a named cookie set for u, or "" if absent.
// Adapters use this to pull csrftoken/sessionid out of the jar after a
// round trip (net/http's cookiejar does not expose lookup-by-name
// directly, so we scan Cookies(u)).
func (c *Client) Cookie(u string, name string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	jar, ok := c.httpClient.Jar.(interface {
		Cookies(*url.URL) []*http.Cookie
	})
	if !ok {
		return ""
	}
	for _, ck := range jar.Cookies(parsed) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	for _, key := range []string{"api_key", "token", "apikey"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
