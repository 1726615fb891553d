// Package index checks declared dependencies against a Python package index
// through its JSON API, with retrying, circuit broken HTTP fetching.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/dnscache"

	"github.com/git-pkgs/tfaot/internal/meta"
)

var (
	ErrNotFound     = errors.New("not found on index")
	ErrRateLimited  = errors.New("rate limited by index")
	ErrUpstreamDown = errors.New("package index unavailable")
)

const (
	// MaxDocumentSize bounds a JSON API response. The largest projects on
	// pypi.org list a few thousand files, well below this.
	MaxDocumentSize = 32 << 20

	maxRetryAfter = time.Minute
)

// RateLimitError is returned for 429 responses. RetryAfter is zero when the
// index did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by index, retry after %s", e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Transport reads documents from an index.
type Transport interface {
	// GetJSON returns the JSON document at url.
	GetJSON(ctx context.Context, url string) ([]byte, error)
	// Probe returns nil when url exists and ErrNotFound when it does not.
	Probe(ctx context.Context, url string) error
}

// Fetcher is the HTTP Transport. Rate limits and server errors are retried
// with exponential backoff.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	auth       func(*http.Request)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithBasicAuth authenticates every request against a private index.
func WithBasicAuth(username, password string) Option {
	return func(f *Fetcher) {
		f.auth = func(req *http.Request) { req.SetBasicAuth(username, password) }
	}
}

// WithBearerToken authenticates every request with an API token.
func WithBearerToken(token string) Option {
	return func(f *Fetcher) {
		f.auth = func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
	}
}

var (
	resolverOnce sync.Once
	resolver     *dnscache.Resolver
)

// sharedResolver returns the process wide DNS cache, refreshed every 5 minutes.
func sharedResolver() *dnscache.Resolver {
	resolverOnce.Do(func() {
		resolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				resolver.Refresh(true)
			}
		}()
	})
	return resolver
}

func newHTTPClient() *http.Client {
	r := sharedResolver()
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := r.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				var dialErr error
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
					dialErr = err
				}
				return nil, fmt.Errorf("dialing %s: %w", host, dialErr)
			},
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// NewFetcher creates a new Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:  meta.UserAgent(),
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = newHTTPClient()
	}
	return f
}

// GetJSON fetches url and returns its body.
func (f *Fetcher) GetJSON(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry(ctx, func() error {
		var err error
		body, err = f.do(ctx, http.MethodGet, url)
		return err
	})
	return body, err
}

// Probe sends a HEAD request for url.
func (f *Fetcher) Probe(ctx context.Context, url string) error {
	return f.retry(ctx, func() error {
		_, err := f.do(ctx, http.MethodHead, url)
		return err
	})
}

// retry runs call until it succeeds, fails permanently or the retries are
// used up. Delays double from baseDelay with 10% jitter; a longer Retry-After
// from the index wins.
func (f *Fetcher) retry(ctx context.Context, call func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrUpstreamDown) {
			return err
		}
		if attempt >= f.maxRetries {
			return err
		}

		delay := f.baseDelay << attempt
		delay += time.Duration(float64(delay) * rand.Float64() * 0.1)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (f *Fetcher) do(ctx context.Context, method, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")
	if f.auth != nil {
		f.auth(req)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: retryAfter(resp.Header)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: status %d: %w", url, resp.StatusCode, ErrUpstreamDown)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	// login pages of private indexes answer 200 with HTML
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt == "text/html" {
		return nil, fmt.Errorf("%s: expected a JSON document, got %s", url, mt)
	}
	if method == http.MethodHead {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if len(body) > MaxDocumentSize {
		return nil, fmt.Errorf("%s: document larger than %d bytes", url, MaxDocumentSize)
	}
	return body, nil
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
