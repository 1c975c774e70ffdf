// Package transport retrieves bundle bytes from a URL.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned for a 404 response.
	ErrNotFound = errors.New("bundle not found")
	// ErrUpstreamDown is returned for a 5xx response once retries are spent.
	ErrUpstreamDown = errors.New("upstream unavailable")
)

// Fetcher downloads bundles over HTTP(S).
type Fetcher struct {
	client             *http.Client
	transport          *http.Transport
	userAgent          string
	maxRetries         uint64
	baseDelay          time.Duration
	insecureSkipVerify bool
	logger             zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client. The insecure knob has no effect
// on a custom client.
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

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(skip bool) Option {
	return func(f *Fetcher) {
		f.insecureSkipVerify = skip
	}
}

// WithMaxRetries sets the number of retries after a failed attempt. The
// default is zero: a fetch is tried exactly once.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRetries = uint64(n)
		}
	}
}

// WithBaseDelay sets the initial interval of the exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a new Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		userAgent: "bundleboot/1.0",
		baseDelay: 500 * time.Millisecond,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: f.insecureSkipVerify}
		f.client = &http.Client{
			Timeout:   5 * time.Minute,
			Transport: f.transport,
		}
	}
	return f
}

// Fetch downloads the body at url. A 404 is ErrNotFound and is never
// retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	var permanent error
	attempt := 0

	op := func() error {
		attempt++
		body, err := f.doFetch(ctx, url)
		switch {
		case err == nil:
			data = body
			return nil
		case errors.Is(err, ErrNotFound), ctx.Err() != nil:
			permanent = err
			return nil
		}
		f.logger.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("fetch failed")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.baseDelay
	if err := backoff.Retry(op, backoff.WithMaxRetries(policy, f.maxRetries)); err != nil {
		return nil, err
	}
	if permanent != nil {
		return nil, permanent
	}

	f.logger.Debug().Str("url", url).Int("size", len(data)).Int("attempts", attempt).Msg("fetched")
	return data, nil
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", url, err)
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s: status %d", ErrUpstreamDown, url, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, string(body))
	}
}
