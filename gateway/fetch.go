// Package gateway talks to the upstream quote sources: Yahoo Finance,
// TWSE/TPEX MIS, Finnhub and TAIFEX. Adapters share one Fetcher that
// tries a direct request first and then walks the relay chain.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tradeguard-go/quote"
)

const (
	defaultDirectTimeout = 4 * time.Second
	defaultProxyTimeout  = 8 * time.Second
	maxBodyBytes         = 4 << 20
)

// Fetcher issues GET requests with a direct-first, relay-fallback
// policy. Proxies are URL prefixes; the target is appended escaped.
type Fetcher struct {
	Client        *http.Client
	Proxies       []string
	DirectTimeout time.Duration
	ProxyTimeout  time.Duration
	UserAgent     string
}

func NewFetcher(proxies []string) *Fetcher {
	return &Fetcher{
		Client:  &http.Client{Timeout: 15 * time.Second},
		Proxies: proxies,
	}
}

func (f *Fetcher) directTimeout() time.Duration {
	if f.DirectTimeout > 0 {
		return f.DirectTimeout
	}
	return defaultDirectTimeout
}

func (f *Fetcher) proxyTimeout() time.Duration {
	if f.ProxyTimeout > 0 {
		return f.ProxyTimeout
	}
	return defaultProxyTimeout
}

// Get fetches rawURL, first directly with the short timeout, then via
// each relay prefix with the longer one. Every path failing wraps
// quote.ErrConnectivity.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	body, directErr := f.once(ctx, rawURL, f.directTimeout())
	if directErr == nil {
		return body, nil
	}
	lastErr := directErr
	for _, p := range f.Proxies {
		proxied := p + url.QueryEscape(rawURL)
		body, err := f.once(ctx, proxied, f.proxyTimeout())
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", quote.ErrConnectivity, lastErr)
}

// GetDirect skips the relay chain. Finnhub 走直连，token 不经第三方代理。
func (f *Fetcher) GetDirect(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.once(ctx, rawURL, f.directTimeout())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", quote.ErrConnectivity, err)
	}
	return body, nil
}

func (f *Fetcher) once(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
