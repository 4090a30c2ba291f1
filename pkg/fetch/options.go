package fetch

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog"
)

// Option configures a Fetcher during construction.
type Option func(*Fetcher) error

// WithHTTPClient injects a custom http.Client. The Fetcher works on a
// shallow copy, so later options never modify client itself.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) error {
		if client == nil {
			return ErrNilHTTPClient
		}
		c := *client
		f.client = &c
		return nil
	}
}

// WithTimeout sets the timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) error {
		if d > 0 {
			f.client.Timeout = d
		}
		return nil
	}
}

// WithRequestTimeout bounds how long a shared request may stay in flight.
// When it elapses, waiting callers fail and the next call issues a fresh
// request instead of joining the stuck one.
func WithRequestTimeout(d time.Duration) Option {
	return func(f *Fetcher) error {
		f.requestTimeout = d
		return nil
	}
}

// WithAccept overrides the Accept header sent with GET requests.
func WithAccept(accept string) Option {
	return func(f *Fetcher) error {
		f.accept = accept
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) error {
		f.userAgent = ua
		return nil
	}
}

// WithLogger registers a logger used for request lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) error {
		f.logger = logger
		return nil
	}
}

// WithTransport wraps the current transport, e.g. with an auth round-tripper.
func WithTransport(wrap func(base http.RoundTripper) http.RoundTripper) Option {
	return func(f *Fetcher) error {
		f.client.Transport = wrap(transportOf(f.client))
		return nil
	}
}

// WithHTTPCache layers an in-memory RFC 7234 cache over the transport so
// that servers sending cache headers are honoured across fetches.
func WithHTTPCache() Option {
	return func(f *Fetcher) error {
		t := httpcache.NewTransport(httpcache.NewMemoryCache())
		t.Transport = transportOf(f.client)
		t.MarkCachedResponses = true
		f.client.Transport = t
		return nil
	}
}

func transportOf(c *http.Client) http.RoundTripper {
	if c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}
