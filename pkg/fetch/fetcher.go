// Package fetch retrieves capability documents over HTTP.
//
// A Fetcher coalesces identical concurrent requests, classifies failures into
// the ogcerr taxonomy and validates that the body parses as JSON or XML
// before handing it out.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
	"github.com/robert-malhotra/go-ogc-client/pkg/xmlutil"
)

const (
	// DefaultAccept is sent with GET requests unless overridden.
	DefaultAccept = "application/json,application/schema+json"
	// DefaultUserAgent identifies the library to servers.
	DefaultUserAgent = "go-ogc-client/0.1"
	// MaxBodySize caps how much of a response body is read.
	MaxBodySize = 32 << 20
)

var (
	// ErrNilHTTPClient indicates a nil HTTP client was provided.
	ErrNilHTTPClient = errors.New("fetch: http client cannot be nil")
	// ErrRequestTimeout is returned to callers of a request that stayed in
	// flight longer than the configured request timeout.
	ErrRequestTimeout = errors.New("fetch: request timed out")
)

// Kind tells which representation a Result carries.
type Kind int

const (
	KindNone Kind = iota
	KindJSON
	KindXML
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindXML:
		return "xml"
	default:
		return "none"
	}
}

// Result is a fetched and validated document. Results are shared between
// every caller of a coalesced request and must not be modified.
type Result struct {
	URL         string
	Status      int
	Header      http.Header
	ContentType string
	Body        []byte
	Kind        Kind
	// XML is set when Kind is KindXML.
	XML *xmlutil.Document
}

// DecodeJSON unmarshals a JSON result into v.
func (r *Result) DecodeJSON(v any) error {
	if r.Kind != KindJSON {
		return &ogcerr.DocumentFormatError{URL: r.URL, ContentType: r.ContentType, Err: errors.New("expected a JSON document")}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ogcerr.DocumentFormatError{URL: r.URL, ContentType: r.ContentType, Err: err}
	}
	return nil
}

// Fetcher issues discovery requests.
//
// Identical concurrent requests are coalesced on (method, normalized URL).
// The key deliberately ignores headers and bodies: the Fetcher only issues
// GET and HEAD requests whose response depends on the URL alone, and must not
// be extended to requests carrying a payload.
type Fetcher struct {
	client         *http.Client
	accept         string
	userAgent      string
	requestTimeout time.Duration
	logger         zerolog.Logger

	group    singleflight.Group
	requests atomic.Int64
}

// New constructs a Fetcher with the provided options.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		accept:    DefaultAccept,
		userAgent: DefaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

var defaultFetcher = sync.OnceValue(func() *Fetcher {
	f, _ := New()
	return f
})

// Default returns a process-wide Fetcher with default settings. Endpoints
// built without an explicit Fetcher share it, so their requests coalesce.
func Default() *Fetcher {
	return defaultFetcher()
}

// Requests returns how many network round trips the Fetcher has issued,
// HEAD probes included.
func (f *Fetcher) Requests() int64 {
	return f.requests.Load()
}

// FetchDocument retrieves rawURL with method (GET when empty). Concurrent
// calls for the same key share a single round trip and the same *Result.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL, method string) (*Result, error) {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodHead {
		return nil, fmt.Errorf("fetch: unsupported method %s", method)
	}

	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	key := method + " " + u

	ch := f.group.DoChan(key, func() (any, error) {
		// Shared work must not die with the first caller's context; the
		// http.Client timeout still bounds it.
		return f.do(context.WithoutCancel(ctx), method, u)
	})

	var timeout <-chan time.Time
	if f.requestTimeout > 0 {
		timer := time.NewTimer(f.requestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-ch:
		if res.Shared {
			f.logger.Debug().Str("url", u).Str("method", method).Msg("fetch: joined in-flight request")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		f.group.Forget(key)
		return nil, fmt.Errorf("%w: %s %s", ErrRequestTimeout, method, u)
	}
}

func (f *Fetcher) do(ctx context.Context, method, u string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: error creating request for %s: %w", u, err)
	}
	if f.accept != "" {
		req.Header.Set("Accept", f.accept)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	f.logger.Debug().Str("url", u).Str("method", method).Msg("fetch: request")
	f.requests.Add(1)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, &ogcerr.NetworkError{URL: u, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debug().Str("url", u).Int("status", resp.StatusCode).Msg("fetch: request failed")
		return nil, &ogcerr.HTTPError{URL: u, Status: resp.StatusCode, Body: string(body)}
	}

	res := &Result{
		URL:         u,
		Status:      resp.StatusCode,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if method == http.MethodHead {
		return res, nil
	}
	if err := validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

// classify turns a transport failure into a NetworkError or, when a bare
// HEAD probe to the same URL goes through, a CorsError. The boundary is a
// heuristic and depends on the environment.
func (f *Fetcher) classify(ctx context.Context, u string, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return &ogcerr.NetworkError{URL: u, Err: cause}
	}

	probe, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return &ogcerr.NetworkError{URL: u, Err: cause}
	}
	f.requests.Add(1)
	resp, err := f.client.Do(probe)
	if err != nil {
		f.logger.Debug().Str("url", u).Err(cause).Msg("fetch: network error")
		return &ogcerr.NetworkError{URL: u, Err: cause}
	}
	resp.Body.Close()

	f.logger.Debug().Str("url", u).Int("probe_status", resp.StatusCode).Err(cause).Msg("fetch: probe succeeded where request failed")
	return &ogcerr.CorsError{URL: u, Err: cause}
}

func validate(res *Result) error {
	if looksLikeJSON(res.ContentType, res.Body) {
		if !json.Valid(res.Body) {
			return &ogcerr.DocumentFormatError{URL: res.URL, ContentType: res.ContentType, Err: errors.New("malformed JSON")}
		}
		res.Kind = KindJSON
		return nil
	}

	doc, err := xmlutil.Parse(res.Body, res.ContentType)
	if err != nil {
		return &ogcerr.DocumentFormatError{URL: res.URL, ContentType: res.ContentType, Err: err}
	}
	res.Kind = KindXML
	res.XML = doc
	return nil
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
