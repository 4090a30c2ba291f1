// Package ows reads the capabilities of legacy OGC web services (WMS, WFS,
// WMTS).
//
// The GetCapabilities document is fetched as soon as an Endpoint is
// created. Parsing runs on a worker.Runner so a pool can take it off the
// caller's goroutine; the parsed model goes through the cache like every
// other discovery result.
package ows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ogc-client/internal/future"
	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
	"github.com/robert-malhotra/go-ogc-client/pkg/xmlutil"
)

// CacheNamespace is the first key part of every cache entry written here.
const CacheNamespace = "OWS"

// AcceptXML is the Accept header of the default fetcher.
const AcceptXML = "application/xml,text/xml"

// DocumentFetcher retrieves documents.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL, method string) (*fetch.Result, error)
}

var defaultFetcher = sync.OnceValue(func() *fetch.Fetcher {
	f, _ := fetch.New(fetch.WithAccept(AcceptXML))
	return f
})

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithFetcher sets the document fetcher.
func WithFetcher(f DocumentFetcher) Option {
	return func(e *Endpoint) { e.fetcher = f }
}

// WithCache sets the result cache. Defaults to cache.Default().
func WithCache(c *cache.Cache) Option {
	return func(e *Endpoint) { e.cache = c }
}

// WithRunner sets the runner parsing happens on. The runner must have the
// ows tasks registered (see RegisterTasks). Defaults to an inline runner.
func WithRunner(r worker.Runner) Option {
	return func(e *Endpoint) { e.runner = r }
}

// WithVersion pins the VERSION parameter of the GetCapabilities request.
func WithVersion(version string) Option {
	return func(e *Endpoint) { e.version = version }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Endpoint) { e.logger = logger }
}

// Endpoint is a WMS, WFS or WMTS service.
type Endpoint struct {
	url     string
	service string
	version string
	fetcher DocumentFetcher
	cache   *cache.Cache
	runner  worker.Runner
	logger  zerolog.Logger

	capabilities *future.Future[*Capabilities]
}

// NewEndpoint returns an Endpoint for the service at rawURL. service is one
// of ServiceWMS, ServiceWFS or ServiceWMTS (case-insensitive).
func NewEndpoint(rawURL, service string, opts ...Option) *Endpoint {
	e := &Endpoint{
		url:     strings.TrimSpace(rawURL),
		service: strings.ToUpper(strings.TrimSpace(service)),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = defaultFetcher()
	}
	if e.cache == nil {
		e.cache = cache.Default()
	}
	if e.runner == nil {
		e.runner = worker.NewInlineRunner(defaultRegistry)
	}
	if normalized, err := fetch.NormalizeURL(e.url); err == nil {
		e.url = normalized
	}

	e.capabilities = future.Go(func() (*Capabilities, error) {
		if err := validateService(e.service); err != nil {
			return nil, err
		}
		return cache.Use(context.Background(), e.cache, e.fetchCapabilities,
			CacheNamespace, e.service, "capabilities", e.url, e.version)
	})
	return e
}

func validateService(service string) error {
	switch service {
	case ServiceWMS, ServiceWFS, ServiceWMTS:
		return nil
	default:
		return fmt.Errorf("ows: unsupported service %q", service)
	}
}

func (e *Endpoint) fetchCapabilities(ctx context.Context) (*Capabilities, error) {
	u, err := fetch.CapabilitiesURL(e.url, e.service, e.version)
	if err != nil {
		return nil, fmt.Errorf("ows: %w", err)
	}
	e.logger.Debug().Str("url", u).Str("service", e.service).Msg("ows: fetching capabilities")

	res, err := e.fetcher.FetchDocument(ctx, u, http.MethodGet)
	if err != nil {
		return nil, exceptionFromHTTPError(err, u)
	}
	if res.Kind != fetch.KindXML {
		return nil, &ogcerr.DocumentFormatError{URL: res.URL, ContentType: res.ContentType, Err: errors.New("expected an XML document")}
	}
	if err := CheckException(res.XML, u); err != nil {
		return nil, err
	}

	caps, err := worker.Call[*Capabilities](ctx, e.runner, TaskParseCapabilities, ParseParams{
		Body:        res.Body,
		ContentType: res.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("ows: error parsing capabilities of %s: %w", u, err)
	}
	if caps.Service != e.service {
		return nil, fmt.Errorf("ows: %s answered with %s capabilities", u, caps.Service)
	}
	return caps, nil
}

// exceptionFromHTTPError surfaces the exception report some servers send
// along with an error status.
func exceptionFromHTTPError(err error, requestURL string) error {
	var httpErr *ogcerr.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Body == "" {
		return err
	}
	doc, parseErr := xmlutil.Parse([]byte(httpErr.Body), "")
	if parseErr != nil {
		return err
	}
	if excErr := CheckException(doc, requestURL); excErr != nil {
		return excErr
	}
	return err
}

// URL returns the service URL.
func (e *Endpoint) URL() string {
	return e.url
}

// Service returns the service type.
func (e *Endpoint) Service() string {
	return e.service
}

// IsReady waits for the capabilities document.
func (e *Endpoint) IsReady(ctx context.Context) (*Endpoint, error) {
	if _, err := e.capabilities.Await(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Capabilities returns the parsed capabilities.
func (e *Endpoint) Capabilities(ctx context.Context) (*Capabilities, error) {
	return e.capabilities.Await(ctx)
}

// ServiceInfo describes the service.
type ServiceInfo struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// ServiceInfo returns the title, abstract and keywords of the service.
func (e *Endpoint) ServiceInfo(ctx context.Context) (*ServiceInfo, error) {
	caps, err := e.capabilities.Await(ctx)
	if err != nil {
		return nil, err
	}
	return &ServiceInfo{Title: caps.Title, Abstract: caps.Abstract, Keywords: caps.Keywords}, nil
}

// Version returns the version the server answered with.
func (e *Endpoint) Version(ctx context.Context) (string, error) {
	caps, err := e.capabilities.Await(ctx)
	if err != nil {
		return "", err
	}
	return caps.Version, nil
}

// LayerNames returns the names of the layers or feature types.
func (e *Endpoint) LayerNames(ctx context.Context) ([]string, error) {
	caps, err := e.capabilities.Await(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(caps.Layers))
	for _, layer := range caps.Layers {
		names = append(names, layer.Name)
	}
	return names, nil
}

// OutputFormats returns the formats of GetMap, GetFeature or WMTS tiles.
func (e *Endpoint) OutputFormats(ctx context.Context) ([]string, error) {
	caps, err := e.capabilities.Await(ctx)
	if err != nil {
		return nil, err
	}
	return caps.OutputFormats, nil
}
