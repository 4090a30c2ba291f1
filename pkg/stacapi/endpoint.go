// Package stacapi discovers and reads STAC API catalogs.
//
// Discovery follows rel="root" links from the given URL to the catalog
// root, at most MaxDepth hops. Collections are decoded into go-stac types.
package stacapi

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	stac "github.com/planetlabs/go-stac"
	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ogc-client/internal/future"
	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/ogcapi"
	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
)

const (
	// MaxDepth bounds the number of rel="root" hops during discovery.
	MaxDepth = 3
	// CacheNamespace is the first key part of every cache entry written here.
	CacheNamespace = "STAC"
	// maxPages bounds pagination of the collection list.
	maxPages = 100
)

// ErrCollectionNotFound is returned for an unknown collection id.
var ErrCollectionNotFound = errors.New("stacapi: collection not found")

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithFetcher sets the document fetcher. Defaults to fetch.Default().
func WithFetcher(f ogcapi.DocumentFetcher) Option {
	return func(e *Endpoint) { e.fetcher = f }
}

// WithCache sets the result cache. Defaults to cache.Default().
func WithCache(c *cache.Cache) Option {
	return func(e *Endpoint) { e.cache = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Endpoint) { e.logger = logger }
}

// Endpoint is a STAC API catalog.
type Endpoint struct {
	url     string
	fetcher ogcapi.DocumentFetcher
	cache   *cache.Cache
	logger  zerolog.Logger

	root        *future.Future[*ogcapi.Resource]
	conformance *future.Future[[]string]
	collections *future.Future[[]*stac.Collection]
}

// NewEndpoint returns an Endpoint for rawURL and starts discovery in the
// background.
func NewEndpoint(rawURL string, opts ...Option) *Endpoint {
	e := &Endpoint{
		url:    strings.TrimSpace(rawURL),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = fetch.Default()
	}
	if e.cache == nil {
		e.cache = cache.Default()
	}
	if normalized, err := fetch.NormalizeURL(e.url); err == nil {
		e.url = normalized
	}

	ctx := context.Background()
	e.root = future.Go(func() (*ogcapi.Resource, error) {
		return cache.Use(ctx, e.cache, func(ctx context.Context) (*ogcapi.Resource, error) {
			return FetchRoot(ctx, e.fetcher, e.url)
		}, CacheNamespace, "root", e.url)
	})
	e.conformance = future.Then(e.root, func(root *ogcapi.Resource) ([]string, error) {
		return cache.Use(ctx, e.cache, func(ctx context.Context) ([]string, error) {
			return fetchConformance(ctx, e.fetcher, root)
		}, CacheNamespace, "conformance", e.url)
	})
	e.collections = future.Then(e.root, func(root *ogcapi.Resource) ([]*stac.Collection, error) {
		return cache.Use(ctx, e.cache, func(ctx context.Context) ([]*stac.Collection, error) {
			return e.fetchCollections(ctx, root)
		}, CacheNamespace, "collections", e.url)
	})
	return e
}

// FetchRoot follows rel="root" links from rawURL until it reaches a
// document whose root link points to itself, or that has none.
func FetchRoot(ctx context.Context, f ogcapi.DocumentFetcher, rawURL string) (*ogcapi.Resource, error) {
	current := rawURL
	for depth := 0; depth <= MaxDepth; depth++ {
		res, err := fetchResource(ctx, f, current)
		if err != nil {
			return nil, err
		}
		next, err := ogcapi.GetLinkURL(res.Document, ogcapi.RelRoot, res.URL, "", false)
		if err != nil {
			return nil, err
		}
		if next == "" || sameURL(next, res.URL) {
			return res, nil
		}
		current = next
	}
	return nil, &ogcerr.DepthExceededError{URL: rawURL, MaxDepth: MaxDepth}
}

func fetchResource(ctx context.Context, f ogcapi.DocumentFetcher, rawURL string) (*ogcapi.Resource, error) {
	res, err := f.FetchDocument(ctx, rawURL, http.MethodGet)
	if err != nil {
		return nil, err
	}
	doc := &ogcapi.Document{}
	if err := res.DecodeJSON(doc); err != nil {
		return nil, err
	}
	return &ogcapi.Resource{URL: res.URL, Document: doc}, nil
}

func sameURL(a, b string) bool {
	na, errA := fetch.NormalizeURL(a)
	nb, errB := fetch.NormalizeURL(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return strings.TrimSuffix(na, "/") == strings.TrimSuffix(nb, "/")
}

// fetchConformance reads conformsTo from the root, or from the conformance
// document when the root does not carry it.
func fetchConformance(ctx context.Context, f ogcapi.DocumentFetcher, root *ogcapi.Resource) ([]string, error) {
	var classes []string
	found, err := root.Document.Decode("conformsTo", &classes)
	if err != nil {
		return nil, err
	}
	if found {
		return classes, nil
	}
	if !ogcapi.HasLinks(root.Document, ogcapi.RelConformance) {
		return nil, nil
	}
	res, err := ogcapi.FetchLink(ctx, f, root.Document, ogcapi.RelConformance, root.URL)
	if err != nil {
		return nil, err
	}
	if _, err := res.Document.Decode("conformsTo", &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (e *Endpoint) collectionsURL(root *ogcapi.Resource) (string, error) {
	href, err := ogcapi.GetLinkURL(root.Document, ogcapi.RelData, root.URL, "", false)
	if err != nil || href != "" {
		return href, err
	}
	return ogcapi.ResolveHref("collections", withSlash(root.URL))
}

func (e *Endpoint) fetchCollections(ctx context.Context, root *ogcapi.Resource) ([]*stac.Collection, error) {
	next, err := e.collectionsURL(root)
	if err != nil {
		return nil, err
	}
	var out []*stac.Collection
	seen := make(map[string]bool)
	for page := 0; next != "" && page < maxPages && !seen[next]; page++ {
		seen[next] = true
		res, err := e.fetcher.FetchDocument(ctx, next, http.MethodGet)
		if err != nil {
			return nil, err
		}
		var list collectionList
		if err := res.DecodeJSON(&list); err != nil {
			return nil, err
		}
		out = append(out, list.Collections...)
		e.logger.Debug().Str("url", res.URL).Int("count", len(list.Collections)).Msg("stacapi: collections page")

		href := list.nextHref()
		if href == "" {
			break
		}
		if next, err = ogcapi.ResolveHref(href, res.URL); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// URL returns the URL the endpoint was created with.
func (e *Endpoint) URL() string {
	return e.url
}

// IsReady waits for root discovery and the conformance classes.
func (e *Endpoint) IsReady(ctx context.Context) (*Endpoint, error) {
	if _, err := e.root.Await(ctx); err != nil {
		return nil, err
	}
	if _, err := e.conformance.Await(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Root returns the root catalog document.
func (e *Endpoint) Root(ctx context.Context) (*ogcapi.Resource, error) {
	return e.root.Await(ctx)
}

// Info returns the title and description of the root catalog.
func (e *Endpoint) Info(ctx context.Context) (*ogcapi.Info, error) {
	root, err := e.root.Await(ctx)
	if err != nil {
		return nil, err
	}
	return &ogcapi.Info{
		Title:       root.Document.String("title"),
		Description: root.Document.String("description"),
	}, nil
}

// ConformanceClasses returns the classes the catalog conforms to.
func (e *Endpoint) ConformanceClasses(ctx context.Context) ([]string, error) {
	return e.conformance.Await(ctx)
}

// HasItemSearch reports whether the catalog supports item search.
func (e *Endpoint) HasItemSearch(ctx context.Context) (bool, error) {
	classes, err := e.conformance.Await(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(classes, func(c string) bool {
		return strings.HasPrefix(c, "https://api.stacspec.org/") && strings.HasSuffix(c, "/item-search")
	}), nil
}

// Collections returns every collection of the catalog.
func (e *Endpoint) Collections(ctx context.Context) ([]*stac.Collection, error) {
	return e.collections.Await(ctx)
}

// GetCollection returns the full document of collection id.
func (e *Endpoint) GetCollection(ctx context.Context, id string) (*stac.Collection, error) {
	if id == "" {
		return nil, fmt.Errorf("collection id is required")
	}
	target, err := e.collectionURL(ctx, id)
	if err != nil {
		return nil, err
	}
	return cache.Use(ctx, e.cache, func(ctx context.Context) (*stac.Collection, error) {
		res, err := e.fetcher.FetchDocument(ctx, target, http.MethodGet)
		if err != nil {
			var httpErr *ogcerr.HTTPError
			if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, id)
			}
			return nil, err
		}
		var collection stac.Collection
		if err := res.DecodeJSON(&collection); err != nil {
			return nil, err
		}
		return &collection, nil
	}, CacheNamespace, "collection", e.url, id)
}

// collectionURL returns the self link of collection id when it is listed,
// or the id appended to the collections URL.
func (e *Endpoint) collectionURL(ctx context.Context, id string) (string, error) {
	root, err := e.root.Await(ctx)
	if err != nil {
		return "", err
	}
	base, err := e.collectionsURL(root)
	if err != nil {
		return "", err
	}
	if collections, err := e.collections.Await(ctx); err == nil {
		for _, c := range collections {
			if c == nil || c.Id != id {
				continue
			}
			for _, link := range c.Links {
				if link != nil && link.Rel == "self" && link.Href != "" {
					return ogcapi.ResolveHref(link.Href, base)
				}
			}
		}
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + id
	u.RawPath = ""
	u.RawQuery = ""
	return u.String(), nil
}

// Items streams the items of collection id, following next links. A
// positive limit is sent as the page size.
func (e *Endpoint) Items(ctx context.Context, collectionID string, limit int) iter.Seq2[*stac.Item, error] {
	return func(yield func(*stac.Item, error) bool) {
		if collectionID == "" {
			yield(nil, fmt.Errorf("collection id is required"))
			return
		}
		next, err := e.itemsURL(ctx, collectionID)
		if err != nil {
			yield(nil, err)
			return
		}
		if limit > 0 {
			if next, err = fetch.SetQueryParams(next, map[string]string{"limit": strconv.Itoa(limit)}); err != nil {
				yield(nil, err)
				return
			}
		}

		seen := make(map[string]bool)
		for next != "" && !seen[next] {
			seen[next] = true
			page, pageURL, err := e.fetchPage(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range page.Items {
				if item == nil {
					continue
				}
				if !yield(item, nil) {
					return
				}
			}
			link := page.NextLink()
			if link == nil || link.Href == "" {
				return
			}
			if next, err = ogcapi.ResolveHref(link.Href, pageURL); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func (e *Endpoint) itemsURL(ctx context.Context, collectionID string) (string, error) {
	collection, err := e.GetCollection(ctx, collectionID)
	if err != nil {
		return "", err
	}
	self, err := e.collectionURL(ctx, collectionID)
	if err != nil {
		return "", err
	}
	for _, link := range collection.Links {
		if link != nil && link.Rel == "items" && link.Href != "" {
			return ogcapi.ResolveHref(link.Href, self)
		}
	}
	return ogcapi.ResolveHref("items", withSlash(self))
}

func (e *Endpoint) fetchPage(ctx context.Context, pageURL string) (*ItemCollection, string, error) {
	res, err := e.fetcher.FetchDocument(ctx, pageURL, http.MethodGet)
	if err != nil {
		return nil, "", err
	}
	var page ItemCollection
	if err := res.DecodeJSON(&page); err != nil {
		return nil, "", err
	}
	return &page, res.URL, nil
}

// withSlash appends a slash to the path of rawURL so that relative
// references resolve below it.
func withSlash(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || strings.HasSuffix(u.Path, "/") {
		return rawURL
	}
	u.Path += "/"
	u.RawPath = ""
	return u.String()
}
