// Package ogcapi discovers and reads OGC API services (Features, Records,
// Tiles, Styles, EDR).
//
// An Endpoint starts fetching the landing page, the conformance declaration
// and the collection list as soon as it is created. Every getter derives
// from those documents; fetches are shared through the cache and the
// fetcher's single-flight, so several endpoints on one URL issue one
// request per document.
//
//	ep := ogcapi.NewEndpoint("https://demo.pygeoapi.io/master")
//	if _, err := ep.IsReady(ctx); err != nil {
//	    return err
//	}
//	collections, err := ep.AllCollections(ctx)
package ogcapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-ogc-client/internal/future"
	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
)

// CacheNamespace is the first key part of every cache entry written here.
const CacheNamespace = "OGCAPI"

// ErrCollectionNotFound is returned for a collection id absent from the
// collection list.
var ErrCollectionNotFound = errors.New("ogcapi: collection not found")

// State is the life-cycle state of an Endpoint.
type State int

const (
	StateFetchingRoot State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "fetching-root"
	}
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithFetcher sets the document fetcher. Defaults to fetch.Default().
func WithFetcher(f DocumentFetcher) Option {
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

// Info describes the service, from the landing page.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Attribution string `json:"attribution,omitempty"`
}

// CollectionSummary is one entry of AllCollections.
type CollectionSummary struct {
	ID    string         `json:"id"`
	Title string         `json:"title,omitempty"`
	Kind  CollectionKind `json:"kind"`
	URL   string         `json:"url"`
}

// CollectionInfo is the normalized metadata of one collection.
type CollectionInfo struct {
	ID            string         `json:"id"`
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Kind          CollectionKind `json:"kind"`
	ItemType      string         `json:"itemType,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
	CRS           []string       `json:"crs,omitempty"`
	StorageCRS    string         `json:"storageCrs,omitempty"`
	Bounds        *geom.Bounds   `json:"-"`
	BBox          []float64      `json:"bbox,omitempty"`
	Intervals     []TimeInterval `json:"intervals,omitempty"`
	ItemFormats   []string       `json:"itemFormats,omitempty"`
	ItemsURL      string         `json:"itemsUrl,omitempty"`
	QueryablesURL string         `json:"queryablesUrl,omitempty"`
	URL           string         `json:"url"`
}

// collectionList is the cached form of the collections document.
type collectionList struct {
	URL         string        `json:"url"`
	Collections []*Collection `json:"collections"`
}

// Endpoint is an OGC API service.
type Endpoint struct {
	url     string
	fetcher DocumentFetcher
	cache   *cache.Cache
	logger  zerolog.Logger

	root        *future.Future[*Resource]
	conformance *future.Future[[]string]
	collections *future.Future[*collectionList]
}

// NewEndpoint returns an Endpoint for rawURL, which may be the landing page
// or any document below it. It does not block: discovery runs in the
// background and its outcome is observed through IsReady and the getters.
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
	e.root = future.Go(func() (*Resource, error) {
		e.logger.Debug().Str("url", e.url).Msg("ogcapi: fetching root")
		root, err := cache.Use(ctx, e.cache, func(ctx context.Context) (*Resource, error) {
			return FetchRoot(ctx, e.fetcher, e.url)
		}, CacheNamespace, "root", e.url)
		if err != nil {
			e.logger.Debug().Err(err).Str("url", e.url).Msg("ogcapi: root discovery failed")
		}
		return root, err
	})
	e.conformance = future.Then(e.root, func(root *Resource) ([]string, error) {
		return cache.Use(ctx, e.cache, func(ctx context.Context) ([]string, error) {
			return fetchConformance(ctx, e.fetcher, root)
		}, CacheNamespace, "conformance", e.url)
	})
	e.collections = future.Then(e.root, func(root *Resource) (*collectionList, error) {
		return cache.Use(ctx, e.cache, func(ctx context.Context) (*collectionList, error) {
			return fetchCollections(ctx, e.fetcher, root)
		}, CacheNamespace, "collections", e.url)
	})
	return e
}

func fetchConformance(ctx context.Context, f DocumentFetcher, root *Resource) ([]string, error) {
	res, err := FetchLink(ctx, f, root.Document, RelConformance, root.URL)
	if err != nil {
		return nil, err
	}
	var classes []string
	if _, err := res.Document.Decode("conformsTo", &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func fetchCollections(ctx context.Context, f DocumentFetcher, root *Resource) (*collectionList, error) {
	res, err := FetchLink(ctx, f, root.Document, RelData, root.URL)
	if err != nil {
		return nil, err
	}
	list := &collectionList{URL: res.URL}
	if _, err := res.Document.Decode("collections", &list.Collections); err != nil {
		return nil, err
	}
	return list, nil
}

// URL returns the URL the endpoint was created with.
func (e *Endpoint) URL() string {
	return e.url
}

// State reports the life-cycle state without blocking.
func (e *Endpoint) State() State {
	rootDone, rootErr := e.root.Settled()
	if !rootDone {
		return StateFetchingRoot
	}
	if rootErr != nil {
		return StateFailed
	}
	confDone, confErr := e.conformance.Settled()
	switch {
	case !confDone:
		return StateFetchingRoot
	case confErr != nil:
		return StateFailed
	default:
		return StateReady
	}
}

// IsReady waits for root discovery and the conformance declaration. It can
// be called any number of times and always returns e, or the error that
// made the endpoint fail.
func (e *Endpoint) IsReady(ctx context.Context) (*Endpoint, error) {
	if _, err := e.root.Await(ctx); err != nil {
		return nil, err
	}
	if _, err := e.conformance.Await(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Root returns the landing page.
func (e *Endpoint) Root(ctx context.Context) (*Resource, error) {
	return e.root.Await(ctx)
}

// Info returns the title, description and attribution of the service.
func (e *Endpoint) Info(ctx context.Context) (*Info, error) {
	root, err := e.root.Await(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		Title:       root.Document.String("title"),
		Description: root.Document.String("description"),
		Attribution: root.Document.String("attribution"),
	}, nil
}

// ConformanceClasses returns the conformance classes the service declares.
func (e *Endpoint) ConformanceClasses(ctx context.Context) ([]string, error) {
	return e.conformance.Await(ctx)
}

// AllCollections lists every collection of the service.
func (e *Endpoint) AllCollections(ctx context.Context) ([]CollectionSummary, error) {
	list, err := e.collections.Await(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionSummary, 0, len(list.Collections))
	for _, c := range list.Collections {
		out = append(out, CollectionSummary{
			ID:    c.ID,
			Title: c.Title,
			Kind:  c.Kind,
			URL:   collectionURL(list.URL, c),
		})
	}
	return out, nil
}

// FeatureCollections returns the ids of the feature collections.
func (e *Endpoint) FeatureCollections(ctx context.Context) ([]string, error) {
	return e.collectionIDs(ctx, KindFeatures)
}

// RecordCollections returns the ids of the record collections.
func (e *Endpoint) RecordCollections(ctx context.Context) ([]string, error) {
	return e.collectionIDs(ctx, KindRecords)
}

func (e *Endpoint) collectionIDs(ctx context.Context, kind CollectionKind) ([]string, error) {
	all, err := e.AllCollections(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range all {
		if c.Kind == kind {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// HasFeatures reports whether the service implements OGC API Features.
func (e *Endpoint) HasFeatures(ctx context.Context) (bool, error) {
	return e.conformsTo(ctx, "ogcapi-features-1", nil)
}

// HasRecords reports whether the service implements OGC API Records.
func (e *Endpoint) HasRecords(ctx context.Context) (bool, error) {
	return e.conformsTo(ctx, "ogcapi-records-1", nil)
}

// HasTiles reports whether the service offers tiles.
func (e *Endpoint) HasTiles(ctx context.Context) (bool, error) {
	return e.conformsTo(ctx, "ogcapi-tiles-1", RelTilesets)
}

// HasStyles reports whether the service offers styles.
func (e *Endpoint) HasStyles(ctx context.Context) (bool, error) {
	return e.conformsTo(ctx, "ogcapi-styles-1", RelStyles)
}

// conformsTo reports whether a conformance class mentions part, or the
// landing page has a link for rel.
func (e *Endpoint) conformsTo(ctx context.Context, part string, rel Rel) (bool, error) {
	classes, err := e.conformance.Await(ctx)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(classes, func(c string) bool { return strings.Contains(c, "/"+part+"/") }) {
		return true, nil
	}
	if rel == nil {
		return false, nil
	}
	root, err := e.root.Await(ctx)
	if err != nil {
		return false, err
	}
	return HasLinks(root.Document, rel), nil
}

// GetCollectionDocument returns the full document of the collection id.
func (e *Endpoint) GetCollectionDocument(ctx context.Context, id string) (*Collection, string, error) {
	list, err := e.collections.Await(ctx)
	if err != nil {
		return nil, "", err
	}
	idx := slices.IndexFunc(list.Collections, func(c *Collection) bool { return c.ID == id })
	if idx < 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrCollectionNotFound, id)
	}
	target := collectionURL(list.URL, list.Collections[idx])

	c, err := cache.Use(ctx, e.cache, func(ctx context.Context) (*Collection, error) {
		res, err := e.fetcher.FetchDocument(ctx, target, http.MethodGet)
		if err != nil {
			return nil, err
		}
		c := &Collection{}
		if err := res.DecodeJSON(c); err != nil {
			return nil, err
		}
		return c, nil
	}, CacheNamespace, "collection", e.url, id)
	if err != nil {
		return nil, "", err
	}
	return c, target, nil
}

// GetCollectionInfo returns the normalized metadata of the collection id.
func (e *Endpoint) GetCollectionInfo(ctx context.Context, id string) (*CollectionInfo, error) {
	c, target, err := e.GetCollectionDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := &Document{Links: c.Links}

	info := &CollectionInfo{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Kind:        c.Kind,
		ItemType:    c.ItemType,
		Keywords:    c.Keywords,
		CRS:         c.CRS,
		StorageCRS:  c.StorageCRS,
		Bounds:      c.Bounds(),
		Intervals:   c.Intervals(),
		URL:         target,
	}
	if info.Bounds != nil {
		info.BBox = c.Extent.Spatial.BBox[0]
	}

	items, _ := GetLinks(doc, RelItems, "", false)
	for _, link := range items {
		if link.Type != "" && !slices.Contains(info.ItemFormats, link.Type) {
			info.ItemFormats = append(info.ItemFormats, link.Type)
		}
	}
	if len(items) > 0 {
		if info.ItemsURL, err = ResolveHref(preferGeoJSON(items).Href, target); err != nil {
			return nil, err
		}
	}
	if info.QueryablesURL, err = GetLinkURL(doc, RelQueryables, target, "", false); err != nil {
		return nil, err
	}
	return info, nil
}

// GetCollectionsInfo returns the metadata of several collections, fetched
// concurrently.
func (e *Endpoint) GetCollectionsInfo(ctx context.Context, ids ...string) ([]*CollectionInfo, error) {
	out := make([]*CollectionInfo, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			info, err := e.GetCollectionInfo(ctx, id)
			if err != nil {
				return err
			}
			out[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCollectionItemsURL returns the URL of the items of collection id. A
// positive limit is set as the limit query parameter.
func (e *Endpoint) GetCollectionItemsURL(ctx context.Context, id string, limit int) (string, error) {
	info, err := e.GetCollectionInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if info.ItemsURL == "" {
		return "", fmt.Errorf("ogcapi: collection %q has no items link", id)
	}
	if limit <= 0 {
		return info.ItemsURL, nil
	}
	return fetch.SetQueryParams(info.ItemsURL, map[string]string{"limit": strconv.Itoa(limit)})
}

func preferGeoJSON(links []*Link) *Link {
	for _, link := range links {
		if link.Type == "application/geo+json" {
			return link
		}
	}
	return preferJSON(links)
}

// collectionURL returns the URL of a collection listed in the document at
// listURL: its self link, or the id appended to the list path.
func collectionURL(listURL string, c *Collection) string {
	links, _ := GetLinks(&Document{Links: c.Links}, RelSelf, "", false)
	if len(links) > 0 {
		if href, err := ResolveHref(preferJSON(links).Href, listURL); err == nil {
			return href
		}
	}
	base, query, _ := strings.Cut(listURL, "?")
	u := strings.TrimSuffix(base, "/") + "/" + url.PathEscape(c.ID)
	if query != "" {
		u += "?" + query
	}
	return u
}
