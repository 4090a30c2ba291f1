package ogcapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
)

const landingJSON = `{
  "title": "Demo OGC API",
  "description": "A demo service",
  "attribution": "Demo contributors",
  "links": [
    {"rel": "self", "type": "application/json", "href": "/"},
    {"rel": "service-desc", "type": "application/vnd.oai.openapi+json;version=3.0", "href": "/openapi"},
    {"rel": "conformance", "type": "application/json", "href": "/conformance"},
    {"rel": "http://www.opengis.net/def/rel/ogc/1.0/data", "type": "text/html", "href": "/collections?f=html"},
    {"rel": "http://www.opengis.net/def/rel/ogc/1.0/data", "type": "application/json", "href": "/collections"}
  ]
}`

const conformanceJSON = `{
  "conformsTo": [
    "http://www.opengis.net/spec/ogcapi-common-1/1.0/conf/core",
    "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core",
    "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson",
    "http://www.opengis.net/spec/ogcapi-records-1/1.0/conf/core",
    "http://www.opengis.net/spec/ogcapi-edr-1/1.0/conf/core"
  ]
}`

const collectionsJSON = `{
  "links": [{"rel": "self", "type": "application/json", "href": "/collections"}],
  "collections": [
    {
      "id": "lakes",
      "title": "Large Lakes",
      "itemType": "feature",
      "links": [
        {"rel": "self", "type": "application/json", "href": "/collections/lakes"},
        {"rel": "items", "type": "application/geo+json", "href": "/collections/lakes/items"}
      ]
    },
    {
      "id": "metadata",
      "title": "Metadata records",
      "itemType": "record",
      "links": [{"rel": "items", "type": "application/geo+json", "href": "/collections/metadata/items"}]
    },
    {
      "id": "weather",
      "title": "Weather observations",
      "data_queries": {
        "radius": {"link": {"href": "/collections/weather/radius", "rel": "data"}},
        "area": {"link": {"href": "/collections/weather/area", "rel": "data"}},
        "position": {"link": {"href": "/collections/weather/position", "rel": "data"}}
      },
      "links": [{"rel": "self", "type": "application/json", "href": "/collections/weather"}]
    },
    {
      "id": "imagery",
      "type": "Collection",
      "stac_version": "1.0.0",
      "links": []
    },
    {
      "id": "dem",
      "title": "Elevation",
      "links": [{"rel": "http://www.opengis.net/def/rel/ogc/1.0/coverage", "type": "image/tiff", "href": "/collections/dem/coverage"}]
    },
    {
      "id": "misc",
      "links": []
    }
  ]
}`

const lakesJSON = `{
  "id": "lakes",
  "title": "Large Lakes",
  "description": "lakes of the world, public domain",
  "itemType": "feature",
  "keywords": ["lakes", {"keyword": "water"}],
  "crs": ["http://www.opengis.net/def/crs/OGC/1.3/CRS84"],
  "storageCrs": "http://www.opengis.net/def/crs/OGC/1.3/CRS84",
  "extent": {
    "spatial": {"bbox": [[-180, -90, 180, 90]], "crs": "http://www.opengis.net/def/crs/OGC/1.3/CRS84"},
    "temporal": {"interval": [["2011-11-11T11:11:11Z", null]]}
  },
  "links": [
    {"rel": "self", "type": "application/json", "href": "/collections/lakes"},
    {"rel": "items", "type": "text/html", "href": "/collections/lakes/items?f=html"},
    {"rel": "items", "type": "application/geo+json", "href": "/collections/lakes/items?f=json"},
    {"rel": "http://www.opengis.net/def/rel/ogc/1.0/queryables", "type": "application/schema+json", "href": "/collections/lakes/queryables"}
  ]
}`

const lakesItemsJSON = `{
  "type": "FeatureCollection",
  "features": [],
  "links": [
    {"rel": "self", "type": "application/geo+json", "href": "/collections/lakes/items"},
    {"rel": "collection", "type": "application/json", "href": "/collections/lakes"}
  ]
}`

const weatherJSON = `{
  "id": "weather",
  "title": "Weather observations",
  "data_queries": {
    "position": {
      "link": {
        "href": "/collections/weather/position",
        "rel": "data",
        "title": "Position query",
        "variables": {"query_type": "position", "output_formats": ["CoverageJSON", "GeoJSON"]}
      }
    },
    "area": {
      "link": {
        "href": "https://edr.example.com/collections/weather/area",
        "rel": "data",
        "variables": {"query_type": "area"}
      }
    }
  },
  "links": [{"rel": "self", "type": "application/json", "href": "/collections/weather"}]
}`

// testAPI is an OGC API served from fixtures. It counts requests per path.
type testAPI struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func (a *testAPI) Hits(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[path]
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{hits: make(map[string]int)}

	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		}
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			api.mu.Lock()
			api.hits[req.URL.Path]++
			api.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/", serve(landingJSON))
	r.Get("/conformance", serve(conformanceJSON))
	r.Get("/collections", serve(collectionsJSON))
	r.Get("/collections/", serve(collectionsJSON))
	r.Get("/collections/lakes", serve(lakesJSON))
	r.Get("/collections/lakes/items", serve(lakesItemsJSON))
	r.Get("/collections/weather", serve(weatherJSON))

	api.Server = httptest.NewServer(r)
	t.Cleanup(api.Close)
	return api
}

func newTestFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	f, err := fetch.New(fetch.WithTimeout(5 * time.Second))
	require.NoError(t, err)
	return f
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.NewMemoryStore(), cache.Config{Expiry: time.Hour})
	require.NoError(t, err)
	return c
}
