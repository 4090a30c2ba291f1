package ows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
)

type testService struct {
	*httptest.Server

	mu       sync.Mutex
	hits     int
	versions []string
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	s := &testService{}

	r := chi.NewRouter()
	r.Get("/ows", func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query()
		s.mu.Lock()
		s.hits++
		s.versions = append(s.versions, query.Get("VERSION"))
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/xml")
		if query.Get("REQUEST") != "GetCapabilities" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch query.Get("SERVICE") {
		case ServiceWMS:
			w.Write([]byte(wmsCapabilities))
		case ServiceWFS:
			w.Write([]byte(wfsCapabilities))
		case ServiceWMTS:
			w.Write([]byte(wmtsCapabilities))
		default:
			w.Write([]byte(wmsException))
		}
	})
	r.Get("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(owsException))
	})
	r.Get("/exception", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ogc.se_xml")
		w.Write([]byte(wmsException))
	})
	r.Get("/json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"not a capabilities document"}`))
	})
	r.Get("/wrong", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(wfsCapabilities))
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func newTestOptions(t *testing.T, extra ...Option) []Option {
	t.Helper()
	f, err := fetch.New(fetch.WithTimeout(5*time.Second), fetch.WithAccept(AcceptXML))
	require.NoError(t, err)
	c, err := cache.New(cache.NewMemoryStore(), cache.Config{Expiry: time.Hour})
	require.NoError(t, err)
	return append([]Option{WithFetcher(f), WithCache(c)}, extra...)
}

func TestEndpoint_Services(t *testing.T) {
	ctx := context.Background()
	srv := newTestService(t)

	tests := []struct {
		service string
		title   string
		layers  []string
		formats []string
	}{
		{ServiceWMS, "Hydrography", []string{"lakes", "rivers", "rivers_major"}, []string{"image/png", "image/jpeg"}},
		{"wfs", "Buildings", []string{"ns:buildings", "ns:parcels"}, []string{"application/gml+xml; version=3.2", "application/json"}},
		{ServiceWMTS, "Basemap tiles", []string{"ortho", "plan"}, []string{"image/jpeg", "image/png"}},
	}
	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			ep := NewEndpoint(srv.URL+"/ows", tt.service, newTestOptions(t)...)
			_, err := ep.IsReady(ctx)
			require.NoError(t, err)
			assert.Equal(t, strings.ToUpper(tt.service), ep.Service())

			info, err := ep.ServiceInfo(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.title, info.Title)

			names, err := ep.LayerNames(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.layers, names)

			formats, err := ep.OutputFormats(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.formats, formats)
		})
	}
}

func TestEndpoint_Version(t *testing.T) {
	ctx := context.Background()
	srv := newTestService(t)

	ep := NewEndpoint(srv.URL+"/ows", ServiceWMS, newTestOptions(t, WithVersion("1.3.0"))...)
	version, err := ep.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", version)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"1.3.0"}, srv.versions)
}

func TestEndpoint_PoolRunner(t *testing.T) {
	ctx := context.Background()
	srv := newTestService(t)

	reg := worker.NewRegistry()
	RegisterTasks(reg)
	pool := worker.NewPoolRunner(reg, 2)
	t.Cleanup(func() { pool.Close() })

	ep := NewEndpoint(srv.URL+"/ows", ServiceWFS, newTestOptions(t, WithRunner(pool))...)
	names, err := ep.LayerNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ns:buildings", "ns:parcels"}, names)
}

func TestEndpoint_SharedRequests(t *testing.T) {
	ctx := context.Background()
	srv := newTestService(t)
	opts := newTestOptions(t)

	var endpoints []*Endpoint
	for i := 0; i < 5; i++ {
		endpoints = append(endpoints, NewEndpoint(srv.URL+"/ows", ServiceWMS, opts...))
	}
	for _, ep := range endpoints {
		_, err := ep.IsReady(ctx)
		require.NoError(t, err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, 1, srv.hits)
}

func TestEndpoint_Errors(t *testing.T) {
	ctx := context.Background()
	srv := newTestService(t)

	t.Run("exception report", func(t *testing.T) {
		_, err := NewEndpoint(srv.URL+"/exception", ServiceWMS, newTestOptions(t)...).IsReady(ctx)
		var excErr *ogcerr.ServiceExceptionError
		require.ErrorAs(t, err, &excErr)
		assert.Equal(t, "LayerNotDefined", excErr.Code)
		assert.Contains(t, excErr.RequestURL, "REQUEST=GetCapabilities")
	})

	t.Run("exception report with error status", func(t *testing.T) {
		_, err := NewEndpoint(srv.URL+"/broken", ServiceWFS, newTestOptions(t)...).IsReady(ctx)
		var excErr *ogcerr.ServiceExceptionError
		require.ErrorAs(t, err, &excErr)
		assert.Equal(t, "InvalidParameterValue", excErr.Code)
	})

	t.Run("json document", func(t *testing.T) {
		_, err := NewEndpoint(srv.URL+"/json", ServiceWMS, newTestOptions(t)...).IsReady(ctx)
		var formatErr *ogcerr.DocumentFormatError
		assert.ErrorAs(t, err, &formatErr)
	})

	t.Run("service mismatch", func(t *testing.T) {
		_, err := NewEndpoint(srv.URL+"/wrong", ServiceWMS, newTestOptions(t)...).IsReady(ctx)
		assert.ErrorContains(t, err, "answered with WFS capabilities")
	})

	t.Run("unsupported service", func(t *testing.T) {
		_, err := NewEndpoint(srv.URL+"/ows", "WCS", newTestOptions(t)...).IsReady(ctx)
		assert.ErrorContains(t, err, `unsupported service "WCS"`)
	})
}
