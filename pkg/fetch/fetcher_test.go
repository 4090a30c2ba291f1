package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
)

func newTestServer(t *testing.T, setup func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	setup(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	f, err := New(opts...)
	require.NoError(t, err)
	return f
}

func TestFetchDocument_SingleFlight(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	server := newTestServer(t, func(r chi.Router) {
		r.Get("/collections", func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			started <- struct{}{}
			<-release
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"collections": []}`))
		})
	})
	f := newTestFetcher(t)

	var wg sync.WaitGroup
	results := make([]*Result, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.FetchDocument(context.Background(), server.URL+"/collections", http.MethodGet)
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, hits.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, KindJSON, results[0].Kind)
}

func TestFetchDocument_RefetchAfterFailure(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("try again later"))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"links": []}`))
		})
	})
	f := newTestFetcher(t)

	_, err := f.FetchDocument(context.Background(), server.URL+"/", "")
	var httpErr *ogcerr.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.HTTPStatus())
	assert.Equal(t, "try again later", httpErr.Body)
	assert.False(t, httpErr.IsCrossOriginRelated())

	res, err := f.FetchDocument(context.Background(), server.URL+"/", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.EqualValues(t, 2, hits.Load())
}

func TestFetchDocument_ContentValidation(t *testing.T) {
	server := newTestServer(t, func(r chi.Router) {
		r.Get("/bad.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"links": [`))
		})
		r.Get("/bad.xml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/xml")
			w.Write([]byte(`<Capabilities><Service></Capabilities>`))
		})
		r.Get("/good.xml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(`<Capabilities version="1.3.0"/>`))
		})
		r.Get("/sniffed", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("  \n[1, 2]"))
		})
	})
	f := newTestFetcher(t)
	ctx := context.Background()

	t.Run("malformed json", func(t *testing.T) {
		_, err := f.FetchDocument(ctx, server.URL+"/bad.json", "")
		var formatErr *ogcerr.DocumentFormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, "application/json", formatErr.ContentType)
	})

	t.Run("malformed xml", func(t *testing.T) {
		_, err := f.FetchDocument(ctx, server.URL+"/bad.xml", "")
		var formatErr *ogcerr.DocumentFormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, err.Error(), "XML syntax error")
		assert.Contains(t, err.Error(), "element <Service> closed by </Capabilities>")
	})

	t.Run("xml", func(t *testing.T) {
		res, err := f.FetchDocument(ctx, server.URL+"/good.xml", "")
		require.NoError(t, err)
		assert.Equal(t, KindXML, res.Kind)
		require.NotNil(t, res.XML)

		var v any
		assert.Error(t, res.DecodeJSON(&v))
	})

	t.Run("json sniffed from body", func(t *testing.T) {
		res, err := f.FetchDocument(ctx, server.URL+"/sniffed", "")
		require.NoError(t, err)
		assert.Equal(t, KindJSON, res.Kind)

		var v []int
		require.NoError(t, res.DecodeJSON(&v))
		assert.Equal(t, []int{1, 2}, v)
	})
}

func TestFetchDocument_Headers(t *testing.T) {
	server := newTestServer(t, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json,application/schema+json", r.Header.Get("Accept"))
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Write([]byte(`{}`))
		})
	})
	f := newTestFetcher(t, WithUserAgent("test-agent"))

	_, err := f.FetchDocument(context.Background(), server.URL+"/", http.MethodGet)
	require.NoError(t, err)
}

func TestFetchDocument_CorsClassification(t *testing.T) {
	t.Run("probe succeeds", func(t *testing.T) {
		server := newTestServer(t, func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				hj, ok := w.(http.Hijacker)
				require.True(t, ok)
				conn, _, err := hj.Hijack()
				require.NoError(t, err)
				conn.Close()
			})
			r.Head("/", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		})
		f := newTestFetcher(t)

		_, err := f.FetchDocument(context.Background(), server.URL+"/", "")
		var corsErr *ogcerr.CorsError
		require.ErrorAs(t, err, &corsErr)

		var epErr ogcerr.EndpointError
		require.ErrorAs(t, err, &epErr)
		assert.Equal(t, 0, epErr.HTTPStatus())
		assert.True(t, epErr.IsCrossOriginRelated())
	})

	t.Run("probe fails", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		deadURL := server.URL + "/"
		server.Close()

		f := newTestFetcher(t)
		_, err := f.FetchDocument(context.Background(), deadURL, "")
		var netErr *ogcerr.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 0, netErr.HTTPStatus())
		assert.False(t, netErr.IsCrossOriginRelated())
	})
}

func TestFetchDocument_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	server := newTestServer(t, func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}
			w.Write([]byte(`{}`))
		})
	})
	defer close(release)
	f := newTestFetcher(t, WithRequestTimeout(100*time.Millisecond))

	_, err := f.FetchDocument(context.Background(), server.URL+"/slow", "")
	require.True(t, errors.Is(err, ErrRequestTimeout))

	res, err := f.FetchDocument(context.Background(), server.URL+"/slow", "")
	require.NoError(t, err)
	assert.Equal(t, KindJSON, res.Kind)
}

func TestFetchDocument_InvalidInput(t *testing.T) {
	f := newTestFetcher(t)
	_, err := f.FetchDocument(context.Background(), "/relative/path", "")
	assert.Error(t, err)

	_, err = f.FetchDocument(context.Background(), "http://example.com", http.MethodPost)
	assert.Error(t, err)

	_, err = New(WithHTTPClient(nil))
	assert.ErrorIs(t, err, ErrNilHTTPClient)
}

func TestWithHTTPClient_LeavesCallerClientAlone(t *testing.T) {
	base := &http.Transport{}
	client := &http.Client{Timeout: time.Minute, Transport: base}

	var wrapped http.RoundTripper
	f, err := New(
		WithHTTPClient(client),
		WithTimeout(5*time.Second),
		WithTransport(func(next http.RoundTripper) http.RoundTripper {
			wrapped = next
			return http.DefaultTransport
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, client.Timeout)
	assert.Same(t, base, client.Transport)
	assert.Same(t, base, wrapped)
	assert.Equal(t, 5*time.Second, f.client.Timeout)
	assert.Equal(t, http.DefaultTransport, f.client.Transport)
}

func TestURLHelpers(t *testing.T) {
	t.Run("normalize", func(t *testing.T) {
		u, err := NormalizeURL("HTTP://Example.COM/Path?b=2&a=1#frag")
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/Path?b=2&a=1", u)
	})

	t.Run("case insensitive replacement", func(t *testing.T) {
		u, err := SetQueryParams("https://example.com/wms?service=wfs&Service=WCS&map=x", map[string]string{"SERVICE": "WMS"})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/wms?SERVICE=WMS&map=x", u)
	})

	t.Run("capabilities", func(t *testing.T) {
		u, err := CapabilitiesURL("https://example.com/ows?request=GetMap&version=1.1.1", "wms", "1.3.0")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/ows?REQUEST=GetCapabilities&SERVICE=WMS&VERSION=1.3.0", u)
	})
}
