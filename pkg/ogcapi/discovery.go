package ogcapi

import (
	"context"
	"net/url"
	"strings"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
)

// MaxDepth bounds the number of parent-path hops taken while looking for a
// root or collection document.
const MaxDepth = 10

// FetchRoot returns the API landing page for rawURL: the first document,
// walking up the path from rawURL, that exposes both a data and a
// conformance link.
func FetchRoot(ctx context.Context, f DocumentFetcher, rawURL string) (*Resource, error) {
	current := rawURL
	for depth := 0; depth < MaxDepth; depth++ {
		res, err := fetchResource(ctx, f, current)
		if err != nil {
			return nil, err
		}
		if HasLinks(res.Document, RelData, RelConformance) {
			return res, nil
		}
		parent, ok := GetParentPath(current)
		if !ok {
			return nil, &ogcerr.RootNotFoundError{URL: rawURL}
		}
		current = parent
	}
	return nil, &ogcerr.DepthExceededError{URL: rawURL, MaxDepth: MaxDepth}
}

// FetchCollectionRoot returns the collection document for rawURL, which may
// point at the collection itself or at one of its sub-resources. It returns
// nil when rawURL belongs to a service root rather than a collection.
func FetchCollectionRoot(ctx context.Context, f DocumentFetcher, rawURL string) (*Resource, error) {
	current := rawURL
	for depth := 0; depth < MaxDepth; depth++ {
		res, err := fetchResource(ctx, f, current)
		if err != nil {
			return nil, err
		}
		if HasLinks(res.Document, RelData) {
			return nil, nil
		}
		if HasLinks(res.Document, RelItems) {
			return res, nil
		}
		parent, ok := GetParentPath(current)
		if !ok {
			return nil, nil
		}
		// Collection listings are served at directory-like paths.
		if res.Document.HasField("collections") {
			parent = withTrailingSlash(parent)
		}
		current = parent
	}
	return nil, &ogcerr.DepthExceededError{URL: rawURL, MaxDepth: MaxDepth}
}

// GetParentPath removes the last path segment of rawURL, after dropping a
// trailing slash. When only one segment remains the result keeps a trailing
// slash. The query string is preserved, the fragment dropped. It returns
// false when no segment can be removed.
//
//	http://example.com/foo/bar/baz  -> http://example.com/foo/bar
//	http://example.com/foo/bar?a=b  -> http://example.com/foo/?a=b
//	http://example.com/foo/         -> http://example.com/
//	http://example.com/foo          -> false
func GetParentPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	parts := strings.Split(path, "/")
	if len(parts) <= 2 {
		return "", false
	}
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	parts = parts[:len(parts)-1]

	parent := strings.Join(parts, "/")
	if len(parts) == 2 {
		parent += "/"
	}
	if parent == "" {
		parent = "/"
	}

	out := *u
	out.Fragment = ""
	out.RawFragment = ""
	if err := setEscapedPath(&out, parent); err != nil {
		return "", false
	}
	return out.String(), true
}

func setEscapedPath(u *url.URL, escaped string) error {
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return err
	}
	u.Path = unescaped
	u.RawPath = escaped
	return nil
}

func withTrailingSlash(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || strings.HasSuffix(u.Path, "/") {
		return rawURL
	}
	u.Path += "/"
	if u.RawPath != "" {
		u.RawPath += "/"
	}
	return u.String()
}
