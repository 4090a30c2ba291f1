package ogcapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
)

const relPrefix = "http://www.opengis.net/def/rel/ogc/1.0/"

// Rel is a link relation together with its synonyms. A link matches when its
// rel equals any of them.
type Rel []string

func ogcRel(name string) Rel {
	return Rel{name, relPrefix + name}
}

var (
	RelData        = ogcRel("data")
	RelConformance = ogcRel("conformance")
	RelItems       = Rel{"items"}
	RelSelf        = Rel{"self"}
	RelRoot        = Rel{"root"}
	RelServiceDesc = Rel{"service-desc"}
	RelQueryables  = ogcRel("queryables")
	RelCoverage    = ogcRel("coverage")
	RelStyles      = ogcRel("styles")
	RelTilesets    = Rel{
		relPrefix + "tilesets-vector",
		relPrefix + "tilesets-map",
		"tilesets-vector",
		"tilesets-map",
		"tiles",
	}
)

func (r Rel) matches(rel string) bool {
	for _, candidate := range r {
		if candidate == rel {
			return true
		}
	}
	return false
}

// DocumentFetcher fetches one document. *fetch.Fetcher implements it.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, rawURL, method string) (*fetch.Result, error)
}

// GetLinks returns the links of doc matching rel and, if not empty,
// mimeType. With assertPresence an empty result is a *ogcerr.LinkNotFoundError.
func GetLinks(doc *Document, rel Rel, mimeType string, assertPresence bool) ([]*Link, error) {
	var links []*Link
	if doc != nil {
		for _, link := range doc.Links {
			if link == nil || !rel.matches(link.Rel) {
				continue
			}
			if mimeType != "" && link.Type != mimeType {
				continue
			}
			links = append(links, link)
		}
	}
	if len(links) == 0 && assertPresence {
		return nil, &ogcerr.LinkNotFoundError{Rels: rel, MimeType: mimeType}
	}
	return links, nil
}

// HasLinks reports whether doc has at least one link for every rel given.
func HasLinks(doc *Document, rels ...Rel) bool {
	for _, rel := range rels {
		links, _ := GetLinks(doc, rel, "", false)
		if len(links) == 0 {
			return false
		}
	}
	return true
}

// GetLinkURL resolves the href of the first link matching rel and mimeType
// against baseURL. It returns "" when nothing matches and assertPresence is
// false.
func GetLinkURL(doc *Document, rel Rel, baseURL, mimeType string, assertPresence bool) (string, error) {
	links, err := GetLinks(doc, rel, mimeType, assertPresence)
	if err != nil || len(links) == 0 {
		return "", err
	}
	return ResolveHref(links[0].Href, baseURL)
}

// ResolveHref resolves href against base. Absolute hrefs are returned as is.
func ResolveHref(href, base string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("error parsing href %q: %w", href, err)
	}
	if ref.IsAbs() || base == "" {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("error parsing base URL %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// FetchLink fetches the document behind the first link of doc matching rel.
// JSON links are preferred when several match.
func FetchLink(ctx context.Context, f DocumentFetcher, doc *Document, rel Rel, baseURL string) (*Resource, error) {
	links, err := GetLinks(doc, rel, "", true)
	if err != nil {
		return nil, err
	}
	link := preferJSON(links)
	target, err := ResolveHref(link.Href, baseURL)
	if err != nil {
		return nil, err
	}
	return fetchResource(ctx, f, target)
}

func preferJSON(links []*Link) *Link {
	for _, link := range links {
		if strings.Contains(link.Type, "json") {
			return link
		}
	}
	return links[0]
}

// fetchResource fetches rawURL and decodes it as a JSON document.
func fetchResource(ctx context.Context, f DocumentFetcher, rawURL string) (*Resource, error) {
	res, err := f.FetchDocument(ctx, rawURL, http.MethodGet)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	if err := res.DecodeJSON(doc); err != nil {
		return nil, err
	}
	return &Resource{URL: res.URL, Document: doc}, nil
}
