package ogcapi

import (
	"context"
	"fmt"
)

// EDRCollectionSummary is a collection summary with the EDR query types the
// collection supports.
type EDRCollectionSummary struct {
	CollectionSummary
	DataQueries []string `json:"dataQueries,omitempty"`
}

// EDREndpoint is an OGC API Environmental Data Retrieval service.
type EDREndpoint struct {
	*Endpoint
}

// NewEDREndpoint returns an EDREndpoint for rawURL. See NewEndpoint.
func NewEDREndpoint(rawURL string, opts ...Option) *EDREndpoint {
	return &EDREndpoint{Endpoint: NewEndpoint(rawURL, opts...)}
}

// IsReady waits for the endpoint to be ready and returns e.
func (e *EDREndpoint) IsReady(ctx context.Context) (*EDREndpoint, error) {
	if _, err := e.Endpoint.IsReady(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// AllCollections lists every collection together with its data queries.
func (e *EDREndpoint) AllCollections(ctx context.Context) ([]EDRCollectionSummary, error) {
	list, err := e.collections.Await(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EDRCollectionSummary, 0, len(list.Collections))
	for _, c := range list.Collections {
		summary := EDRCollectionSummary{
			CollectionSummary: CollectionSummary{
				ID:    c.ID,
				Title: c.Title,
				Kind:  c.Kind,
				URL:   collectionURL(list.URL, c),
			},
		}
		switch c.Kind {
		case KindEDR:
			summary.DataQueries = c.QueryNames()
		case KindFeatures, KindRecords, KindCoverage, KindSTAC, KindUnknown:
		default:
			return nil, fmt.Errorf("ogcapi: unhandled collection kind %d", c.Kind)
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetCollectionQueries returns the data queries of the collection id.
func (e *EDREndpoint) GetCollectionQueries(ctx context.Context, id string) ([]DataQuery, error) {
	c, target, err := e.GetCollectionDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	queries, err := c.Queries()
	if err != nil {
		return nil, err
	}
	for i := range queries {
		if queries[i].Href == "" {
			continue
		}
		if queries[i].Href, err = ResolveHref(queries[i].Href, target); err != nil {
			return nil, err
		}
	}
	return queries, nil
}
