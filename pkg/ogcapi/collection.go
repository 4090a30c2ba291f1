package ogcapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
)

// CollectionKind tells which API a collection document belongs to.
type CollectionKind int

const (
	KindUnknown CollectionKind = iota
	KindFeatures
	KindRecords
	KindCoverage
	KindEDR
	KindSTAC
)

func (k CollectionKind) String() string {
	switch k {
	case KindFeatures:
		return "features"
	case KindRecords:
		return "records"
	case KindCoverage:
		return "coverage"
	case KindEDR:
		return "edr"
	case KindSTAC:
		return "stac"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k CollectionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseCollectionKind is the inverse of CollectionKind.String.
func ParseCollectionKind(s string) (CollectionKind, error) {
	for k := KindUnknown; k <= KindSTAC; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown collection kind %q", s)
}

// Keywords accepts both plain strings and {"keyword": ...} objects.
type Keywords []string

func (kw *Keywords) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(Keywords, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Keyword string `json:"keyword"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Keyword != "" {
			out = append(out, obj.Keyword)
		}
	}
	*kw = out
	return nil
}

// Extent is the spatial and temporal extent of a collection.
type Extent struct {
	Spatial *struct {
		BBox [][]float64 `json:"bbox"`
		CRS  string      `json:"crs,omitempty"`
	} `json:"spatial,omitempty"`
	Temporal *struct {
		Interval [][]*string `json:"interval"`
		TRS      string      `json:"trs,omitempty"`
	} `json:"temporal,omitempty"`
}

// Collection is a collection document as served by OGC API Features,
// Records, Coverages, EDR or a STAC API.
type Collection struct {
	ID          string                     `json:"id"`
	Type        string                     `json:"type,omitempty"`
	Title       string                     `json:"title,omitempty"`
	Description string                     `json:"description,omitempty"`
	ItemType    string                     `json:"itemType,omitempty"`
	Keywords    Keywords                   `json:"keywords,omitempty"`
	CRS         []string                   `json:"crs,omitempty"`
	StorageCRS  string                     `json:"storageCrs,omitempty"`
	Extent      *Extent                    `json:"extent,omitempty"`
	DataQueries map[string]json.RawMessage `json:"data_queries,omitempty"`
	STACVersion string                     `json:"stac_version,omitempty"`
	Links       []*Link                    `json:"links"`

	// Kind is derived from the other members on decode.
	Kind CollectionKind `json:"-"`
}

// UnmarshalJSON decodes the collection and classifies it.
func (c *Collection) UnmarshalJSON(data []byte) error {
	type collectionAlias Collection
	var aux collectionAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Collection(aux)
	c.Kind = classify(c)
	return nil
}

func classify(c *Collection) CollectionKind {
	doc := &Document{Links: c.Links}
	switch {
	case c.DataQueries != nil:
		return KindEDR
	case c.STACVersion != "" || c.Type == "Collection":
		return KindSTAC
	case strings.EqualFold(c.ItemType, "record"):
		return KindRecords
	case strings.EqualFold(c.ItemType, "feature") || HasLinks(doc, RelItems):
		return KindFeatures
	case HasLinks(doc, RelCoverage):
		return KindCoverage
	default:
		return KindUnknown
	}
}

// Bounds returns the first bounding box of the spatial extent, or nil.
// Six-value boxes yield XYZ bounds.
func (c *Collection) Bounds() *geom.Bounds {
	if c.Extent == nil || c.Extent.Spatial == nil || len(c.Extent.Spatial.BBox) == 0 {
		return nil
	}
	bbox := c.Extent.Spatial.BBox[0]
	switch len(bbox) {
	case 4:
		return geom.NewBounds(geom.XY).Set(bbox[0], bbox[1], bbox[2], bbox[3])
	case 6:
		return geom.NewBounds(geom.XYZ).Set(bbox[0], bbox[1], bbox[2], bbox[3], bbox[4], bbox[5])
	default:
		return nil
	}
}

// TimeInterval is a temporal extent. A nil bound is open.
type TimeInterval struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Intervals returns the temporal extent. Unparseable bounds are treated as
// open.
func (c *Collection) Intervals() []TimeInterval {
	if c.Extent == nil || c.Extent.Temporal == nil {
		return nil
	}
	var out []TimeInterval
	for _, interval := range c.Extent.Temporal.Interval {
		if len(interval) != 2 {
			continue
		}
		out = append(out, TimeInterval{Start: parseTime(interval[0]), End: parseTime(interval[1])})
	}
	return out
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" || *s == ".." {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

// DataQuery is one query type an EDR collection supports.
type DataQuery struct {
	Name          string   `json:"name"`
	Href          string   `json:"href"`
	Title         string   `json:"title,omitempty"`
	QueryType     string   `json:"queryType,omitempty"`
	OutputFormats []string `json:"outputFormats,omitempty"`
}

// QueryNames returns the sorted names of the EDR data queries.
func (c *Collection) QueryNames() []string {
	names := make([]string, 0, len(c.DataQueries))
	for name := range c.DataQueries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queries decodes the EDR data queries, sorted by name.
func (c *Collection) Queries() ([]DataQuery, error) {
	var out []DataQuery
	for _, name := range c.QueryNames() {
		var q struct {
			Link struct {
				Href      string `json:"href"`
				Title     string `json:"title"`
				Variables struct {
					QueryType     string   `json:"query_type"`
					OutputFormats []string `json:"output_formats"`
				} `json:"variables"`
			} `json:"link"`
		}
		if err := json.Unmarshal(c.DataQueries[name], &q); err != nil {
			return nil, fmt.Errorf("error decoding data query %q: %w", name, err)
		}
		out = append(out, DataQuery{
			Name:          name,
			Href:          q.Link.Href,
			Title:         q.Link.Title,
			QueryType:     q.Link.Variables.QueryType,
			OutputFormats: q.Link.Variables.OutputFormats,
		})
	}
	return out, nil
}
