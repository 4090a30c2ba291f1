package formatting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcapi"
)

// FormatCollectionInfo renders the metadata of an OGC API collection.
func FormatCollectionInfo(info *ogcapi.CollectionInfo) string {
	if info == nil {
		return ""
	}
	var b detailBuilder
	b.field("Title", info.Title)
	b.field("ID", info.ID)
	b.field("Kind", info.Kind.String())
	b.field("Item type", info.ItemType)
	b.field("Description", info.Description)
	b.list("Keywords", info.Keywords)
	b.field("Storage CRS", info.StorageCRS)
	b.list("CRS", info.CRS)

	if len(info.BBox) > 0 || len(info.Intervals) > 0 {
		b.section("Extent")
		if len(info.BBox) > 0 {
			fmt.Fprintf(&b, "  Spatial bbox: %s\n", formatFloatSlice(info.BBox))
		}
		for i, interval := range info.Intervals {
			label := "  Temporal interval"
			if len(info.Intervals) > 1 {
				label = fmt.Sprintf("%s %d", label, i+1)
			}
			fmt.Fprintf(&b, "%s: %s\n", label, formatInterval(interval))
		}
	}

	b.list("Item formats", info.ItemFormats)
	b.field("Items", info.ItemsURL)
	b.field("Queryables", info.QueryablesURL)
	b.field("URL", info.URL)
	return b.text()
}

func formatInterval(interval ogcapi.TimeInterval) string {
	bound := func(t *time.Time) string {
		if t == nil {
			return ".."
		}
		return t.UTC().Format(time.RFC3339)
	}
	return bound(interval.Start) + " / " + bound(interval.End)
}

// FormatSTACCollection renders a STAC collection.
func FormatSTACCollection(col *stac.Collection) string {
	if col == nil {
		return ""
	}
	var b detailBuilder
	b.field("Title", col.Title)
	b.field("ID", col.Id)
	b.field("Version", col.Version)
	b.field("Description", col.Description)
	b.field("License", col.License)
	b.list("Keywords", col.Keywords)

	if len(col.Providers) > 0 {
		b.section("Providers")
		for _, provider := range col.Providers {
			if provider == nil {
				continue
			}
			fmt.Fprintf(&b, "  - %s", provider.Name)
			if len(provider.Roles) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(provider.Roles, ", "))
			}
			b.WriteByte('\n')
		}
	}

	if col.Extent != nil {
		b.section("Extent")
		if col.Extent.Spatial != nil {
			for i, bbox := range col.Extent.Spatial.Bbox {
				label := "  Spatial bbox"
				if len(col.Extent.Spatial.Bbox) > 1 {
					label = fmt.Sprintf("%s %d", label, i+1)
				}
				fmt.Fprintf(&b, "%s: %s\n", label, formatFloatSlice(bbox))
			}
		}
		if col.Extent.Temporal != nil {
			for i, interval := range col.Extent.Temporal.Interval {
				label := "  Temporal interval"
				if len(col.Extent.Temporal.Interval) > 1 {
					label = fmt.Sprintf("%s %d", label, i+1)
				}
				fmt.Fprintf(&b, "%s: %s\n", label, formatTemporalInterval(interval))
			}
		}
	}

	writeLinks(&b, col.Links)
	return b.text()
}

func writeLinks(b *detailBuilder, links []*stac.Link) {
	if len(links) == 0 {
		return
	}
	b.section("Links")
	for _, link := range links {
		if link == nil {
			continue
		}
		rel := link.Rel
		if rel == "" {
			rel = "(unknown)"
		}
		fmt.Fprintf(b, "  - %s -> %s\n", rel, link.Href)
		if link.Type != "" {
			fmt.Fprintf(b, "    Type: %s\n", link.Type)
		}
	}
}

func formatTemporalInterval(interval []any) string {
	if len(interval) == 0 {
		return "[]"
	}
	data, err := json.Marshal(interval)
	if err != nil {
		return fmt.Sprintf("%v", interval)
	}
	return string(data)
}
