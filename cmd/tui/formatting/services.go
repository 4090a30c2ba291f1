package formatting

import (
	"fmt"

	stac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcapi"
	"github.com/robert-malhotra/go-ogc-client/pkg/ows"
)

// FormatInfo renders the landing page summary of an OGC API or STAC service.
func FormatInfo(info *ogcapi.Info, conformance []string) string {
	if info == nil {
		return ""
	}
	var b detailBuilder
	b.field("Title", info.Title)
	b.field("Description", info.Description)
	b.field("Attribution", info.Attribution)
	if len(conformance) > 0 {
		b.section(fmt.Sprintf("Conformance (%d)", len(conformance)))
		for _, class := range conformance {
			fmt.Fprintf(&b, "  - %s\n", class)
		}
	}
	return b.text()
}

// FormatCapabilities renders the service part of a capabilities document.
func FormatCapabilities(caps *ows.Capabilities) string {
	if caps == nil {
		return ""
	}
	var b detailBuilder
	b.field("Service", caps.Service+" "+caps.Version)
	b.field("Title", caps.Title)
	b.field("Abstract", caps.Abstract)
	b.list("Keywords", caps.Keywords)
	b.list("Output formats", caps.OutputFormats)
	b.field("Layers", fmt.Sprint(len(caps.Layers)))
	return b.text()
}

// FormatLayer renders one layer of a capabilities document.
func FormatLayer(caps *ows.Capabilities, layer ows.LayerSummary) string {
	var b detailBuilder
	b.field("Name", layer.Name)
	b.field("Title", layer.Title)
	if caps != nil {
		b.field("Service", caps.Service+" "+caps.Version)
		b.list("Output formats", caps.OutputFormats)
	}
	return b.text()
}

// FormatItemSummary renders the headline properties of a STAC item.
func FormatItemSummary(item *stac.Item) string {
	if item == nil {
		return ""
	}
	var b detailBuilder
	b.field("ID", item.Id)
	b.field("Collection", item.Collection)
	for _, key := range []string{"datetime", "platform", "constellation"} {
		if value, ok := item.Properties[key].(string); ok {
			b.field(key, value)
		}
	}
	if len(item.Bbox) > 0 {
		b.field("BBox", formatFloatSlice(item.Bbox))
	}
	if len(item.Assets) > 0 {
		b.section("Assets")
		for _, key := range sortedKeys(item.Assets) {
			asset := item.Assets[key]
			if asset == nil {
				continue
			}
			fmt.Fprintf(&b, "  - %s", key)
			if asset.Type != "" {
				fmt.Fprintf(&b, " (%s)", asset.Type)
			}
			b.WriteByte('\n')
		}
	}
	writeLinks(&b, item.Links)
	return b.text()
}
