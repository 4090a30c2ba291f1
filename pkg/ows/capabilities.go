package ows

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-ogc-client/pkg/xmlutil"
)

// Supported service types.
const (
	ServiceWMS  = "WMS"
	ServiceWFS  = "WFS"
	ServiceWMTS = "WMTS"
)

// LayerSummary is a named layer or feature type.
type LayerSummary struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Capabilities is the service-independent part of a GetCapabilities
// document.
type Capabilities struct {
	Service       string         `json:"service"`
	Version       string         `json:"version"`
	Title         string         `json:"title,omitempty"`
	Abstract      string         `json:"abstract,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
	Layers        []LayerSummary `json:"layers,omitempty"`
	OutputFormats []string       `json:"outputFormats,omitempty"`
}

// ParseCapabilities maps a WMS, WFS or WMTS capabilities document. It only
// reads doc.
func ParseCapabilities(doc *xmlutil.Document) (*Capabilities, error) {
	root := xmlutil.RootElement(doc)
	if root == nil {
		return nil, fmt.Errorf("ows: empty capabilities document")
	}
	caps := &Capabilities{Version: xmlutil.GetElementAttribute(root, "version")}

	switch name := xmlutil.GetRootElementLocalName(doc); name {
	case "WMS_Capabilities", "WMT_MS_Capabilities":
		caps.Service = ServiceWMS
		parseWMS(root, caps)
	case "WFS_Capabilities":
		caps.Service = ServiceWFS
		parseWFS(root, caps)
	case "Capabilities":
		caps.Service = ServiceWMTS
		parseWMTS(root, caps)
	default:
		return nil, fmt.Errorf("ows: unsupported capabilities document %q", name)
	}
	return caps, nil
}

func parseWMS(root *xmlutil.Element, caps *Capabilities) {
	service := xmlutil.FindChildElement(root, "Service", false)
	caps.Title = childText(service, "Title")
	caps.Abstract = childText(service, "Abstract")
	for _, kw := range xmlutil.FindChildrenElement(xmlutil.FindChildElement(service, "KeywordList", false), "Keyword", false) {
		caps.Keywords = appendText(caps.Keywords, kw)
	}

	capability := xmlutil.FindChildElement(root, "Capability", false)
	for _, layer := range xmlutil.FindChildrenElement(capability, "Layer", true) {
		name := childText(layer, "Name")
		if name == "" {
			continue
		}
		caps.Layers = append(caps.Layers, LayerSummary{Name: name, Title: childText(layer, "Title")})
	}

	getMap := xmlutil.FindChildElement(xmlutil.FindChildElement(capability, "Request", false), "GetMap", false)
	for _, format := range xmlutil.FindChildrenElement(getMap, "Format", false) {
		caps.OutputFormats = appendUnique(caps.OutputFormats, format)
	}
}

func parseWFS(root *xmlutil.Element, caps *Capabilities) {
	parseServiceIdentification(root, caps)
	if caps.Title == "" {
		// WFS 1.0.0
		service := xmlutil.FindChildElement(root, "Service", false)
		caps.Title = childText(service, "Title")
		caps.Abstract = childText(service, "Abstract")
	}

	list := xmlutil.FindChildElement(root, "FeatureTypeList", false)
	for _, ft := range xmlutil.FindChildrenElement(list, "FeatureType", false) {
		caps.Layers = append(caps.Layers, LayerSummary{Name: childText(ft, "Name"), Title: childText(ft, "Title")})
	}

	for _, op := range xmlutil.FindChildrenElement(xmlutil.FindChildElement(root, "OperationsMetadata", false), "Operation", false) {
		if xmlutil.GetElementAttribute(op, "name") != "GetFeature" {
			continue
		}
		for _, param := range xmlutil.FindChildrenElement(op, "Parameter", false) {
			if !strings.EqualFold(xmlutil.GetElementAttribute(param, "name"), "outputFormat") {
				continue
			}
			for _, value := range xmlutil.FindChildrenElement(param, "Value", true) {
				caps.OutputFormats = appendUnique(caps.OutputFormats, value)
			}
		}
	}
}

func parseWMTS(root *xmlutil.Element, caps *Capabilities) {
	parseServiceIdentification(root, caps)

	contents := xmlutil.FindChildElement(root, "Contents", false)
	for _, layer := range xmlutil.FindChildrenElement(contents, "Layer", false) {
		caps.Layers = append(caps.Layers, LayerSummary{
			Name:  childText(layer, "Identifier"),
			Title: childText(layer, "Title"),
		})
		for _, format := range xmlutil.FindChildrenElement(layer, "Format", false) {
			caps.OutputFormats = appendUnique(caps.OutputFormats, format)
		}
	}
}

// parseServiceIdentification reads the OWS common service block.
func parseServiceIdentification(root *xmlutil.Element, caps *Capabilities) {
	ident := xmlutil.FindChildElement(root, "ServiceIdentification", false)
	if ident == nil {
		return
	}
	caps.Title = childText(ident, "Title")
	caps.Abstract = childText(ident, "Abstract")
	for _, keywords := range xmlutil.FindChildrenElement(ident, "Keywords", false) {
		for _, kw := range xmlutil.FindChildrenElement(keywords, "Keyword", false) {
			caps.Keywords = appendText(caps.Keywords, kw)
		}
	}
}

func childText(el *xmlutil.Element, name string) string {
	return strings.TrimSpace(xmlutil.GetElementText(xmlutil.FindChildElement(el, name, false)))
}

func appendText(values []string, el *xmlutil.Element) []string {
	if text := strings.TrimSpace(xmlutil.GetElementText(el)); text != "" {
		return append(values, text)
	}
	return values
}

func appendUnique(values []string, el *xmlutil.Element) []string {
	text := strings.TrimSpace(xmlutil.GetElementText(el))
	if text == "" || slices.Contains(values, text) {
		return values
	}
	return append(values, text)
}
