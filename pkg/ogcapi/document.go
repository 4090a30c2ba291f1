package ogcapi

import (
	"encoding/json"
	"fmt"
)

// Link represents an OGC API link with support for additional fields.
type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`

	// AdditionalFields holds foreign members (e.g., "hreflang", "templated").
	AdditionalFields map[string]any `json:"-"`
}

var knownLinkFields = map[string]bool{
	"href": true, "rel": true, "type": true, "title": true,
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (link *Link) UnmarshalJSON(data []byte) error {
	type linkAlias Link
	var aux linkAlias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*link = Link(aux)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, val := range raw {
		if knownLinkFields[key] {
			continue
		}
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			continue
		}
		if link.AdditionalFields == nil {
			link.AdditionalFields = make(map[string]any)
		}
		link.AdditionalFields[key] = decoded
	}

	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (link Link) MarshalJSON() ([]byte, error) {
	type linkAlias Link
	return marshalWithExtras(linkAlias(link), link.AdditionalFields)
}

// Document is any JSON document exposing links: a landing page, a
// conformance declaration, a collection or a collection list. Members other
// than "links" are kept raw and decoded on demand.
type Document struct {
	Links []*Link `json:"links"`

	AdditionalFields map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture foreign members.
func (doc *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*doc = Document{}
	if links, ok := raw["links"]; ok {
		if err := json.Unmarshal(links, &doc.Links); err != nil {
			return fmt.Errorf("invalid links: %w", err)
		}
		delete(raw, "links")
	}
	if len(raw) > 0 {
		doc.AdditionalFields = raw
	}
	return nil
}

// MarshalJSON implements custom marshaling to include foreign members.
func (doc Document) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(doc.AdditionalFields)+1)
	for key, val := range doc.AdditionalFields {
		obj[key] = val
	}
	links := doc.Links
	if links == nil {
		links = []*Link{}
	}
	encoded, err := json.Marshal(links)
	if err != nil {
		return nil, err
	}
	obj["links"] = encoded
	return json.Marshal(obj)
}

// HasField reports whether the document carries the member name.
func (doc *Document) HasField(name string) bool {
	if doc == nil {
		return false
	}
	_, ok := doc.AdditionalFields[name]
	return ok
}

// Decode unmarshals the member name into v. A missing member leaves v
// untouched and returns false.
func (doc *Document) Decode(name string, v any) (bool, error) {
	if doc == nil {
		return false, nil
	}
	raw, ok := doc.AdditionalFields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("error decoding %q: %w", name, err)
	}
	return true, nil
}

// String returns a string member, or "" when absent or not a string.
func (doc *Document) String(name string) string {
	var s string
	if _, err := doc.Decode(name, &s); err != nil {
		return ""
	}
	return s
}

// Resource is a fetched document together with the URL it was read from.
type Resource struct {
	URL      string    `json:"url"`
	Document *Document `json:"document"`
}

func marshalWithExtras(v any, extras map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extras) == 0 {
		return data, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for key, val := range extras {
		if _, known := obj[key]; known {
			continue
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		obj[key] = encoded
	}
	return json.Marshal(obj)
}
