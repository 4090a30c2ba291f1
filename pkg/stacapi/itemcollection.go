package stacapi

import (
	"strings"

	stac "github.com/planetlabs/go-stac"
)

// ItemCollection represents a STAC ItemCollection response.
type ItemCollection struct {
	Type    string         `json:"type"`
	Items   []*stac.Item   `json:"features"`
	Links   []*stac.Link   `json:"links,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// NextLink returns the rel="next" link if present.
func (c *ItemCollection) NextLink() *stac.Link {
	if c == nil {
		return nil
	}
	for _, link := range c.Links {
		if link == nil {
			continue
		}
		if strings.EqualFold(link.Rel, "next") {
			return link
		}
	}
	return nil
}

// collectionList is one page of the /collections response.
type collectionList struct {
	Collections []*stac.Collection `json:"collections"`
	Links       []*stac.Link       `json:"links,omitempty"`
}

func (l *collectionList) nextHref() string {
	for _, link := range l.Links {
		if link != nil && strings.EqualFold(link.Rel, "next") {
			return link.Href
		}
	}
	return ""
}
