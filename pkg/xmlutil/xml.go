// Package xmlutil parses capability documents into navigable element trees.
//
// Lookups are namespace agnostic: a child named "wms:Layer" matches the local
// name "Layer". Every helper accepts a nil element and returns a zero value,
// so chains like
//
//	xmlutil.GetElementText(xmlutil.FindChildElement(service, "Title", false))
//
// never need intermediate nil checks.
package xmlutil

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Element is a node of a parsed document. Treat it as read-only.
type Element = etree.Element

// Document is an immutable parsed XML document.
type Document struct {
	tree     *etree.Document
	encoding string
}

// ParseError is returned for malformed markup or undecodable input.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "xmlutil: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes data according to DetectEncoding and builds the element tree.
func Parse(data []byte, contentType string) (*Document, error) {
	enc, name, err := DetectEncoding(data, contentType)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	text, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	tree := etree.NewDocument()
	// The input is UTF-8 at this point whatever the declaration says.
	tree.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := tree.ReadFromBytes(text); err != nil {
		if syntaxErr := syntaxError(text); syntaxErr != nil {
			err = syntaxErr
		}
		return nil, &ParseError{Err: err}
	}
	if tree.Root() == nil {
		return nil, &ParseError{Err: errors.New("document has no root element")}
	}
	return &Document{tree: tree, encoding: name}, nil
}

// syntaxError re-reads text with encoding/xml to recover the positioned
// message that etree reduces to "invalid XML format".
func syntaxError(text []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(text))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Encoding returns the label of the encoding the document was decoded from.
func (d *Document) Encoding() string {
	if d == nil {
		return ""
	}
	return d.encoding
}

// RootElement returns the document element.
func RootElement(doc *Document) *Element {
	if doc == nil || doc.tree == nil {
		return nil
	}
	return doc.tree.Root()
}

// StripNamespace returns the part of name after the first colon.
func StripNamespace(name string) string {
	if _, local, ok := strings.Cut(name, ":"); ok {
		return local
	}
	return name
}

// GetElementName returns the element name including its prefix, if any.
func GetElementName(el *Element) string {
	if el == nil {
		return ""
	}
	return el.FullTag()
}

// GetRootElementLocalName returns the root element name without prefix.
func GetRootElementLocalName(doc *Document) string {
	return StripNamespace(GetElementName(RootElement(doc)))
}

// FindChildrenElement returns the children of el whose local name is
// localName. When nested is set, every descendant is searched and the
// matches are returned in document order.
func FindChildrenElement(el *Element, localName string, nested bool) []*Element {
	if el == nil {
		return nil
	}
	var found []*Element
	for _, child := range el.ChildElements() {
		if StripNamespace(child.FullTag()) == localName {
			found = append(found, child)
		}
		if nested {
			found = append(found, FindChildrenElement(child, localName, true)...)
		}
	}
	return found
}

// FindChildElement returns the first match of FindChildrenElement, or nil.
func FindChildElement(el *Element, localName string, nested bool) *Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if StripNamespace(child.FullTag()) == localName {
			return child
		}
		if nested {
			if match := FindChildElement(child, localName, true); match != nil {
				return match
			}
		}
	}
	return nil
}

// GetElementText concatenates the direct text children of el.
func GetElementText(el *Element) string {
	if el == nil {
		return ""
	}
	var b strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

// GetElementAttribute returns the value of the attribute whose full name
// (prefix included, e.g. "xlink:href") is attrName, or "".
func GetElementAttribute(el *Element, attrName string) string {
	if el == nil {
		return ""
	}
	for _, attr := range el.Attr {
		if attr.FullKey() == attrName {
			return attr.Value
		}
	}
	return ""
}
