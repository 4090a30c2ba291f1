// Package ogcerr defines the errors surfaced by the discovery pipeline.
//
// Transport failures implement EndpointError so callers can tell recoverable
// network conditions apart from permanent server or protocol errors:
//
//	var epErr ogcerr.EndpointError
//	if errors.As(err, &epErr) && epErr.IsCrossOriginRelated() {
//	    // the server answered a probe but refused the actual request
//	}
package ogcerr

import (
	"fmt"
	"strings"
)

// EndpointError is implemented by every transport-level failure.
type EndpointError interface {
	error
	// HTTPStatus returns the response status, or 0 when no response was obtained.
	HTTPStatus() int
	// IsCrossOriginRelated reports whether the failure was classified as a
	// cross-origin policy rejection rather than a plain network failure.
	IsCrossOriginRelated() bool
}

var (
	_ EndpointError = (*NetworkError)(nil)
	_ EndpointError = (*CorsError)(nil)
	_ EndpointError = (*HTTPError)(nil)
)

// NetworkError means no response could be obtained (DNS, refused connection, TLS...).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ogc: network error on %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) HTTPStatus() int { return 0 }

func (e *NetworkError) IsCrossOriginRelated() bool { return false }

// CorsError means the request failed opaquely while a bare HEAD probe to the
// same URL succeeded.
type CorsError struct {
	URL string
	Err error
}

func (e *CorsError) Error() string {
	return fmt.Sprintf("ogc: request to %s was rejected (cross-origin policy suspected): %v", e.URL, e.Err)
}

func (e *CorsError) Unwrap() error { return e.Err }

func (e *CorsError) HTTPStatus() int { return 0 }

func (e *CorsError) IsCrossOriginRelated() bool { return true }

// HTTPError is a non-2xx response.
type HTTPError struct {
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("ogc: unexpected status %d on %s", e.Status, e.URL)
	}
	return fmt.Sprintf("ogc: unexpected status %d on %s: %s", e.Status, e.URL, body)
}

func (e *HTTPError) HTTPStatus() int { return e.Status }

func (e *HTTPError) IsCrossOriginRelated() bool { return false }

// DocumentFormatError means a body was received but could not be parsed as
// the format it claimed to be.
type DocumentFormatError struct {
	URL         string
	ContentType string
	Err         error
}

func (e *DocumentFormatError) Error() string {
	if e.ContentType == "" {
		return fmt.Sprintf("ogc: invalid document at %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("ogc: invalid document at %s (%s): %v", e.URL, e.ContentType, e.Err)
}

func (e *DocumentFormatError) Unwrap() error { return e.Err }

// ServiceExceptionError is a protocol exception report returned by a server,
// usually with a 200 status.
type ServiceExceptionError struct {
	Message    string
	RequestURL string
	Code       string
	Locator    string
}

func (e *ServiceExceptionError) Error() string {
	var b strings.Builder
	b.WriteString("ogc: service exception")
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Locator != "" {
		fmt.Fprintf(&b, " at %q", e.Locator)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	return b.String()
}

// LinkNotFoundError is returned when a required link relation is missing.
type LinkNotFoundError struct {
	Rels     []string
	MimeType string
}

func (e *LinkNotFoundError) Error() string {
	rel := strings.Join(e.Rels, " or ")
	if e.MimeType != "" {
		return fmt.Sprintf("ogc: could not find a link with relation %s and type %s", rel, e.MimeType)
	}
	return fmt.Sprintf("ogc: could not find a link with relation %s", rel)
}

// RootNotFoundError is returned when no ancestor of a URL is an API root.
type RootNotFoundError struct {
	URL string
}

func (e *RootNotFoundError) Error() string {
	return fmt.Sprintf("ogc: could not find a root document with data and conformance links above %s", e.URL)
}

// DepthExceededError is returned when a link-following routine gives up
// after MaxDepth hops.
type DepthExceededError struct {
	URL      string
	MaxDepth int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("ogc: gave up following links from %s after %d hops", e.URL, e.MaxDepth)
}
