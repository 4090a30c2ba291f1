package fetch

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL checks that rawURL is absolute and returns it with a
// lower-cased scheme and host and without fragment. Path and query are kept
// verbatim.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: an absolute http(s) URL is required", rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// SetQueryParams sets each parameter on rawURL, first removing any existing
// parameter whose name differs only by case. Setting SERVICE removes service
// and Service.
func SetQueryParams(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	query := u.Query()
	for name, value := range params {
		for existing := range query {
			if strings.EqualFold(existing, name) {
				query.Del(existing)
			}
		}
		query.Set(name, value)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// CapabilitiesURL builds a GetCapabilities request URL for a legacy OGC
// service (WMS, WFS, WMTS...). Parameter names are upper-cased.
func CapabilitiesURL(baseURL, service, version string) (string, error) {
	params := map[string]string{
		"SERVICE": strings.ToUpper(service),
		"REQUEST": "GetCapabilities",
	}
	if version != "" {
		params["VERSION"] = version
	}
	return SetQueryParams(baseURL, params)
}
