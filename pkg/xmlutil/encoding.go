package xmlutil

import (
	"bytes"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// SniffLimit caps how many leading bytes are inspected for an XML declaration.
const SniffLimit = 1024

var declEncodingRe = regexp.MustCompile(`^\s*<\?xml[^>]*?encoding\s*=\s*["']([A-Za-z0-9._:\-]+)["']`)

// DetectEncoding resolves the character encoding of an XML byte buffer.
//
// A charset parameter in contentType wins. Otherwise a byte order mark, a
// UTF-16 shaped prefix or the encoding attribute of the XML declaration is
// used, falling back to UTF-8. The returned name is the canonical label.
func DetectEncoding(data []byte, contentType string) (encoding.Encoding, string, error) {
	if label := charsetParam(contentType); label != "" {
		return lookup(label)
	}

	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8, "utf-8", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le", nil
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be", nil
	case len(data) >= 2 && data[0] == '<' && data[1] == 0:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le", nil
	case len(data) >= 2 && data[0] == 0 && data[1] == '<':
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be", nil
	}

	head := data
	if len(head) > SniffLimit {
		head = head[:SniffLimit]
	}
	if m := declEncodingRe.FindSubmatch(head); m != nil {
		return lookup(string(m[1]))
	}
	return unicode.UTF8, "utf-8", nil
}

func lookup(label string) (encoding.Encoding, string, error) {
	enc, name := charset.Lookup(strings.TrimSpace(label))
	if enc == nil {
		return nil, "", fmt.Errorf("unsupported character encoding %q", label)
	}
	return enc, name, nil
}

func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
