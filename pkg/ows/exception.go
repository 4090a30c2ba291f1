package ows

import (
	"strings"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
	"github.com/robert-malhotra/go-ogc-client/pkg/xmlutil"
)

// CheckException returns a *ogcerr.ServiceExceptionError when doc is an
// exception report (WMS ServiceExceptionReport or OWS ExceptionReport), and
// nil otherwise.
func CheckException(doc *xmlutil.Document, requestURL string) error {
	root := xmlutil.RootElement(doc)
	switch xmlutil.GetRootElementLocalName(doc) {
	case "ServiceExceptionReport":
		exc := xmlutil.FindChildElement(root, "ServiceException", false)
		return &ogcerr.ServiceExceptionError{
			Message:    strings.TrimSpace(xmlutil.GetElementText(exc)),
			RequestURL: requestURL,
			Code:       xmlutil.GetElementAttribute(exc, "code"),
			Locator:    xmlutil.GetElementAttribute(exc, "locator"),
		}
	case "ExceptionReport":
		exc := xmlutil.FindChildElement(root, "Exception", false)
		var texts []string
		for _, el := range xmlutil.FindChildrenElement(exc, "ExceptionText", false) {
			if text := strings.TrimSpace(xmlutil.GetElementText(el)); text != "" {
				texts = append(texts, text)
			}
		}
		return &ogcerr.ServiceExceptionError{
			Message:    strings.Join(texts, "\n"),
			RequestURL: requestURL,
			Code:       xmlutil.GetElementAttribute(exc, "exceptionCode"),
			Locator:    xmlutil.GetElementAttribute(exc, "locator"),
		}
	default:
		return nil
	}
}
