package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const openDocumentContentPath = "content.xml"

// Paragraphs, headings and spans in document order. Elements that contain
// nested markup contribute through their innermost text element.
var openDocumentText = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)

// extractOpenDocument handles ODT, ODP and ODS, which share content.xml.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip("OpenDocument", content)
	if err != nil {
		return "", err
	}
	xml, err := readZipFile(zr, openDocumentContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", openDocumentContentPath)
	}
	var b strings.Builder
	joinMatches(&b, openDocumentText, xml)
	return b.String(), nil
}
