package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	docxDefaultDocumentPath = "word/document.xml"
	contentTypesPath        = "[Content_Types].xml"
	docxMainContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix         = "ppt/slides/slide"
)

var (
	// <w:t> and <a:t> runs, with or without attributes such as xml:space.
	wordTextRun  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	drawTextRun  = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	overrideElem = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)
	slideNumber  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// docxMainPart finds the main document part from [Content_Types].xml. Some
// producers write word/document2.xml instead of the default name.
func docxMainPart(contentTypes []byte) string {
	for _, o := range overrideElem.FindAll(contentTypes, -1) {
		if !strings.Contains(string(o), `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameAttr.FindSubmatch(o); m != nil {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return ""
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip("DOCX", content)
	if err != nil {
		return "", err
	}
	docPath := docxDefaultDocumentPath
	if ct, err := readZipFile(zr, contentTypesPath); err == nil && ct != nil {
		if p := docxMainPart(ct); p != "" {
			docPath = p
		}
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	var b strings.Builder
	joinMatches(&b, wordTextRun, docXML)
	return b.String(), nil
}

// extractPPTX reads slides in slide-number order, so slide10 follows slide9.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip("PPTX", content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideNumber.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, name: f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		xml, err := readZipFile(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		joinMatches(&b, drawTextRun, xml)
	}
	return b.String(), nil
}
