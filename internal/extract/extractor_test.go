package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/tansaku/internal/models"
)

func zipOf(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(files[name]))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func wordDoc(text string) string {
	return `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`
}

func slideXML(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtractBytes_plain(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name    string
		ext     string
		content []byte
		want    string
	}{
		{"text", ".txt", []byte("Hello world\nLine 2"), "Hello world\nLine 2"},
		{"utf8", ".md", []byte("caf\xc3\xa9"), "café"},
		{"invalid utf8", ".rst", []byte("hello\x80world"), "hello\uFFFDworld"},
		{"upper-case ext", ".TXT", []byte("x"), "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_unknownExtension(t *testing.T) {
	r := NewRegistry()
	_, err := r.ExtractBytes([]byte("raw content"), ".xyz")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("got %v", err)
	}
	if r.Supports(".xyz") || !r.Supports("pdf") {
		t.Error("Supports mismatch")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("html", "text/html", ExtractorFunc(func(b []byte) (string, error) {
		return "custom:" + string(b), nil
	}))
	got, err := r.ExtractBytes([]byte("x"), ".html")
	if err != nil || got != "custom:x" {
		t.Errorf("got %q, %v", got, err)
	}
	if r.ContentType(".HTML") != "text/html" {
		t.Errorf("content type = %q", r.ContentType(".html"))
	}
	exts := r.Extensions()
	for i := 1; i < len(exts); i++ {
		if exts[i-1] > exts[i] {
			t.Fatalf("extensions not sorted: %v", exts)
		}
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewRegistry().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docx(t *testing.T) {
	r := NewRegistry()

	got, err := r.ExtractBytes(zipOf(t, map[string]string{"word/document.xml": wordDoc("Searchable docx content")}, "word/document.xml"), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Searchable docx content" {
		t.Errorf("got %q", got)
	}

	for _, override := range []string{
		`<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		`<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		files := map[string]string{
			contentTypesPath:     `<Types>` + override + `</Types>`,
			"word/document2.xml": wordDoc("Content from document2"),
		}
		got, err := r.ExtractBytes(zipOf(t, files, contentTypesPath, "word/document2.xml"), ".docx")
		if err != nil {
			t.Fatalf("ExtractBytes: %v", err)
		}
		if got != "Content from document2" {
			t.Errorf("got %q", got)
		}
	}

	if _, err := r.ExtractBytes(zipOf(t, map[string]string{"other.xml": ""}, "other.xml"), ".docx"); err == nil {
		t.Error("expected error when the document part is missing")
	}
}

func TestExtractBytes_pptxSlideOrder(t *testing.T) {
	files := map[string]string{
		"ppt/slides/slide10.xml": slideXML("Tenth"),
		"ppt/slides/slide2.xml":  slideXML("Second"),
		"ppt/slides/slide1.xml":  slideXML("First"),
	}
	content := zipOf(t, files, "ppt/slides/slide10.xml", "ppt/slides/slide2.xml", "ppt/slides/slide1.xml")
	got, err := NewRegistry().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "First Second Tenth" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_pptxEmpty(t *testing.T) {
	content := zipOf(t, map[string]string{}, "ppt/slides/other.xml", "docProps/core.xml")
	got, err := NewRegistry().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "" {
		t.Errorf("got %q", got)
	}
	if _, err := NewRegistry().ExtractBytes([]byte("not a zip"), ".pptx"); err == nil {
		t.Error("expected error for invalid pptx")
	}
}

func TestExtractBytes_openDocument(t *testing.T) {
	tests := []struct {
		ext  string
		xml  string
		want string
	}{
		{".odp", `<office:body><draw:page><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page></office:body>`, "Slide title Body text"},
		{".ods", `<table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:p><text:span>Cell B</text:span></text:p></table:table-cell></table:table-row>`, "Cell A Cell B"},
		{".odt", `<office:text><text:p text:style-name="P1">Paragraph</text:p></office:text>`, "Paragraph"},
	}
	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := r.ExtractBytes(zipOf(t, map[string]string{"content.xml": tt.xml}, "content.xml"), tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := r.ExtractBytes(zipOf(t, map[string]string{}, "other.xml"), ".ods"); err == nil {
		t.Error("expected error when content.xml missing")
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	txt := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(txt, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := r.ExtractFile(txt)
	if err != nil || got != "File content" {
		t.Errorf("txt: %q, %v", got, err)
	}

	deck := filepath.Join(dir, "deck.pptx")
	if err := os.WriteFile(deck, zipOf(t, map[string]string{"ppt/slides/slide1.xml": slideXML("Searchable from file")}, "ppt/slides/slide1.xml"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err = r.ExtractFile(deck)
	if err != nil || got != "Searchable from file" {
		t.Errorf("pptx: %q, %v", got, err)
	}

	if _, err := r.ExtractFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
	if _, err := r.ExtractFile(filepath.Join(dir, "image.png")); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("unsupported: %v", err)
	}
}
