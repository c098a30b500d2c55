package ingest

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadResult is one document's extracted text plus the page count needed
// for the classifier's position heuristics (spec.md section 4.6).
type LoadResult struct {
	Text       string
	TotalPages int
	OCRUsed    bool
}

// Loader decodes one document format into plain text, grounded on the
// teacher's chunk.FileInput decoupling of "read the file" from "chunk the
// text" -- a Loader only does the former.
type Loader interface {
	SupportedExtensions() []string
	Load(ctx context.Context, path string) (*LoadResult, error)
}

// OCRFunc runs OCR over a page image and returns extracted text.
// PDFLoader invokes it for every page whose character density falls below
// OCRPageThreshold; earlier OCR attempts are neither recorded nor
// consulted, so each load of a low-density page calls it again. OCR
// engines themselves are out of scope (spec.md section 1); NoOpOCR is the
// default and always reports no text recovered.
type OCRFunc func(ctx context.Context, path string, pageNumber int) (string, error)

// NoOpOCR is the zero-value OCR fallback: it recovers nothing, leaving the
// low-density page text as-is.
func NoOpOCR(ctx context.Context, path string, pageNumber int) (string, error) {
	return "", nil
}

// PDFLoader extracts text via github.com/ledongthuc/pdf, falling back to
// OCR per page when extracted density is too low.
type PDFLoader struct {
	OCR              OCRFunc
	OCRPageThreshold float64
}

// NewPDFLoader builds a PDFLoader with the given OCR hook and page-density
// threshold (spec.md section 4.3 step 3). A nil ocr defaults to NoOpOCR.
func NewPDFLoader(ocr OCRFunc, threshold float64) *PDFLoader {
	if ocr == nil {
		ocr = NoOpOCR
	}
	return &PDFLoader{OCR: ocr, OCRPageThreshold: threshold}
}

func (l *PDFLoader) SupportedExtensions() []string { return []string{".pdf"} }

// minDensePageChars is the character count below which a page is considered
// low-density text relative to a typical prose page, gating the OCR
// threshold check (spec.md section 4.3 step 3 names the ratio but not the
// baseline page size; 1800 chars approximates one dense prose page).
const minDensePageChars = 1800

func (l *PDFLoader) Load(ctx context.Context, path string) (*LoadResult, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	totalPages := r.NumPage()
	var sb strings.Builder
	ocrUsed := false

	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}

		density := float64(len(strings.TrimSpace(text))) / float64(minDensePageChars)
		if density < l.OCRPageThreshold {
			if recovered, ocrErr := l.OCR(ctx, path, pageIndex); ocrErr == nil && recovered != "" {
				text = recovered
				ocrUsed = true
			}
		}

		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return &LoadResult{Text: sb.String(), TotalPages: totalPages, OCRUsed: ocrUsed}, nil
}

// EPUBLoader extracts text from an EPUB's XHTML content documents via
// stdlib archive/zip + encoding/xml. No EPUB parsing library exists
// anywhere in the retrieval pack, so this is stdlib by necessity (see
// DESIGN.md).
type EPUBLoader struct{}

func NewEPUBLoader() *EPUBLoader { return &EPUBLoader{} }

func (l *EPUBLoader) SupportedExtensions() []string { return []string{".epub"} }

var epubTagPattern = regexp.MustCompile(`(?s)<[^>]+>`)

func (l *EPUBLoader) Load(ctx context.Context, path string) (*LoadResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open epub %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	var sb strings.Builder
	pages := 0

	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(file.Name))
		if ext != ".xhtml" && ext != ".html" && ext != ".htm" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			continue
		}

		text := extractEPUBText(raw)
		if strings.TrimSpace(text) == "" {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
		pages++
	}

	return &LoadResult{Text: sb.String(), TotalPages: pages}, nil
}

// extractEPUBText strips XHTML markup down to plain text. A full XML parse
// is attempted first (handles entity decoding correctly); a regex
// tag-strip is the fallback for malformed markup, which EPUB content
// documents are not guaranteed to avoid.
func extractEPUBText(raw []byte) string {
	decoder := xml.NewDecoder(strings.NewReader(string(raw)))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	var sb strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			sb.Write(cd)
			sb.WriteString(" ")
		}
	}

	if sb.Len() > 0 {
		return sb.String()
	}
	return epubTagPattern.ReplaceAllString(string(raw), " ")
}

// LoaderFor returns the Loader registered for path's extension, or nil if
// unsupported.
func LoaderFor(loaders []Loader, path string) Loader {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range loaders {
		for _, supported := range l.SupportedExtensions() {
			if supported == ext {
				return l
			}
		}
	}
	return nil
}
