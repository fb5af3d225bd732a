package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	dserrors "github.com/docsift/docsift/internal/errors"
)

// PDFExtractor extracts text from PDF bytes using ledongthuc/pdf.
type PDFExtractor struct{}

// Verify interface implementation at compile time.
var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract parses PDF bytes into per-page text with structural flags.
// Pages that fail individually are returned with empty text rather than
// failing the whole document; a document that cannot be opened at all is a
// fatal extraction error.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, dserrors.Wrap(dserrors.ErrCodeFileCorrupt, fmt.Errorf("open pdf: %w", err))
	}

	doc := &Document{
		Metadata: Metadata{PageCount: reader.NumPage()},
	}

	for i := 1; i <= reader.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text := extractPageText(page)
		text = SanitizeText(text)

		doc.Pages = append(doc.Pages, Page{
			Number:    i,
			Text:      text,
			HasTables: DetectTables(text),
			HasImages: pageHasImages(page),
		})
	}

	return doc, nil
}

// extractPageText pulls plain text from one page, tolerating per-page parse
// failures (scanned or malformed pages yield empty text).
func extractPageText(page pdf.Page) (text string) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

// pageHasImages checks the page resource dictionary for image XObjects.
func pageHasImages(page pdf.Page) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			found = false
		}
	}()

	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return false
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return false
	}
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if strings.EqualFold(obj.Key("Subtype").Name(), "Image") {
			return true
		}
	}
	return false
}
