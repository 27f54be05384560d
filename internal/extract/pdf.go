package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrTooManyPages is returned for PDFs over the page limit.
var ErrTooManyPages = errors.New("pdf has too many pages")

// fromPDF counts pages with pdfcpu, which validates the file structure,
// then reads page text with ledongthuc/pdf.
func (e *Extractor) fromPDF(res *Result, data []byte) error {
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return fmt.Errorf("failed to count pdf pages: %w", err)
	}
	if pages > e.maxPDFPages {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyPages, pages, e.maxPDFPages)
	}
	res.Pages = pages

	text, err := pdfText(data)
	if err != nil {
		return err
	}
	res.Text = text
	return nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only pages have no text layer.
			continue
		}
		if t = strings.TrimSpace(t); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
