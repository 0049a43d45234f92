package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/document"
)

// fromPDF extracts per-page plain text. Each page becomes a section so the
// planner sees real page boundaries.
func (e *Extractor) fromPDF(path, title string) (*document.Document, error) {
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".pdf")
	}

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf open: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	sections := make([]document.Section, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Int("page", i).Err(err).Msg("pdf page text extraction failed, skipping")
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, document.Section{
			Title:     fmt.Sprintf("Page %d", i),
			PageStart: i,
			PageEnd:   i,
			Text:      text,
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: pdf contains no extractable text", ErrUnsupportedFormat)
	}

	// Cross-check the parser's page count against pdfcpu. The larger value
	// wins so scanned or partially parsed files still size the plan honestly.
	pageCount := numPages
	if n, err := api.PageCountFile(path); err == nil && n > pageCount {
		pageCount = n
	}

	return e.finish(title, "PDF", sections, pageCount), nil
}
