package extractor

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/document"
)

// ErrUnsupportedFormat is returned when the input bytes are not a format the
// extractor understands. It is fatal to the run.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// FetchError wraps a failure to retrieve a URL input. Fatal to the run.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: http %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Extractor turns raw inputs (files, URLs, pasted text) into a structured
// Document. Format identity comes from magic bytes; a declared format, when
// given, wins over sniffing so mislabeled uploads stay the caller's call.
type Extractor struct {
	fetchTimeout time.Duration
	charsPerPage int
}

func New(fetchTimeout time.Duration, charsPerPage int) *Extractor {
	if charsPerPage <= 0 {
		charsPerPage = 2500
	}
	return &Extractor{fetchTimeout: fetchTimeout, charsPerPage: charsPerPage}
}

// FromFile extracts a document from a file on disk. declared may be "pdf",
// "html", "txt" or empty, in which case the format is sniffed.
func (e *Extractor) FromFile(path, declared, title string) (*document.Document, error) {
	format := strings.ToLower(strings.TrimSpace(declared))
	if format == "" {
		f, err := sniffFile(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	switch format {
	case "pdf":
		return e.fromPDF(path, title)
	case "html", "htm":
		return e.fromHTMLFile(path, title)
	case "txt", "text", "markdown", "md":
		return e.fromTextFile(path, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// FromText extracts a document from pasted plain text.
func (e *Extractor) FromText(text, title string) (*document.Document, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrUnsupportedFormat)
	}
	sections := textSections(text)
	return e.finish(title, "Text", sections, 0), nil
}

func sniffFile(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect file type: %w", err)
	}
	mime := mtype.String()
	log.Debug().Str("mime", mime).Str("file", path).Msg("detected file type")

	switch {
	case mime == "application/pdf":
		return "pdf", nil
	case mime == "text/html" || strings.HasPrefix(mime, "text/html;"):
		return "html", nil
	case strings.HasPrefix(mime, "text/"):
		return "txt", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
}

// finish assembles the Document envelope: counts, page-equivalents, language.
// pageCount of 0 means "derive from length".
func (e *Extractor) finish(title, sourceKind string, sections []document.Section, pageCount int) *document.Document {
	var full strings.Builder
	for _, s := range sections {
		full.WriteString(s.Text)
		full.WriteString("\n")
	}
	text := full.String()

	chars := utf8.RuneCountInString(text)
	if pageCount <= 0 {
		pageCount = (chars + e.charsPerPage - 1) / e.charsPerPage
		if pageCount < 1 {
			pageCount = 1
		}
	}

	lang := DetectLanguage(text)

	doc := &document.Document{
		ID:        uuid.NewString(),
		Title:     deckTitle(sourceKind, title),
		Language:  lang,
		Sections:  sections,
		PageCount: pageCount,
		CharCount: chars,
		WordCount: len(strings.Fields(text)),
	}

	log.Info().
		Str("doc_id", doc.ID).
		Str("title", doc.Title).
		Str("language", lang).
		Int("sections", len(sections)).
		Int("pages", pageCount).
		Int("chars", chars).
		Msg("document extracted")

	return doc
}

// deckTitle derives the default deck name from the source kind, e.g.
// "PDF - lecture-notes". The caller may still override it.
func deckTitle(sourceKind, title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	if sourceKind == "" {
		return title
	}
	return sourceKind + " - " + title
}
