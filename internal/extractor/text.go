package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/local/cardforge/internal/document"
)

func (e *Extractor) fromTextFile(path, title string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return e.FromText(string(data), title)
}

// textSections splits plain text on markdown-style headings when present,
// otherwise the whole input becomes a single untitled section.
func textSections(text string) []document.Section {
	lines := strings.Split(text, "\n")

	var sections []document.Section
	var cur document.Section
	var body []string

	flush := func() {
		t := strings.TrimSpace(strings.Join(body, "\n"))
		if t != "" {
			cur.Text = t
			sections = append(sections, cur)
		}
		body = body[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			cur = document.Section{Title: strings.TrimSpace(strings.TrimLeft(trimmed, "# "))}
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(sections) == 0 {
		t := strings.TrimSpace(text)
		if t != "" {
			sections = []document.Section{{Text: t}}
		}
	}
	return sections
}
