package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/document"
)

// TSVExporter writes decks as tab-separated files Anki imports directly.
type TSVExporter struct {
	outDir string
}

func NewTSV(outDir string) *TSVExporter {
	return &TSVExporter{outDir: outDir}
}

func (e *TSVExporter) Name() string { return "tsv" }

func (e *TSVExporter) Export(_ context.Context, deck document.Deck) (string, error) {
	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(e.outDir, safeFilename(deck.Name)+".tsv")

	var sb strings.Builder
	sb.WriteString("#separator:tab\n")
	sb.WriteString("#html:false\n")
	fmt.Fprintf(&sb, "#deck:%s\n", deck.Name)
	for _, c := range deck.Cards {
		sb.WriteString(sanitizeField(c.Question))
		sb.WriteByte('\t')
		sb.WriteString(sanitizeField(c.Answer))
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write deck file: %w", err)
	}

	log.Info().Str("path", path).Int("cards", len(deck.Cards)).Msg("deck exported as tsv")
	return path, nil
}

// sanitizeField keeps tabs and newlines out of a single TSV field.
func sanitizeField(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "<br>")
	return s
}

func safeFilename(name string) string {
	mapper := func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}
	out := strings.Map(mapper, strings.TrimSpace(name))
	if out == "" {
		out = "deck"
	}
	return out
}
