package structurer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/local/cardforge/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	// TargetChars is the upper bound on chunk size in runes. Section text
	// below it becomes a single chunk.
	TargetChars int
	// MinChars drops fragments too small to yield a useful card.
	MinChars int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetChars: 6000,
		MinChars:    80,
	}
}

// Chunk turns a document's sections into ordered analysis chunks. Chunks are
// contiguous, never overlap and never end mid-sentence. Empty sections yield
// nothing.
func Chunk(doc *document.Document, cfg Config) []document.Chunk {
	if cfg.TargetChars <= 0 {
		cfg.TargetChars = 6000
	}
	if cfg.MinChars < 0 {
		cfg.MinChars = 0
	}

	var chunks []document.Chunk
	index := 0

	for si, sec := range doc.Sections {
		text := strings.TrimSpace(sec.Text)
		if text == "" {
			continue
		}

		for _, part := range splitSection(text, cfg.TargetChars) {
			if utf8.RuneCountInString(part) < cfg.MinChars {
				continue
			}
			chunks = append(chunks, document.Chunk{
				Index:     index,
				Section:   si,
				PageStart: sec.PageStart,
				PageEnd:   sec.PageEnd,
				Text:      part,
				Weight:    weight(part),
			})
			index++
		}
	}

	return chunks
}

// splitSection packs paragraphs into parts up to targetChars. A paragraph
// that alone exceeds the target is split on sentence boundaries instead.
func splitSection(text string, targetChars int) []string {
	paragraphs := splitParagraphs(text)

	var result []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			result = append(result, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)

		if paraLen > targetChars {
			flush()
			result = append(result, packSentences(para, targetChars)...)
			continue
		}

		if currentLen+paraLen > targetChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()

	return result
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// packSentences groups whole sentences into parts of at most targetChars.
// A single sentence longer than the target becomes its own oversized part
// rather than being cut.
func packSentences(text string, targetChars int) []string {
	sentences := SplitSentences(text)

	var result []string
	var current strings.Builder
	currentLen := 0

	for _, sent := range sentences {
		sentLen := utf8.RuneCountInString(sent)

		if currentLen+sentLen > targetChars && currentLen > 0 {
			result = append(result, current.String())
			current.Reset()
			currentLen = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sent)
		currentLen += sentLen
	}
	if currentLen > 0 {
		result = append(result, current.String())
	}

	return result
}

// SplitSentences does basic sentence splitting on terminal punctuation
// followed by whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

var (
	numberPat  = regexp.MustCompile(`\d`)
	acronymPat = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	defPat     = regexp.MustCompile(`(?i)\b(is|are|was|were|means|refers to|defined as|known as)\b`)
)

// weight scores a chunk as length times an information-density estimate.
// Density looks at the share of sentences carrying numbers, acronyms or
// definitional phrasing and stays within [0.5, 1.5] so a dense short chunk
// can outrank a sparse long one but never dwarf it.
func weight(text string) float64 {
	length := float64(utf8.RuneCountInString(text))

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return length * 0.5
	}

	salient := 0
	for _, s := range sentences {
		if numberPat.MatchString(s) || acronymPat.MatchString(s) || defPat.MatchString(s) {
			salient++
		}
	}

	density := 0.5 + float64(salient)/float64(len(sentences))
	if density > 1.5 {
		density = 1.5
	}
	return length * density
}
