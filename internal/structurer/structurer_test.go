package structurer

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/local/cardforge/internal/document"
)

func TestChunkSmallSections(t *testing.T) {
	doc := &document.Document{
		Sections: []document.Section{
			{Title: "A", PageStart: 1, PageEnd: 1, Text: strings.Repeat("The treaty was signed in 1918. ", 10)},
			{Title: "empty", Text: "   "},
			{Title: "B", PageStart: 2, PageEnd: 2, Text: strings.Repeat("Terms required demilitarization of the region. ", 10)},
		},
	}

	chunks := Chunk(doc, DefaultConfig())
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Weight <= 0 {
			t.Errorf("chunk %d weight = %f", i, c.Weight)
		}
	}
	if chunks[0].Section != 0 || chunks[1].Section != 2 {
		t.Errorf("section refs = %d,%d", chunks[0].Section, chunks[1].Section)
	}
	if chunks[1].PageStart != 2 {
		t.Errorf("chunk 1 page = %d", chunks[1].PageStart)
	}
}

func TestChunkSplitsLargeSectionOnSentences(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "Sentence number %d states a separate verifiable fact about the topic. ", i)
	}
	doc := &document.Document{
		Sections: []document.Section{{Title: "big", Text: sb.String()}},
	}

	cfg := Config{TargetChars: 1000, MinChars: 50}
	chunks := Chunk(doc, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > cfg.TargetChars+100 {
			t.Errorf("chunk %d size %d exceeds target", i, n)
		}
		if !strings.HasSuffix(strings.TrimSpace(c.Text), ".") {
			t.Errorf("chunk %d ends mid-sentence: %q", i, c.Text[len(c.Text)-40:])
		}
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	doc := &document.Document{Sections: []document.Section{{Text: ""}, {Text: "\n\n"}}}
	if chunks := Chunk(doc, DefaultConfig()); len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(chunks))
	}
}

func TestChunkDropsTinyFragments(t *testing.T) {
	doc := &document.Document{Sections: []document.Section{{Text: "Too small."}}}
	if chunks := Chunk(doc, Config{TargetChars: 1000, MinChars: 80}); len(chunks) != 0 {
		t.Errorf("chunks = %d, want 0", len(chunks))
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First fact. Second fact! Third question? Trailing bit")
	want := []string{"First fact.", "Second fact!", "Third question?", "Trailing bit"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences: %v", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWeightFavorsDenseText(t *testing.T) {
	sparse := strings.Repeat("Some vague words about things in general without specifics here. ", 5)
	dense := strings.Repeat("The NATO summit of 1949 involved 12 nations. ", 7)

	// dense text is shorter but should not be worth proportionally less
	ws, wd := weight(sparse), weight(dense)
	if wd <= 0 || ws <= 0 {
		t.Fatalf("weights = %f, %f", ws, wd)
	}
	perCharSparse := ws / float64(utf8.RuneCountInString(sparse))
	perCharDense := wd / float64(utf8.RuneCountInString(dense))
	if perCharDense <= perCharSparse {
		t.Errorf("dense per-char weight %f <= sparse %f", perCharDense, perCharSparse)
	}
}
