package deck

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/document"
)

// Assemble builds the final deck from accepted drafts. Duplicate questions
// collapse to their first occurrence in document order, and decks over target
// are truncated by dropping cards from the lowest-weight chunks first. A deck
// under target is reported, never an error.
func Assemble(name string, drafts []document.DraftCard, chunks []document.Chunk, target int) document.Deck {
	unique := dedup(drafts)

	if target > 0 && len(unique) > target {
		unique = truncate(unique, chunks, target)
	}

	cards := make([]document.FlashCard, 0, len(unique))
	for _, d := range unique {
		cards = append(cards, document.FlashCard{
			ID:       uuid.NewString(),
			Question: d.Question,
			Answer:   d.Answer,
			Chunk:    d.Chunk,
			Provider: d.Provider,
		})
	}

	if target > 0 && len(cards) < target {
		log.Info().Int("cards", len(cards)).Int("target", target).Msg("deck under target")
	}

	return document.Deck{Name: name, Cards: cards}
}

// dedup removes cards whose normalized question was already seen, keeping
// the first occurrence.
func dedup(drafts []document.DraftCard) []document.DraftCard {
	seen := make(map[string]struct{}, len(drafts))
	out := make([]document.DraftCard, 0, len(drafts))
	for _, d := range drafts {
		key := normalizeQuestion(d.Question)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

// truncate drops cards until the deck fits target, removing from the
// lowest-weight chunks first and preserving document order among survivors.
func truncate(drafts []document.DraftCard, chunks []document.Chunk, target int) []document.DraftCard {
	weightOf := func(chunk int) float64 {
		if chunk >= 0 && chunk < len(chunks) {
			return chunks[chunk].Weight
		}
		return 0
	}

	order := make([]int, len(drafts))
	for i := range order {
		order[i] = i
	}
	// Victims: lightest chunk first; within a chunk, later cards go first.
	sort.SliceStable(order, func(a, b int) bool {
		wa, wb := weightOf(drafts[order[a]].Chunk), weightOf(drafts[order[b]].Chunk)
		if wa != wb {
			return wa < wb
		}
		return order[a] > order[b]
	})

	drop := make(map[int]struct{}, len(drafts)-target)
	for _, idx := range order[:len(drafts)-target] {
		drop[idx] = struct{}{}
	}

	out := make([]document.DraftCard, 0, target)
	for i, d := range drafts {
		if _, ok := drop[i]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// normalizeQuestion lowercases and collapses whitespace so near-identical
// questions dedup together.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
