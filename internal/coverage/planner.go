package coverage

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/config"
	"github.com/local/cardforge/internal/document"
)

// Plan is the card budget for one run: a global target and a quota per chunk,
// indexed by chunk position. Quotas always sum to Target.
type Plan struct {
	Level  string
	Target int
	Quotas []int
}

// Level bounds. Targets scale with page-equivalent size and clamp into a
// floor/ceiling band per level.
type levelBounds struct {
	perPages float64 // cards per page unit
	floor    int
	ceiling  int
}

var levels = map[string]levelBounds{
	config.LevelMinimal: {perPages: 1.0 / 20.0, floor: 10, ceiling: 200},
	config.LevelMedium:  {perPages: 1.0 / 5.0, floor: 20, ceiling: 800},
	config.LevelMaximum: {perPages: 2.0, floor: 50, ceiling: 5000},
}

// Target computes the global card target for a document at the given level.
// An explicit requested count (> 0) bypasses the level formula entirely.
func Target(doc *document.Document, level string, requested int) int {
	if requested > 0 {
		return requested
	}
	b, ok := levels[level]
	if !ok {
		b = levels[config.LevelMedium]
	}
	pages := doc.PageCount
	if pages < 1 {
		pages = 1
	}
	target := int(float64(pages) * b.perPages)
	if target < b.floor {
		target = b.floor
	}
	if target > b.ceiling {
		target = b.ceiling
	}
	return target
}

// Allocate distributes target across chunks proportionally to weight, using
// largest-remainder rounding so quotas sum exactly to target. Zero-weight
// chunks always get quota 0. When the target is smaller than the number of
// chunks, single cards go to the heaviest chunks; otherwise every chunk with
// content gets at least one card, so coverage always spans the document
// rather than clustering at the front.
func Allocate(chunks []document.Chunk, target int) []int {
	quotas := make([]int, len(chunks))
	if target <= 0 || len(chunks) == 0 {
		return quotas
	}

	total := document.TotalWeight(chunks)
	if total <= 0 {
		return quotas
	}

	weighted := make([]int, 0, len(chunks))
	for i, c := range chunks {
		if c.Weight > 0 {
			weighted = append(weighted, i)
		}
	}

	// Scarce target: one card each to the heaviest chunks.
	if target < len(weighted) {
		byWeight := make([]int, len(weighted))
		copy(byWeight, weighted)
		sort.SliceStable(byWeight, func(a, b int) bool {
			return chunks[byWeight[a]].Weight > chunks[byWeight[b]].Weight
		})
		for _, idx := range byWeight[:target] {
			quotas[idx] = 1
		}
		return quotas
	}

	// Proportional shares with largest-remainder rounding.
	type remainder struct {
		idx  int
		frac float64
	}
	assigned := 0
	remainders := make([]remainder, 0, len(weighted))
	for _, i := range weighted {
		share := float64(target) * chunks[i].Weight / total
		whole := int(share)
		quotas[i] = whole
		assigned += whole
		remainders = append(remainders, remainder{idx: i, frac: share - float64(whole)})
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac > remainders[b].frac
	})
	for k := 0; assigned < target && k < len(remainders); k++ {
		quotas[remainders[k].idx]++
		assigned++
	}

	// Rounding alone can starve light chunks near the document tail even
	// though the target covers every chunk. Move single cards from the
	// richest chunks until each content-bearing chunk holds at least one.
	for _, i := range weighted {
		if quotas[i] > 0 {
			continue
		}
		donor := -1
		for _, j := range weighted {
			if quotas[j] > 1 && (donor == -1 || quotas[j] > quotas[donor]) {
				donor = j
			}
		}
		if donor == -1 {
			break
		}
		quotas[donor]--
		quotas[i] = 1
	}

	return quotas
}

// BuildPlan computes the full plan for a document.
func BuildPlan(doc *document.Document, chunks []document.Chunk, level string, requested int) Plan {
	target := Target(doc, level, requested)
	quotas := Allocate(chunks, target)

	actual := 0
	for _, q := range quotas {
		actual += q
	}
	log.Info().
		Str("level", level).
		Int("target", target).
		Int("allocated", actual).
		Int("chunks", len(chunks)).
		Msg("coverage plan built")

	return Plan{Level: level, Target: target, Quotas: quotas}
}
