package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/local/cardforge/internal/document"
)

// Request is one unit of analysis work: a chunk and its card quota.
type Request struct {
	Chunk    document.Chunk
	Quota    int
	Language string // ISO 639-1 code of the document
	Prompt   string // optional user steering prompt
	Lenient  bool   // relaxed draft filtering (maximum coverage runs)
}

// Provider generates draft cards for a chunk. Implementations must be safe
// for concurrent use.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]document.DraftCard, error)
}

// ErrRateLimited marks a provider refusal that should open the cooldown
// breaker rather than count as an ordinary failure.
var ErrRateLimited = errors.New("rate_limited")

// ProviderError is a chunk-local provider failure. It is absorbed by the
// fallback chain and never aborts sibling chunks.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// filterDrafts drops degenerate pairs. Normal runs require a question over 10
// runes and an answer over 5; lenient runs keep almost everything and let the
// quality gate decide.
func filterDrafts(drafts []document.DraftCard, lenient bool) []document.DraftCard {
	minQ, minA := 10, 5
	if lenient {
		minQ, minA = 3, 2
	}
	out := drafts[:0]
	for _, d := range drafts {
		q := strings.TrimSpace(d.Question)
		a := strings.TrimSpace(d.Answer)
		if utf8.RuneCountInString(q) <= minQ || utf8.RuneCountInString(a) <= minA {
			continue
		}
		d.Question = q
		d.Answer = a
		out = append(out, d)
	}
	return out
}

func capDrafts(drafts []document.DraftCard, quota int) []document.DraftCard {
	if quota > 0 && len(drafts) > quota {
		return drafts[:quota]
	}
	return drafts
}
