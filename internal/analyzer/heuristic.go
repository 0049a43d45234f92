package analyzer

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/local/cardforge/internal/document"
	"github.com/local/cardforge/internal/structurer"
)

// Heuristic generates cards from salience patterns alone. It is deterministic,
// never fails and terminates every fallback chain.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Name() string { return "heuristic" }

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
	regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),
	regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{2,4}\b`),
}

var salientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+`),
	regexp.MustCompile(`\b[A-Z]{2,}\b`),
	regexp.MustCompile(`(?i)\b(?:important|significant|key|main|primary|crucial|essential|vital)\b`),
	regexp.MustCompile(`(?i)\b(?:according to|research|study|findings|results)\b`),
}

func (h *Heuristic) Generate(_ context.Context, req Request) ([]document.DraftCard, error) {
	points := KeyPoints(req.Chunk.Text, req.Prompt)

	drafts := make([]document.DraftCard, 0, len(points))
	for _, p := range points {
		drafts = append(drafts, document.DraftCard{
			Question: StatementToQuestion(p),
			Answer:   p,
			Chunk:    req.Chunk.Index,
			Provider: h.Name(),
		})
	}

	drafts = filterDrafts(drafts, req.Lenient)
	return capDrafts(drafts, req.Quota), nil
}

// KeyPoints picks salient sentences: those carrying numbers, acronyms,
// importance keywords or evidential phrasing. A steering prompt mentioning
// dates narrows the pass to date-bearing sentences only.
func KeyPoints(text, prompt string) []string {
	sentences := structurer.SplitSentences(text)

	if strings.Contains(strings.ToLower(prompt), "date") {
		var points []string
		for _, s := range sentences {
			for _, pat := range datePatterns {
				if pat.MatchString(s) {
					points = append(points, strings.TrimRight(s, ".!?"))
					break
				}
			}
			if len(points) == 10 {
				break
			}
		}
		return points
	}

	var points []string
	for _, s := range sentences {
		if utf8.RuneCountInString(s) < 20 {
			continue
		}
		for _, pat := range salientPatterns {
			if pat.MatchString(s) {
				points = append(points, strings.TrimRight(s, ".!?"))
				break
			}
		}
		if len(points) == 15 {
			break
		}
	}

	// Dedup preserving order.
	seen := make(map[string]struct{}, len(points))
	unique := points[:0]
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}

var leadingVerbs = []string{
	"is ", "are ", "was ", "were ", "has ", "have ", "had ",
	"do ", "does ", "did ", "can ", "could ", "will ", "would ",
	"should ", "may ", "might ",
}

// StatementToQuestion turns a declarative key point into a question.
func StatementToQuestion(statement string) string {
	statement = strings.TrimSpace(statement)
	lower := strings.ToLower(statement)

	for _, v := range leadingVerbs {
		if strings.HasPrefix(lower, v) {
			return strings.TrimRight(statement, ".") + "?"
		}
	}

	for _, v := range []string{" is ", " are ", " was ", " were "} {
		if strings.Contains(lower, v) {
			return strings.TrimRight(statement, ".") + "?"
		}
	}

	return "What is " + strings.TrimRight(statement, ".") + "?"
}
