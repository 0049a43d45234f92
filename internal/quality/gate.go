package quality

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/document"
	"github.com/local/cardforge/internal/metrics"
)

// Rejection reasons recorded on discarded drafts.
const (
	ReasonNotAtomic    = "not_atomic"
	ReasonVagueSubject = "vague_subject"
	ReasonYesNo        = "yes_no"
)

// Result splits reviewed drafts into survivors and discards. Discarded cards
// carry their reason and are never re-submitted to a provider.
type Result struct {
	Accepted []document.DraftCard
	Rejected []document.DraftCard
}

var (
	multiAsk = regexp.MustCompile(`(?i)\?\s*\S|\band\s+(what|who|when|where|why|how|which)\b`)

	vagueSubject = regexp.MustCompile(`(?i)^(what|who|when|where|why|how|which)\s+(is|are|was|were|did|does|do|has|have)\s+(it|he|she|they|them|this|that|these|those)\b`)
	pronounLead  = regexp.MustCompile(`(?i)^(it|he|she|they|this|that)\s`)

	auxLead   = regexp.MustCompile(`(?i)^(is|are|was|were|did|does|do|can|could|will|would|has|have|had|should|may|might)\s`)
	inYearTail = regexp.MustCompile(`(?i)^(did|does|do|was|were|is|are)\s+(.+?)\s+in\s+(\d{3,4})\s*\?$`)
)

// Review validates drafts one by one. Questions are normalized to end in a
// single question mark; compound asks, bare-pronoun subjects and
// unrepairable yes/no forms are discarded.
func Review(drafts []document.DraftCard, chunkText func(chunk int) string) Result {
	var res Result

	for _, d := range drafts {
		d.Question = normalizeQuestion(d.Question)
		d.Answer = strings.TrimSpace(d.Answer)

		if reason := check(&d, chunkText); reason != "" {
			d.Rejected = true
			d.Reason = reason
			metrics.IncRejected(reason)
			log.Debug().Str("reason", reason).Str("question", d.Question).Msg("card rejected")
			res.Rejected = append(res.Rejected, d)
			continue
		}
		res.Accepted = append(res.Accepted, d)
	}

	return res
}

// check returns a rejection reason, possibly rewriting the question in place.
func check(d *document.DraftCard, chunkText func(chunk int) string) string {
	q := d.Question

	// One card asks one thing.
	if multiAsk.MatchString(q) {
		return ReasonNotAtomic
	}

	// A question whose subject is a bare pronoun cannot stand alone.
	if vagueSubject.MatchString(q) || pronounLead.MatchString(q) {
		return ReasonVagueSubject
	}

	// Yes/no questions test recognition, not recall. Rewrite to open form
	// when the chunk confirms the fact being asked about, discard otherwise.
	if auxLead.MatchString(q) {
		if rewritten, ok := rewriteYesNo(q, chunkText(d.Chunk)); ok {
			d.Question = rewritten
			return ""
		}
		return ReasonYesNo
	}

	return ""
}

// rewriteYesNo converts "Did the treaty end in 1918?" into "When did the
// treaty end?", but only when the year actually appears in the source chunk.
func rewriteYesNo(q, context string) (string, bool) {
	m := inYearTail.FindStringSubmatch(q)
	if m == nil {
		return "", false
	}
	aux, body, year := strings.ToLower(m[1]), m[2], m[3]
	if !strings.Contains(context, year) {
		return "", false
	}
	return "When " + aux + " " + body + "?", true
}

// normalizeQuestion trims and guarantees exactly one terminal question mark.
func normalizeQuestion(q string) string {
	q = strings.TrimSpace(q)
	q = strings.TrimRight(q, "?.! \t")
	return q + "?"
}
