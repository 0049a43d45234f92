package analyzer

import (
	"regexp"
	"strings"
)

var qaInline = regexp.MustCompile(`(?i)Q:\s*(.+?)\s+A:\s*(.+)`)

// qaPair is a raw question/answer pair parsed out of model output.
type qaPair struct {
	Question string
	Answer   string
}

// parseQA extracts Q/A pairs from model output. It accepts "Q:"/"A:" and
// "Question:"/"Answer:" prefixes, treats a bare line after a question as its
// answer, and falls back to same-line "Q: ... A: ..." matching when the
// line-oriented pass finds almost nothing.
func parseQA(content string) []qaPair {
	var pairs []qaPair
	var question, answer string

	flush := func() {
		if question != "" && answer != "" {
			pairs = append(pairs, qaPair{Question: question, Answer: answer})
		}
		question, answer = "", ""
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasQuestionPrefix(line):
			flush()
			question = afterColon(line)
		case hasAnswerPrefix(line):
			answer = afterColon(line)
		case question != "" && answer == "" && line != "":
			answer = line
		}
	}
	flush()

	if len(pairs) < 5 {
		// Some models pack both onto one line. The rescan sees every line
		// again, so pairs the first pass already captured are skipped.
		seen := make(map[string]bool, len(pairs))
		for _, p := range pairs {
			seen[pairKey(p)] = true
		}
		for _, line := range strings.Split(content, "\n") {
			m := qaInline.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			p := qaPair{
				Question: strings.TrimSpace(m[1]),
				Answer:   strings.TrimSpace(m[2]),
			}
			if seen[pairKey(p)] {
				continue
			}
			seen[pairKey(p)] = true
			pairs = append(pairs, p)
		}
	}

	return pairs
}

func pairKey(p qaPair) string {
	return strings.ToLower(p.Question) + "\x00" + strings.ToLower(p.Answer)
}

func hasQuestionPrefix(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(line, "Q:") ||
		strings.HasPrefix(line, "Question:") ||
		strings.HasPrefix(lower, "k:") ||
		strings.HasPrefix(lower, "klausimas:")
}

func hasAnswerPrefix(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(line, "A:") ||
		strings.HasPrefix(line, "Answer:") ||
		strings.HasPrefix(lower, "a:") ||
		strings.HasPrefix(lower, "atsakymas:")
}

func afterColon(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return strings.TrimSpace(line)
}
