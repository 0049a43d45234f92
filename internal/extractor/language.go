package extractor

import (
	"strings"
)

// langProfile pairs diacritic characters and high-frequency function words
// that mark a language in running text.
type langProfile struct {
	code  string
	chars string
	words []string
}

var langProfiles = []langProfile{
	{"lt", "ąčęėįšųūž", []string{"ir", "yra", "su", "bei", "tai", "kad", "nėra", "arba", "tik"}},
	{"en", "", []string{"the", "and", "or", "but", "is", "are", "was", "were", "that", "this"}},
	{"de", "äöüß", []string{"der", "die", "und", "in", "den", "von", "zu", "das", "mit", "sich"}},
	{"fr", "àâäéèêëïîôöùûüÿç", []string{"le", "la", "les", "et", "à", "des", "du", "un", "une", "dans"}},
	{"es", "áéíóúüñ", []string{"el", "la", "de", "que", "y", "a", "en", "un", "es", "se"}},
	{"ru", "абвгдеёжзийклмнопрстуфхцчшщъыьэюя", []string{"и", "в", "не", "на", "я", "быть", "то", "он", "с", "а"}},
}

// DetectLanguage guesses the dominant language of text from character and
// function-word frequencies. Diacritic hits weigh ten times a word hit.
// Inconclusive input fails closed to "en".
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return "en"
	}

	// First ~2000 runes are enough of a sample.
	sample := []rune(strings.ToLower(text))
	if len(sample) > 2000 {
		sample = sample[:2000]
	}

	charCounts := make(map[rune]int, 64)
	for _, r := range sample {
		charCounts[r]++
	}

	wordCounts := make(map[string]int, 256)
	for _, w := range strings.FieldsFunc(string(sample), notLetter) {
		wordCounts[w]++
	}

	best := "en"
	bestScore := 0
	for _, p := range langProfiles {
		score := 0
		for _, r := range p.chars {
			score += charCounts[r] * 10
		}
		for _, w := range p.words {
			score += wordCounts[w]
		}
		if score > bestScore {
			best = p.code
			bestScore = score
		}
	}

	if bestScore == 0 {
		return "en"
	}
	return best
}

func notLetter(r rune) bool {
	if r >= 'a' && r <= 'z' {
		return false
	}
	// keep non-ASCII letters inside words
	return r < 0x80
}

var languageNames = map[string]string{
	"en": "English",
	"lt": "Lithuanian",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"ru": "Russian",
}

// LanguageName maps an ISO code to the English language name used when
// steering model prompts. Unknown codes pass through title-cased.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	if code == "" {
		return "English"
	}
	return strings.ToUpper(code[:1]) + code[1:]
}
