package document

// Document is the structured form of one input source. It is built once by the
// extractor and treated as read-only by every later stage.
type Document struct {
	ID       string
	Title    string
	Language string // ISO 639-1 code, "en" when detection is inconclusive
	Sections []Section

	// PageCount is the page-equivalent size used by the coverage planner.
	// For PDFs it is the real page count; for everything else it is derived
	// from character length.
	PageCount int
	CharCount int
	WordCount int
}

// Section is a contiguous, non-overlapping slice of the input in original order.
type Section struct {
	Title     string
	PageStart int
	PageEnd   int
	Text      string
}

// Chunk is the unit of content analysis: a bounded span of section text with a
// precomputed weight. Chunks reference their section by index, they do not own it.
type Chunk struct {
	Index     int
	Section   int
	PageStart int
	PageEnd   int
	Text      string
	Weight    float64
}

// DraftCard is a raw question/answer pair as produced by a provider, before the
// quality gate has seen it. Only the quality gate mutates drafts.
type DraftCard struct {
	Question string
	Answer   string
	Chunk    int    // source chunk index
	Provider string // provider that produced the draft
	Rejected bool
	Reason   string // set when Rejected
}

// FlashCard is a validated, final card. Immutable once created.
type FlashCard struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Chunk    int    `json:"chunk"`
	Provider string `json:"provider"`
}

// Deck is the ordered, deduplicated set of final cards for one run.
type Deck struct {
	Name  string      `json:"name"`
	Cards []FlashCard `json:"cards"`
}

// TotalWeight sums chunk weights.
func TotalWeight(chunks []Chunk) float64 {
	var sum float64
	for _, c := range chunks {
		sum += c.Weight
	}
	return sum
}
