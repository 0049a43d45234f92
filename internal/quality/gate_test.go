package quality

import (
	"testing"

	"github.com/local/cardforge/internal/document"
)

func review(t *testing.T, chunkText string, drafts ...document.DraftCard) Result {
	t.Helper()
	return Review(drafts, func(int) string { return chunkText })
}

func TestReviewNormalizesQuestionMark(t *testing.T) {
	res := review(t, "",
		document.DraftCard{Question: "What ended the war.", Answer: "The armistice."},
		document.DraftCard{Question: "What ended the war??", Answer: "The armistice."},
	)
	if len(res.Accepted) != 2 {
		t.Fatalf("accepted = %d: %+v", len(res.Accepted), res.Rejected)
	}
	for _, c := range res.Accepted {
		if c.Question != "What ended the war?" {
			t.Errorf("question = %q", c.Question)
		}
	}
}

func TestReviewRejectsCompoundQuestions(t *testing.T) {
	res := review(t, "",
		document.DraftCard{Question: "When did it start? And when did it end?", Answer: "1914 and 1918."},
		document.DraftCard{Question: "What was signed and who signed it?", Answer: "The treaty, by twelve nations."},
	)
	if len(res.Accepted) != 0 {
		t.Fatalf("accepted = %+v", res.Accepted)
	}
	for _, c := range res.Rejected {
		if c.Reason != ReasonNotAtomic {
			t.Errorf("reason = %q, want %q", c.Reason, ReasonNotAtomic)
		}
		if !c.Rejected {
			t.Error("rejected flag not set")
		}
	}
}

func TestReviewRejectsVagueSubjects(t *testing.T) {
	res := review(t, "",
		document.DraftCard{Question: "What is it made of?", Answer: "Steel."},
		document.DraftCard{Question: "It was signed in 1918?", Answer: "Yes."},
		document.DraftCard{Question: "What is the bridge made of?", Answer: "Steel."},
	)
	if len(res.Accepted) != 1 || res.Accepted[0].Question != "What is the bridge made of?" {
		t.Fatalf("accepted = %+v", res.Accepted)
	}
	if len(res.Rejected) != 2 {
		t.Fatalf("rejected = %+v", res.Rejected)
	}
	for _, c := range res.Rejected {
		if c.Reason != ReasonVagueSubject {
			t.Errorf("reason = %q", c.Reason)
		}
	}
}

func TestReviewRewritesYesNoWithContext(t *testing.T) {
	res := review(t, "The treaty ended hostilities in 1918 after long talks.",
		document.DraftCard{Question: "Did the treaty end in 1918?", Answer: "Yes, in 1918.", Chunk: 0},
	)
	if len(res.Accepted) != 1 {
		t.Fatalf("rejected = %+v", res.Rejected)
	}
	if got := res.Accepted[0].Question; got != "When did the treaty end?" {
		t.Errorf("question = %q", got)
	}
}

func TestReviewDiscardsUnrepairableYesNo(t *testing.T) {
	res := review(t, "No matching year in this context.",
		document.DraftCard{Question: "Did the treaty end in 1918?", Answer: "Yes."},
		document.DraftCard{Question: "Is the model deterministic?", Answer: "Yes."},
	)
	if len(res.Accepted) != 0 {
		t.Fatalf("accepted = %+v", res.Accepted)
	}
	for _, c := range res.Rejected {
		if c.Reason != ReasonYesNo {
			t.Errorf("reason = %q", c.Reason)
		}
	}
}

func TestReviewKeepsStatementQuestions(t *testing.T) {
	res := review(t, "",
		document.DraftCard{Question: "The treaty was signed in 1918?", Answer: "Correct, 1918."},
	)
	if len(res.Accepted) != 1 {
		t.Fatalf("rejected = %+v", res.Rejected)
	}
}
