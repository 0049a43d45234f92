package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/local/cardforge/internal/config"
	"github.com/local/cardforge/internal/document"
)

func testChunk(text string) document.Chunk {
	return document.Chunk{Index: 3, Text: text, Weight: float64(len(text))}
}

func TestParseQA(t *testing.T) {
	content := `Q: When was the treaty signed?
A: In 1918.

Question: Who negotiated the terms?
Answer: The allied delegations.

Q: What did the terms require?
The demilitarization of the border.`

	pairs := parseQA(content)
	if len(pairs) != 3 {
		t.Fatalf("pairs = %d, want 3: %+v", len(pairs), pairs)
	}
	if pairs[0].Question != "When was the treaty signed?" || pairs[0].Answer != "In 1918." {
		t.Errorf("pair 0 = %+v", pairs[0])
	}
	if pairs[1].Answer != "The allied delegations." {
		t.Errorf("pair 1 = %+v", pairs[1])
	}
	if pairs[2].Answer != "The demilitarization of the border." {
		t.Errorf("bare line not treated as answer: %+v", pairs[2])
	}
}

func TestParseQAInlineFallback(t *testing.T) {
	pairs := parseQA("Q: What year did it end? A: 1918")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d: %+v", len(pairs), pairs)
	}
	if pairs[0].Question != "What year did it end?" || pairs[0].Answer != "1918" {
		t.Errorf("pair = %+v", pairs[0])
	}
}

func TestParseQANoDuplicatesFromRescan(t *testing.T) {
	// The same pair in two-line and inline form must come out once.
	content := `Q: What year did it end?
A: 1918

Q: What year did it end? A: 1918`

	pairs := parseQA(content)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1: %+v", len(pairs), pairs)
	}
	if pairs[0].Question != "What year did it end?" || pairs[0].Answer != "1918" {
		t.Errorf("pair = %+v", pairs[0])
	}
}

func TestHeuristicGenerate(t *testing.T) {
	text := "The treaty was signed in 1918 by twelve nations. " +
		"Nothing notable here at all honestly. " +
		"According to research, the NATO alliance formed later. " +
		"Short one. "
	h := NewHeuristic()

	drafts, err := h.Generate(context.Background(), Request{Chunk: testChunk(text), Quota: 10})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2: %+v", len(drafts), drafts)
	}
	for _, d := range drafts {
		if !strings.HasSuffix(d.Question, "?") {
			t.Errorf("question missing terminal ?: %q", d.Question)
		}
		if d.Provider != "heuristic" || d.Chunk != 3 {
			t.Errorf("draft metadata = %+v", d)
		}
	}
}

func TestHeuristicDateMode(t *testing.T) {
	text := "The battle happened on Jan 5, 1944 near the coast. " +
		"The total was 5000 soldiers involved there. "
	points := KeyPoints(text, "extract only dates")
	if len(points) != 1 {
		t.Fatalf("points = %d, want only the date sentence: %v", len(points), points)
	}
	if !strings.Contains(points[0], "Jan 5, 1944") {
		t.Errorf("point = %q", points[0])
	}
}

func TestStatementToQuestion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Is the model deterministic.", "Is the model deterministic?"},
		{"The treaty was signed in 1918.", "The treaty was signed in 1918?"},
		{"Twelve nations signed it.", "What is Twelve nations signed it?"},
	}
	for _, tt := range tests {
		if got := StatementToQuestion(tt.in); got != tt.want {
			t.Errorf("StatementToQuestion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterDrafts(t *testing.T) {
	drafts := []document.DraftCard{
		{Question: "When was the treaty signed?", Answer: "In 1918."},
		{Question: "Why?", Answer: "Because of the armistice."},
		{Question: "When was the treaty signed?", Answer: "1918"},
	}
	strict := filterDrafts(append([]document.DraftCard(nil), drafts...), false)
	if len(strict) != 1 {
		t.Errorf("strict kept %d, want 1: %+v", len(strict), strict)
	}
	lenient := filterDrafts(append([]document.DraftCard(nil), drafts...), true)
	if len(lenient) != 3 {
		t.Errorf("lenient kept %d, want 3", len(lenient))
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Q: When was the treaty signed?\nA: In the year 1918."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test", "gpt-4o-mini")
	c.baseURL = srv.URL

	drafts, err := c.Generate(context.Background(), Request{
		Chunk: testChunk("The treaty was signed in 1918."), Quota: 5, Language: "en",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Answer != "In the year 1918." {
		t.Errorf("drafts = %+v", drafts)
	}
}

func TestOpenAIRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test", "gpt-4o-mini")
	c.baseURL = srv.URL

	_, err := c.Generate(context.Background(), Request{Chunk: testChunk("x"), Quota: 1})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("want ErrRateLimited, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "openai" {
		t.Errorf("want ProviderError from openai, got %v", err)
	}
}

func TestLocalGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/summarize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summary":"The treaty was signed in 1918. The terms were strict and detailed."}`))
	}))
	defer srv.Close()

	c := NewLocal(srv.URL, "facebook/bart-large-cnn")
	drafts, err := c.Generate(context.Background(), Request{Chunk: testChunk("long text"), Quota: 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d: %+v", len(drafts), drafts)
	}
	if drafts[0].Provider != "local" {
		t.Errorf("provider = %q", drafts[0].Provider)
	}
}

type fakeProvider struct {
	name   string
	drafts []document.DraftCard
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Generate(_ context.Context, _ Request) ([]document.DraftCard, error) {
	f.calls++
	return f.drafts, f.err
}

type fakeGate struct {
	tripped map[string]int
	blocked map[string]bool
}

func newFakeGate() *fakeGate {
	return &fakeGate{tripped: map[string]int{}, blocked: map[string]bool{}}
}
func (g *fakeGate) Acquire(_ context.Context, provider string) (func(), error) {
	if g.blocked[provider] {
		return nil, errors.New("cooling down")
	}
	return func() {}, nil
}
func (g *fakeGate) Trip(provider string)  { g.tripped[provider]++ }
func (g *fakeGate) Clear(provider string) {}

func TestFallbackDowngrades(t *testing.T) {
	remote := &fakeProvider{name: "openai", err: &ProviderError{Provider: "openai", Err: ErrRateLimited}}
	final := &fakeProvider{name: "heuristic", drafts: []document.DraftCard{
		{Question: "What is covered by the summary?", Answer: "Key facts."},
	}}
	gate := newFakeGate()

	f := NewFallback([]Provider{remote, final}, gate, time.Second)
	drafts, used, downgrades := f.Analyze(context.Background(), Request{Chunk: testChunk("x"), Quota: 3})

	if len(drafts) != 1 || used != "heuristic" {
		t.Fatalf("drafts = %d, used = %q", len(drafts), used)
	}
	if len(downgrades) != 1 {
		t.Fatalf("downgrades = %+v", downgrades)
	}
	d := downgrades[0]
	if d.From != "openai" || d.To != "heuristic" || d.Reason != "rate_limited" || d.Chunk != 3 {
		t.Errorf("downgrade = %+v", d)
	}
	if gate.tripped["openai"] != 1 {
		t.Errorf("breaker not tripped: %v", gate.tripped)
	}
}

func TestFallbackZeroQuota(t *testing.T) {
	remote := &fakeProvider{name: "openai"}
	f := NewFallback([]Provider{remote}, nil, 0)
	drafts, used, _ := f.Analyze(context.Background(), Request{Chunk: testChunk("x"), Quota: 0})
	if drafts != nil || used != "" {
		t.Errorf("zero quota invoked providers: %v %q", drafts, used)
	}
	if remote.calls != 0 {
		t.Errorf("provider called %d times", remote.calls)
	}
}

func TestFallbackSkipsCoolingProvider(t *testing.T) {
	remote := &fakeProvider{name: "openai", drafts: []document.DraftCard{{Question: "q", Answer: "a"}}}
	final := &fakeProvider{name: "heuristic", drafts: []document.DraftCard{{Question: "q2", Answer: "a2"}}}
	gate := newFakeGate()
	gate.blocked["openai"] = true

	f := NewFallback([]Provider{remote, final}, gate, time.Second)
	_, used, downgrades := f.Analyze(context.Background(), Request{Chunk: testChunk("x"), Quota: 1})
	if used != "heuristic" {
		t.Errorf("used = %q", used)
	}
	if remote.calls != 0 {
		t.Errorf("blocked provider was still called")
	}
	if len(downgrades) != 1 || downgrades[0].From != "openai" {
		t.Errorf("downgrades = %+v", downgrades)
	}
}

func TestBuildChain(t *testing.T) {
	tests := []struct {
		name   string
		pc     config.ProviderConfig
		expect []string
	}{
		{"none", config.ProviderConfig{Engine: config.ProviderNone}, []string{"heuristic"}},
		{"transformers", config.ProviderConfig{Engine: config.ProviderTransformers, LocalModelURL: "http://localhost:9000"}, []string{"local", "heuristic"}},
		{"openai", config.ProviderConfig{Engine: config.ProviderOpenAI, OpenAIKey: "k"}, []string{"openai", "heuristic"}},
		{"openai with local", config.ProviderConfig{Engine: config.ProviderOpenAI, OpenAIKey: "k", LocalModelURL: "http://localhost:9000"}, []string{"openai", "local", "heuristic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := BuildChain(tt.pc)
			if len(chain) != len(tt.expect) {
				t.Fatalf("chain length = %d, want %d", len(chain), len(tt.expect))
			}
			for i, want := range tt.expect {
				if chain[i].Name() != want {
					t.Errorf("tier %d = %q, want %q", i, chain[i].Name(), want)
				}
			}
		})
	}
}
