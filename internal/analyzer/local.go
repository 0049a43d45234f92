package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/local/cardforge/internal/document"
	"github.com/local/cardforge/internal/structurer"
)

// Local generates cards through a local transformer summarization server.
// The server condenses a chunk into summary sentences; each sentence becomes
// a statement-derived card.
type Local struct {
	http    *http.Client
	baseURL string
	model   string
}

func NewLocal(baseURL, model string) *Local {
	return &Local{
		http:    &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (c *Local) Name() string { return "local" }

type summarizeReq struct {
	Text      string `json:"text"`
	Model     string `json:"model,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

type summarizeResp struct {
	Summary string `json:"summary"`
}

func (c *Local) Generate(ctx context.Context, req Request) ([]document.DraftCard, error) {
	if c.baseURL == "" {
		return nil, &ProviderError{Provider: c.Name(), Err: fmt.Errorf("no endpoint configured")}
	}

	payload := summarizeReq{
		Text:      req.Chunk.Text,
		Model:     c.model,
		MaxLength: 60 + req.Quota*30,
	}
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ProviderError{Provider: c.Name(), Err: ErrRateLimited}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Provider: c.Name(), Err: fmt.Errorf("local model status %d", resp.StatusCode)}
	}

	var r summarizeResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Err: err}
	}
	if strings.TrimSpace(r.Summary) == "" {
		return nil, &ProviderError{Provider: c.Name(), Err: fmt.Errorf("empty summary")}
	}

	var drafts []document.DraftCard
	for _, sent := range structurer.SplitSentences(r.Summary) {
		sent = strings.TrimRight(strings.TrimSpace(sent), ".!?")
		if sent == "" {
			continue
		}
		drafts = append(drafts, document.DraftCard{
			Question: StatementToQuestion(sent),
			Answer:   sent,
			Chunk:    req.Chunk.Index,
			Provider: c.Name(),
		})
	}

	drafts = filterDrafts(drafts, req.Lenient)
	return capDrafts(drafts, req.Quota), nil
}
