package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/local/cardforge/internal/document"
	"github.com/local/cardforge/internal/extractor"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAI generates cards through the chat-completions API.
type OpenAI struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		http:    &http.Client{},
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIEndpoint,
	}
}

func (c *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAI) Generate(ctx context.Context, req Request) ([]document.DraftCard, error) {
	if c.apiKey == "" {
		return nil, &ProviderError{Provider: c.Name(), Err: errors.New("missing api key")}
	}

	langName := extractor.LanguageName(req.Language)

	system := fmt.Sprintf("You are an expert at creating educational flashcards in %s. Create meaningful questions that cover important concepts in the text.", langName)
	if req.Prompt != "" {
		system = fmt.Sprintf("You are an expert at creating educational flashcards in %s. %s", langName, req.Prompt)
	}

	lo := req.Quota - 2
	if lo < 1 {
		lo = 1
	}
	user := fmt.Sprintf(`Create %d-%d Q&A flashcards from the following text in %s.
Cover important facts, dates, people, events, and concepts in the text.
Each question should:
1. Ask exactly one specific thing
2. Not give away the answer in the question
3. Be clear and unambiguous
4. Test important concepts from the text
5. Focus on key facts that students should remember
6. Make questions self-contained so they can be understood without referring to the original text

Format each flashcard as:
Q: [question in %s]
A: [answer in %s]

Text:
%s`, lo, req.Quota+2, langName, langName, langName, req.Chunk.Text)

	payload := chatReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.4,
		MaxTokens:   maxTokensFor(req.Quota),
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
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
		return nil, &ProviderError{Provider: c.Name(), Err: fmt.Errorf("openai status %d", resp.StatusCode)}
	}

	var r chatResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Err: err}
	}
	if len(r.Choices) == 0 {
		return nil, &ProviderError{Provider: c.Name(), Err: errors.New("no choices")}
	}

	drafts := draftsFromPairs(parseQA(r.Choices[0].Message.Content), req.Chunk.Index, c.Name())
	drafts = filterDrafts(drafts, req.Lenient)
	return capDrafts(drafts, req.Quota), nil
}

func maxTokensFor(quota int) int {
	n := 600 + quota*75
	if n > 3500 {
		n = 3500
	}
	return n
}

func draftsFromPairs(pairs []qaPair, chunk int, provider string) []document.DraftCard {
	drafts := make([]document.DraftCard, 0, len(pairs))
	for _, p := range pairs {
		drafts = append(drafts, document.DraftCard{
			Question: p.Question,
			Answer:   p.Answer,
			Chunk:    chunk,
			Provider: provider,
		})
	}
	return drafts
}
