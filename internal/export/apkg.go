package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/cardforge/internal/document"
)

// APKGClient asks an external packaging service to build the .apkg binary
// and saves the result locally. The deck goes over the wire as plain JSON.
type APKGClient struct {
	http    *http.Client
	baseURL string
	outDir  string
}

func NewAPKG(baseURL, outDir string) *APKGClient {
	return &APKGClient{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		outDir:  outDir,
	}
}

func (c *APKGClient) Name() string { return "apkg" }

type apkgCard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type apkgReq struct {
	DeckName string     `json:"deck_name"`
	Cards    []apkgCard `json:"cards"`
}

func (c *APKGClient) Export(ctx context.Context, deck document.Deck) (string, error) {
	payload := apkgReq{DeckName: deck.Name}
	for _, card := range deck.Cards {
		payload.Cards = append(payload.Cards, apkgCard{Question: card.Question, Answer: card.Answer})
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/package", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("apkg service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("apkg service status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(c.outDir, safeFilename(deck.Name)+".apkg")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("save apkg: %w", err)
	}

	log.Info().Str("path", path).Int("cards", len(deck.Cards)).Msg("deck packaged as apkg")
	return path, nil
}
