// Package ollama provides an Ollama-backed implementation of the text
// normalization capability: turning a free-text part description into the
// canonical 2-4 word German term the origin catalog indexes on.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const normalizePrompt = `You are a helpful assistant. Your task is to normalize an automotive part name so it can be matched with German product titles.

Remove brand names, fix spelling errors, and if in English, translate to German.
Return only 2-4 normalized words in German. No explanations.

Query: %s

Output:`

// Client normalizes part queries via Ollama's HTTP generate API.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates an Ollama normalization client.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type generateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResp struct {
	Response string `json:"response"`
}

// Normalize returns the canonical search term for a free-text part query.
// positionHint ("front"/"rear"), when set, is folded into the query so the
// model can disambiguate axle-specific parts.
func (c *Client) Normalize(ctx context.Context, text, positionHint string) (string, error) {
	query := text
	if positionHint != "" {
		query = text + " (" + positionHint + ")"
	}

	body, _ := json.Marshal(generateReq{
		Model:  c.model,
		Prompt: fmt.Sprintf(normalizePrompt, query),
		Stream: false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate: status %d", resp.StatusCode)
	}

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}

	term := strings.TrimSpace(result.Response)
	if term == "" {
		return "", fmt.Errorf("ollama generate: empty response")
	}
	return term, nil
}
