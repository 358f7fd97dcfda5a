package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/postpilot-hq/postpilot/internal/pkg/config"
)

// Generation is the outcome of one generative call, including the token
// spend reported by the service.
type Generation struct {
	Text       string
	TokensUsed int
	Model      string
}

// Generator calls the external generative-content service. It is a thin HTTP
// client; budget checks and fallbacks belong to the caller.
type Generator struct {
	cfg    config.GeneratorConfig
	client *http.Client
}

func NewGenerator(cfg config.GeneratorConfig, client *http.Client) *Generator {
	return &Generator{cfg: cfg, client: client}
}

// EstimateTokens gives a conservative upper bound for a generation request:
// the rough prompt size (~4 chars per token) plus the completion allowance.
func (g *Generator) EstimateTokens(topic string) int {
	return len(topic)/4 + g.cfg.MaxTokens
}

func (g *Generator) Model() string {
	return g.cfg.Model
}

func (g *Generator) Generate(ctx context.Context, topic string) (*Generation, error) {
	payload := map[string]interface{}{
		"model": g.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You write short, engaging social media posts. Reply with the post text only."},
			{"role": "user", "content": fmt.Sprintf("Write a social media post about: %s", topic)},
		},
		"max_tokens":  g.cfg.MaxTokens,
		"temperature": 0.7,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("generation service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("generation service returned no choices")
	}

	return &Generation{
		Text:       result.Choices[0].Message.Content,
		TokensUsed: result.Usage.TotalTokens,
		Model:      g.cfg.Model,
	}, nil
}
