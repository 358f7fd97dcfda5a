package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/pkg/config"
	"golang.org/x/time/rate"
)

// Client talks to the external publishing service. Outbound calls are paced
// with a local limiter so bursts inside one sweep don't trip the remote API;
// the governor's sliding-window limit is enforced separately by the caller.
type Client struct {
	cfg     config.PublisherConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.PublisherConfig, client *http.Client) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Publish sends the post text and returns the remote post identifier.
func (c *Client) Publish(ctx context.Context, userID uuid.UUID, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]string{
		"user_id": userID.String(),
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("publishing service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode publish response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("publishing service returned no post id")
	}

	return result.ID, nil
}
