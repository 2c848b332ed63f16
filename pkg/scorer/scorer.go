// Package scorer defines the query/record scoring capability and its
// HTTP model-server client. Scores are model-based: repeatability
// across calls is not guaranteed.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"carwatch/models"
)

// Scorer rates how well a query matches a record, in [0,1].
type Scorer interface {
	Score(ctx context.Context, queryText string, rec models.Record) (float64, error)
}

// HTTPScorer posts (query, record description) pairs to a model
// server's score endpoint.
type HTTPScorer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPScorer creates a client for the score endpoint.
func NewHTTPScorer(endpoint string, timeout time.Duration) *HTTPScorer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPScorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score sends one (query, record) pair to the model server.
func (s *HTTPScorer) Score(ctx context.Context, queryText string, rec models.Record) (float64, error) {
	body, err := json.Marshal(scoreRequest{Query: queryText, Text: rec.Description()})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("score request failed: status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read score response: %w", err)
	}

	var out scoreResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("failed to parse score response: %w", err)
	}
	if out.Score < 0 || out.Score > 1 {
		return 0, fmt.Errorf("score out of range: %f", out.Score)
	}
	return out.Score, nil
}
