package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestedAttributes is the set of toxicity sub-attributes requested from
// the comment analysis API.
var RequestedAttributes = []string{
	"SEVERE_TOXICITY",
	"PROFANITY",
	"IDENTITY_ATTACK",
	"THREAT",
	"TOXICITY",
	"FLIRTATION",
}

// PerspectiveClient scores text against a Perspective-style comment
// analysis endpoint.
type PerspectiveClient struct {
	url    string
	key    string
	client *http.Client
}

// NewPerspectiveClient creates a text scorer for the given endpoint and
// API key.
func NewPerspectiveClient(url, key string) *PerspectiveClient {
	return &PerspectiveClient{
		url:    url,
		key:    key,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type perspectiveRequest struct {
	Comment struct {
		Text string `json:"text"`
	} `json:"comment"`
	Languages           []string                   `json:"languages"`
	RequestedAttributes map[string]struct{}        `json:"requestedAttributes"`
	DoNotStore          bool                       `json:"doNotStore"`
}

type perspectiveResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// Score requests the configured attributes for text and returns each
// attribute's summary score.
func (c *PerspectiveClient) Score(ctx context.Context, text string) (map[string]float64, error) {
	reqBody := perspectiveRequest{
		Languages:           []string{"en"},
		RequestedAttributes: make(map[string]struct{}, len(RequestedAttributes)),
		DoNotStore:          true,
	}
	reqBody.Comment.Text = text
	for _, attr := range RequestedAttributes {
		reqBody.RequestedAttributes[attr] = struct{}{}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("scoring: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"?key="+c.key, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("scoring: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring: perspective request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scoring: perspective status %d: %s", resp.StatusCode, body)
	}

	var parsed perspectiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("scoring: decode response: %w", err)
	}

	scores := make(map[string]float64, len(parsed.AttributeScores))
	for attr, v := range parsed.AttributeScores {
		scores[attr] = v.SummaryScore.Value
	}
	return scores, nil
}
