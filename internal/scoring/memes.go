package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MemeClient scores an image plus optional caption against the multimodal
// hateful-content classifier. The classifier exposes a single GET
// endpoint taking text and image query parameters and returning
// {"Hateful": <probability>}.
type MemeClient struct {
	url    string
	client *http.Client
}

// NewMemeClient creates an image scorer for the given classifier endpoint.
func NewMemeClient(endpoint string) *MemeClient {
	return &MemeClient{
		url:    endpoint,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Score returns the combined hatefulness probability for the image.
func (c *MemeClient) Score(ctx context.Context, imageURL, text string) (float64, error) {
	q := url.Values{}
	q.Set("image", imageURL)
	if text != "" {
		q.Set("text", text)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("scoring: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("scoring: classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("scoring: classifier status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Hateful float64 `json:"Hateful"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("scoring: decode response: %w", err)
	}
	return parsed.Hateful, nil
}
