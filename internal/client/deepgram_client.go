package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/scribehub/api/internal/config"
)

// DeepgramClient handles communication with the Deepgram pre-recorded API
type DeepgramClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	language   string
}

// ListenResponse is the subset of the /listen response the pipeline reads
type ListenResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
		Channels  int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcript returns the first alternative of the first channel
func (r *ListenResponse) Transcript() string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return r.Results.Channels[0].Alternatives[0].Transcript
}

// NewDeepgramClient creates a new Deepgram API client
func NewDeepgramClient(cfg *config.DeepgramConfig) *DeepgramClient {
	return &DeepgramClient{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
	}
}

// Listen sends raw audio for transcription
func (c *DeepgramClient) Listen(ctx context.Context, audio []byte, contentType string) (*ListenResponse, error) {
	query := url.Values{}
	query.Set("model", c.model)
	query.Set("language", c.language)
	query.Set("smart_format", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/listen?"+query.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var listenResp ListenResponse
	if err := json.Unmarshal(respBody, &listenResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &listenResp, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *DeepgramClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}
