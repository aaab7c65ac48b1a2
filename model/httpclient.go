package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shelvick/quoracle/errtag"
)

// HTTPConfig configures a generic JSON-over-HTTP model client. It is a
// reference adapter, not a provider SDK binding — concrete provider wire
// formats are left to whatever gateway answers BaseURL; this exists
// so the runtime can be exercised end to end against any JSON chat-style
// endpoint (self-hosted gateways, local test servers, etc.).
type HTTPConfig struct {
	ModelID string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient is a reference Client implementation that POSTs a simple JSON
// chat payload and expects a simple JSON chat reply, using a raw net/http
// client rather than a provider SDK.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClient builds an HTTPClient for one configured model id.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ID() string { return c.cfg.ModelID }

type httpChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type httpChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements Client.
func (c *HTTPClient) Generate(ctx context.Context, messages []Message, opts SamplingOpts) (*Reply, error) {
	payload, err := json.Marshal(httpChatRequest{
		Model:       c.cfg.ModelID,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, errtag.Wrap(errtag.KindInvalidParam, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errtag.Wrap(errtag.KindInvalidParam, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errtag.Wrap(errtag.KindRequestTimeout, "model call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errtag.Wrap(errtag.KindInvalidResponseFormat, "failed to read response body", err)
	}

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return nil, errtag.New(kind, fmt.Sprintf("model %s returned HTTP %d", c.cfg.ModelID, resp.StatusCode))
	}

	var parsed httpChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errtag.Wrap(errtag.KindInvalidResponseFormat, "failed to decode response", err)
	}
	if parsed.Error != nil {
		return nil, errtag.New(errtag.KindInvalidResponseFormat, parsed.Error.Message)
	}

	return &Reply{
		Content:      parsed.Content,
		FinishReason: parsed.FinishReason,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

func classifyStatus(status int) (errtag.Kind, bool) {
	switch status {
	case http.StatusUnauthorized:
		return errtag.KindAuthenticationFailed, true
	case http.StatusForbidden:
		return errtag.KindForbidden, true
	case http.StatusTooManyRequests:
		return errtag.KindRateLimitExceeded, true
	case http.StatusBadGateway:
		return errtag.KindBadGateway, true
	case http.StatusGatewayTimeout:
		return errtag.KindGatewayTimeout, true
	case http.StatusRequestTimeout:
		return errtag.KindRequestTimeout, true
	case http.StatusServiceUnavailable:
		return errtag.KindServiceUnavailable, true
	}
	if status >= 500 {
		return errtag.KindServiceUnavailable, true
	}
	return "", false
}
