// Package openrouter implements the generation provider against an
// OpenAI-compatible chat completions endpoint such as OpenRouter.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/augur/internal/generation/domain"
)

// maxErrorBody caps how much of an error response is kept in the error.
const maxErrorBody = 512

// MaxResponseBytes caps how much of a response body is read.
const MaxResponseBytes = 4 << 20

// Client calls /chat/completions.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

var _ domain.Provider = (*Client)(nil)

// NewClient creates a client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, apiKey, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ModelID maps a bare Gemini model name to its OpenRouter identifier.
// Names that already carry a vendor prefix are returned unchanged.
func ModelID(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return "google/" + model
}

// Name identifies the provider in logs.
func (c *Client) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends one chat completion request.
func (c *Client) Generate(ctx context.Context, in domain.Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       in.Model,
		Messages:    messages(in.Prompt),
		MaxTokens:   in.Params.MaxOutputTokens,
		Temperature: in.Params.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http call: %w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w: %w", domain.ErrBackendUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return "", fmt.Errorf("upstream status %d: %w: %s", resp.StatusCode, statusError(resp.StatusCode), string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w: %w", domain.ErrBackendUnavailable, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", domain.ErrBackendUnavailable)
	}

	choice := chatResp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("finished with content_filter: %w", domain.ErrBackendSafety)
	}
	return choice.Message.Content, nil
}

func messages(prompt domain.Prompt) []chatMessage {
	out := make([]chatMessage, 0, len(prompt.History)+2)
	if prompt.System != "" {
		out = append(out, chatMessage{Role: "system", Content: prompt.System})
	}
	for _, turn := range prompt.History {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "assistant"
		}
		out = append(out, chatMessage{Role: role, Content: turn.Text})
	}
	return append(out, chatMessage{Role: "user", Content: prompt.Message})
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired:
		return domain.ErrBackendAuth
	case http.StatusTooManyRequests:
		return domain.ErrBackendRateLimited
	default:
		return domain.ErrBackendUnavailable
	}
}
