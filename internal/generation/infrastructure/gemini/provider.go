// Package gemini implements the generation provider on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/augur/internal/generation/domain"
	"google.golang.org/genai"
)

// Provider calls Gemini models through google.golang.org/genai.
type Provider struct {
	client *genai.Client
}

var _ domain.Provider = (*Provider)(nil)

// New creates a provider for the Gemini API.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name identifies the provider in logs.
func (p *Provider) Name() string { return "gemini" }

// Generate sends one request and returns the candidate text.
func (p *Provider) Generate(ctx context.Context, req domain.Request) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents(req.Prompt), config(req))
	if err != nil {
		return "", classifyError(err)
	}
	return extractText(resp)
}

func config(req domain.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: req.Params.MaxOutputTokens,
	}
	if req.Params.Temperature > 0 {
		t := req.Params.Temperature
		cfg.Temperature = &t
	}
	if req.Prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Prompt.System, genai.RoleUser)
	}
	return cfg
}

func contents(prompt domain.Prompt) []*genai.Content {
	out := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, turn := range prompt.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(turn.Text, role))
	}
	return append(out, genai.NewContentFromText(prompt.Message, genai.RoleUser))
}

// extractText returns the first candidate's text, skipping thought parts.
// Blocked prompts and safety stops map to domain.ErrBackendSafety.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini: empty response: %w", domain.ErrBackendUnavailable)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked (%s): %w", fb.BlockReason, domain.ErrBackendSafety)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates: %w", domain.ErrBackendUnavailable)
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return "", fmt.Errorf("gemini: finished with %s: %w", cand.FinishReason, domain.ErrBackendSafety)
	}
	if cand.Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// classifyError maps SDK errors onto the provider sentinels.
func classifyError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return fmt.Errorf("gemini: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("gemini: %w: %w", statusError(code), err)
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrBackendAuth
	case http.StatusTooManyRequests:
		return domain.ErrBackendRateLimited
	default:
		return domain.ErrBackendUnavailable
	}
}
