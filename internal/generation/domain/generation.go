// Package domain defines the vocabulary of text generation: size policies,
// prompts, backends and the provider port.
package domain

import "context"

// SizePolicy is the response size a caller is entitled to.
type SizePolicy string

const (
	PolicyFull   SizePolicy = "FULL"
	PolicyTeaser SizePolicy = "TEASER"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message passed through as context.
type Turn struct {
	Role Role
	Text string
}

// Prompt is everything sent to a backend for one answer.
type Prompt struct {
	System  string
	History []Turn
	Message string
}

// Params are per-call generation settings.
type Params struct {
	MaxOutputTokens int32
	Temperature     float32
}

// Backend is one model identifier with its per-policy parameters.
type Backend struct {
	Model  string
	Full   Params
	Teaser Params
}

// ParamsFor returns the parameters for a size policy.
func (b Backend) ParamsFor(policy SizePolicy) Params {
	if policy == PolicyTeaser {
		return b.Teaser
	}
	return b.Full
}

// Thresholds are minimum accepted response lengths in runes, after
// trimming whitespace.
type Thresholds struct {
	Full   int
	Teaser int
}

// For returns the threshold for a size policy.
func (t Thresholds) For(policy SizePolicy) int {
	if policy == PolicyTeaser {
		return t.Teaser
	}
	return t.Full
}

// Request is a single backend call.
type Request struct {
	Model  string
	Prompt Prompt
	Params Params
}

// Provider sends requests to a generative text service. Implementations
// classify failures with the Err* sentinels of this package.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Result is an accepted generation.
type Result struct {
	Text     string
	Backend  string
	Attempts int
}
