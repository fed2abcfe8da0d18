package types

import "context"

// TokenUsage represents token consumption reported by an LLM provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add adds another TokenUsage to this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Generator is the LLM invocation surface consumed by this module. It takes
// an assembled prompt plus optional system text and returns the generated
// text with the provider's token accounting. The module uses the usage
// numbers only to cross-check its own cost estimates; nothing here depends
// on a generator being present.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, TokenUsage, error)
}
