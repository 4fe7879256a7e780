package domain

import (
	"time"
)

// Assistant backend providers.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// AssistantConfig is the singleton per-deployment assistant configuration.
// It is re-read before every assistant invocation so changes take effect on
// the next message without a restart.
type AssistantConfig struct {
	Enabled      bool    `json:"enabled"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultAssistantConfig is the row created on first read when no
// configuration exists yet. The assistant starts disabled.
func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{
		Enabled:      false,
		Provider:     ProviderOpenRouter,
		Model:        "z-ai/glm-4.5-air:free",
		SystemPrompt: "You are a helpful customer support assistant.",
		Temperature:  0.7,
		MaxTokens:    500,
	}
}

// AssistantConfigUpdate is a partial update; nil fields are left unchanged.
type AssistantConfigUpdate struct {
	Enabled      *bool    `json:"enabled,omitempty"`
	Provider     *string  `json:"provider,omitempty"`
	Model        *string  `json:"model,omitempty"`
	SystemPrompt *string  `json:"systemPrompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"maxTokens,omitempty"`
}
