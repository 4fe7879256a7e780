package responder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aimbrill/supportchat/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Gateway dispatches assistant requests to an OpenAI-compatible backend
// chosen per call from the assistant configuration. Clients are built once
// from deployment credentials; which one handles a request is decided by
// cfg.Provider, so a config change applies to the next message.
type Gateway struct {
	openAI     *openai.Client
	openRouter *openai.Client
}

// GatewayOptions holds deployment credentials for the supported backends.
// Empty keys leave the corresponding backend unavailable.
type GatewayOptions struct {
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	// Referer is sent to OpenRouter for app attribution.
	Referer string
	// AppTitle is sent to OpenRouter as the X-Title header.
	AppTitle string
}

// NewGateway creates a gateway with clients for each backend that has
// credentials configured.
func NewGateway(opts GatewayOptions) *Gateway {
	g := &Gateway{}
	if opts.OpenAIAPIKey != "" {
		g.openAI = openai.NewClient(opts.OpenAIAPIKey)
	}
	if opts.OpenRouterAPIKey != "" {
		cfg := openai.DefaultConfig(opts.OpenRouterAPIKey)
		cfg.BaseURL = openRouterBaseURL
		cfg.HTTPClient = &http.Client{
			Transport: &headerTransport{
				base: http.DefaultTransport,
				headers: map[string]string{
					"HTTP-Referer": opts.Referer,
					"X-Title":      opts.AppTitle,
				},
			},
		}
		g.openRouter = openai.NewClientWithConfig(cfg)
	}
	return g
}

// Respond calls the configured backend with the system prompt, the bounded
// conversation history, and the new utterance.
func (g *Gateway) Respond(ctx context.Context, sessionKey string, history []*domain.Message, text string, cfg *domain.AssistantConfig) (string, error) {
	client, err := g.clientFor(cfg.Provider)
	if err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: cfg.SystemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleAssistant
		if m.Sender == domain.SenderVisitor {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Body,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion for session %s: %w", sessionKey, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Gateway) clientFor(provider string) (*openai.Client, error) {
	switch provider {
	case domain.ProviderOpenAI:
		if g.openAI == nil {
			return nil, fmt.Errorf("%w for provider %q", ErrMissingCredentials, provider)
		}
		return g.openAI, nil
	case domain.ProviderOpenRouter:
		if g.openRouter == nil {
			return nil, fmt.Errorf("%w for provider %q", ErrMissingCredentials, provider)
		}
		return g.openRouter, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
