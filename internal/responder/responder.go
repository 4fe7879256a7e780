// Package responder produces assistant replies for support conversations.
// It is backend-agnostic from the orchestration core's perspective; the
// concrete backend is selected per call from the assistant configuration.
package responder

import (
	"context"
	"errors"

	"github.com/aimbrill/supportchat/internal/domain"
)

// Typed failures. All of them are recoverable: the caller logs the error,
// produces no assistant message, and the conversation continues.
var (
	// ErrMissingCredentials indicates the selected backend has no API key.
	ErrMissingCredentials = errors.New("responder: missing API credentials")
	// ErrUnknownProvider indicates the configured provider is not supported.
	ErrUnknownProvider = errors.New("responder: unknown provider")
	// ErrEmptyReply indicates the backend returned no completion.
	ErrEmptyReply = errors.New("responder: backend returned empty reply")
)

// Responder produces an assistant reply given a conversation's recent
// history (oldest-first) and the new visitor utterance.
type Responder interface {
	Respond(ctx context.Context, sessionKey string, history []*domain.Message, text string, cfg *domain.AssistantConfig) (string, error)
}
