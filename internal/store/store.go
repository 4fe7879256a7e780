// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/aimbrill/supportchat/internal/domain"
)

// Repository defines the interface for persisting sessions, the
// conversation log, and assistant configuration.
type Repository interface {
	// CreateOrTouchSession creates the session if absent, otherwise updates
	// only its last-active timestamp. A creation race with an identical
	// concurrent request is absorbed, never surfaced. Returns the current row.
	CreateOrTouchSession(ctx context.Context, sessionKey string, origin *domain.OriginMetadata) (*domain.Session, error)

	// GetSession retrieves a session by key. Returns nil, nil when absent.
	GetSession(ctx context.Context, sessionKey string) (*domain.Session, error)

	// SetHandedOff marks a session as handed off to a human operator.
	// Idempotent; the flag never reverts.
	SetHandedOff(ctx context.Context, sessionKey string) error

	// ListSessionSummaries returns all sessions newest-active first, each
	// with its most recent message.
	ListSessionSummaries(ctx context.Context) ([]*domain.SessionSummary, error)

	// AppendMessage appends a message to the conversation log, assigning an
	// ID if unset. Fails if the referenced session does not exist.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns a session's messages ordered by timestamp, with
	// insertion order breaking ties.
	ListMessages(ctx context.Context, sessionKey string) ([]*domain.Message, error)

	// ListRecentMessages returns the most recent limit messages of a
	// session, oldest-first.
	ListRecentMessages(ctx context.Context, sessionKey string, limit int) ([]*domain.Message, error)

	// MarkMessageRead flags a message as read and returns the updated row.
	MarkMessageRead(ctx context.Context, id string) (*domain.Message, error)

	// AssistantConfig returns the deployment's assistant configuration,
	// creating the default row on first read.
	AssistantConfig(ctx context.Context) (*domain.AssistantConfig, error)

	// UpdateAssistantConfig applies a partial update and returns the result.
	UpdateAssistantConfig(ctx context.Context, upd domain.AssistantConfigUpdate) (*domain.AssistantConfig, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
