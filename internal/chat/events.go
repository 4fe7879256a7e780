// Package chat implements the live session orchestration core: per-connection
// actors, broadcast groups, the assistant/handoff state machine, and fan-out
// to visitors and operators.
package chat

import (
	"github.com/aimbrill/supportchat/internal/domain"
)

// Inbound event names.
const (
	EventJoin            = "join"
	EventVisitorMessage  = "visitor-message"
	EventOperatorMessage = "operator-message"
	EventTyping          = "typing"
)

// Outbound event names.
const (
	EventMessageAppended    = "message-appended"
	EventNewMessage         = "new-message"
	EventAssistantThinking  = "assistant-thinking"
	EventSessionListChanged = "session-list-changed"
	EventHandoffRequested   = "handoff-requested"
)

// Envelope is the wire frame for inbound client events.
type Envelope struct {
	Type           string                 `json:"type"`
	SessionKey     string                 `json:"sessionKey,omitempty"`
	Text           string                 `json:"text,omitempty"`
	Timestamp      string                 `json:"timestamp,omitempty"` // RFC 3339
	IsTyping       bool                   `json:"isTyping,omitempty"`
	OriginMetadata *domain.OriginMetadata `json:"originMetadata,omitempty"`
}

// Event is an outbound frame delivered to one or more connections.
type Event struct {
	Type       string          `json:"type"`
	SessionKey string          `json:"sessionKey,omitempty"`
	MessageID  string          `json:"messageId,omitempty"`
	Message    *domain.Message `json:"message,omitempty"`
	Role       Role            `json:"role,omitempty"`
	IsTyping   *bool           `json:"isTyping,omitempty"`
	IsThinking *bool           `json:"isThinking,omitempty"`
}

func newMessageEvent(msg *domain.Message) Event {
	return Event{Type: EventNewMessage, SessionKey: msg.SessionKey, Message: msg}
}

func ackEvent(messageID string) Event {
	return Event{Type: EventMessageAppended, MessageID: messageID}
}

func thinkingEvent(sessionKey string, thinking bool) Event {
	return Event{Type: EventAssistantThinking, SessionKey: sessionKey, IsThinking: &thinking}
}

func typingEvent(sessionKey string, role Role, isTyping bool) Event {
	return Event{Type: EventTyping, SessionKey: sessionKey, Role: role, IsTyping: &isTyping}
}

func handoffRequestedEvent(sessionKey string) Event {
	return Event{Type: EventHandoffRequested, SessionKey: sessionKey}
}

func sessionListChangedEvent() Event {
	return Event{Type: EventSessionListChanged}
}
