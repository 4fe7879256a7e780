package domain

import (
	"time"
)

// SenderType classifies who authored a message.
type SenderType string

const (
	SenderVisitor   SenderType = "visitor"
	SenderOperator  SenderType = "operator"
	SenderAssistant SenderType = "assistant"
)

// Message is one immutable entry in a session's conversation log.
// Ordering within a session is by Timestamp, with insertion order as a
// stable tie-break.
type Message struct {
	ID         string     `json:"id"`
	SessionKey string     `json:"sessionKey"`
	Sender     SenderType `json:"sender"`
	Body       string     `json:"body"`
	Timestamp  time.Time  `json:"timestamp"`
	IsRead     bool       `json:"isRead"`
}
