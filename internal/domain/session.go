// Package domain contains core domain types for the support chat relay.
package domain

import (
	"time"
)

// Session is a single visitor's conversation thread, identified by an
// opaque visitor-supplied key.
type Session struct {
	SessionKey   string    `json:"sessionKey"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	HandedOff    bool      `json:"handedOffToAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// OriginMetadata describes where a visitor connection came from.
type OriginMetadata struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// SessionSummary pairs a session with its most recent message for
// operator dashboard listings.
type SessionSummary struct {
	Session
	LastMessage *Message `json:"lastMessage,omitempty"`
}
