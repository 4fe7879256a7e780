package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/aimbrill/supportchat/internal/domain"
	"github.com/aimbrill/supportchat/internal/responder"
	"github.com/aimbrill/supportchat/internal/store"
)

// handoffAckBody is the single system-authored acknowledgment appended when
// a visitor asks for a human.
const handoffAckBody = "Thanks for reaching out! I'm connecting you with our support team. Someone will be with you shortly."

const defaultHistoryWindow = 10

// Orchestrator drives the per-session state machine: it serializes a
// conversation's writes through the log, decides whether the next reply
// comes from the assistant or waits for a human, and fans results out to
// the right audiences.
type Orchestrator struct {
	repo          store.Repository
	hub           *Hub
	gateway       responder.Responder
	detector      HandoffDetector
	historyWindow int
}

// NewOrchestrator creates an orchestrator. A nil detector falls back to the
// default regexp heuristic; historyWindow <= 0 falls back to the default.
func NewOrchestrator(repo store.Repository, hub *Hub, gateway responder.Responder, detector HandoffDetector, historyWindow int) *Orchestrator {
	if detector == nil {
		detector = NewRegexpDetector()
	}
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Orchestrator{
		repo:          repo,
		hub:           hub,
		gateway:       gateway,
		detector:      detector,
		historyWindow: historyWindow,
	}
}

// Join upserts the session. Transient storage errors are logged but not
// surfaced to the caller; a later message append retries creation.
func (o *Orchestrator) Join(ctx context.Context, sessionKey string, origin *domain.OriginMetadata) {
	if _, err := o.repo.CreateOrTouchSession(ctx, sessionKey, origin); err != nil {
		slog.Error("Failed to upsert session on join", "session_key", sessionKey, "error", err)
	}
}

// VisitorMessage processes one inbound visitor message: upsert, append,
// fan-out, then the assistant/handoff decision.
func (o *Orchestrator) VisitorMessage(ctx context.Context, from Sink, sessionKey, text string, ts time.Time) {
	// Upsert before append so the message never references a missing session.
	sess, err := o.repo.CreateOrTouchSession(ctx, sessionKey, nil)
	if err != nil {
		slog.Error("Failed to upsert session", "session_key", sessionKey, "error", err)
		return
	}

	msg := &domain.Message{
		SessionKey: sessionKey,
		Sender:     domain.SenderVisitor,
		Body:       text,
		Timestamp:  ts,
	}
	if err := o.repo.AppendMessage(ctx, msg); err != nil {
		// No ack is sent; the client treats the missing ack as failure.
		slog.Error("Failed to append visitor message", "session_key", sessionKey, "error", err)
		return
	}

	o.hub.ToOperators(newMessageEvent(msg))
	if from != nil {
		from.Deliver(ackEvent(msg.ID))
	}

	// Eligibility: current config, handoff flag, intent heuristic. The
	// config is re-read on every message so changes apply immediately.
	cfg, cfgErr := o.repo.AssistantConfig(ctx)
	wantsHuman := o.detector.Match(text)

	if wantsHuman && !sess.HandedOff {
		o.handoff(ctx, sessionKey)
		return
	}
	if sess.HandedOff || wantsHuman {
		return
	}
	if cfgErr != nil {
		slog.Error("Failed to read assistant config", "session_key", sessionKey, "error", cfgErr)
		return
	}
	if !cfg.Enabled {
		return
	}

	o.invokeAssistant(ctx, sessionKey, text, cfg)
}

// OperatorMessage appends an operator reply and hands the session off to
// human handling.
func (o *Orchestrator) OperatorMessage(ctx context.Context, sessionKey, text string, ts time.Time) {
	if _, err := o.repo.CreateOrTouchSession(ctx, sessionKey, nil); err != nil {
		slog.Error("Failed to upsert session", "session_key", sessionKey, "error", err)
		return
	}

	msg := &domain.Message{
		SessionKey: sessionKey,
		Sender:     domain.SenderOperator,
		Body:       text,
		Timestamp:  ts,
	}
	if err := o.repo.AppendMessage(ctx, msg); err != nil {
		slog.Error("Failed to append operator message", "session_key", sessionKey, "error", err)
		return
	}

	// Once an operator replies the assistant stays out of the conversation.
	if err := o.repo.SetHandedOff(ctx, sessionKey); err != nil {
		slog.Error("Failed to set handoff flag", "session_key", sessionKey, "error", err)
	}

	o.hub.ToRoom(sessionKey, newMessageEvent(msg))
	o.hub.ToOperators(sessionListChangedEvent())
}

// Typing fans a typing indicator out without persistence: visitor typing
// goes to all operators, operator typing only to the session's group.
func (o *Orchestrator) Typing(role Role, sessionKey string, isTyping bool) {
	switch role {
	case RoleOperator:
		o.hub.ToRoom(sessionKey, typingEvent(sessionKey, role, isTyping))
	default:
		o.hub.ToOperators(typingEvent(sessionKey, role, isTyping))
	}
}

// handoff executes the AssistantEligible -> HandedOff transition: persist
// the flag, notify operators, and acknowledge to the visitor. The flag is
// monotonic; there is no path back.
func (o *Orchestrator) handoff(ctx context.Context, sessionKey string) {
	if err := o.repo.SetHandedOff(ctx, sessionKey); err != nil {
		slog.Error("Failed to set handoff flag", "session_key", sessionKey, "error", err)
		return
	}

	o.hub.ToOperators(handoffRequestedEvent(sessionKey))

	ack := &domain.Message{
		SessionKey: sessionKey,
		Sender:     domain.SenderAssistant,
		Body:       handoffAckBody,
		Timestamp:  time.Now(),
	}
	if err := o.repo.AppendMessage(ctx, ack); err != nil {
		slog.Error("Failed to append handoff acknowledgment", "session_key", sessionKey, "error", err)
		return
	}
	o.hub.ToRoom(sessionKey, newMessageEvent(ack))

	slog.Info("Session handed off to operators", "session_key", sessionKey)
}

// invokeAssistant calls the responder gateway and delivers the reply. The
// thinking indicator is reset exactly once on every path, including gateway
// failures, so the client-visible spinner never sticks.
func (o *Orchestrator) invokeAssistant(ctx context.Context, sessionKey, text string, cfg *domain.AssistantConfig) {
	o.hub.ToRoom(sessionKey, thinkingEvent(sessionKey, true))
	defer o.hub.ToRoom(sessionKey, thinkingEvent(sessionKey, false))

	history, err := o.repo.ListRecentMessages(ctx, sessionKey, o.historyWindow)
	if err != nil {
		slog.Error("Failed to load conversation history", "session_key", sessionKey, "error", err)
		return
	}

	reply, err := o.gateway.Respond(ctx, sessionKey, history, text, cfg)
	if err != nil {
		// The visitor sees no error; an operator may still respond.
		slog.Error("Assistant reply failed", "session_key", sessionKey, "provider", cfg.Provider, "error", err)
		return
	}

	msg := &domain.Message{
		SessionKey: sessionKey,
		Sender:     domain.SenderAssistant,
		Body:       reply,
		Timestamp:  time.Now(),
	}
	if err := o.repo.AppendMessage(ctx, msg); err != nil {
		slog.Error("Failed to append assistant reply", "session_key", sessionKey, "error", err)
		return
	}

	o.hub.ToRoom(sessionKey, newMessageEvent(msg))
	o.hub.ToOperators(sessionListChangedEvent())
}
