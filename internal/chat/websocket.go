package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/aimbrill/supportchat/internal/domain"
	"github.com/coder/websocket"
)

// Role distinguishes visitor connections from operator connections.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleOperator Role = "operator"
)

// Session keys are visitor-supplied; reject anything that does not look
// like an opaque identifier.
var sessionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Conn is one live websocket connection, bound to at most one session group.
// sessionKey is only touched by the connection's read loop.
type Conn struct {
	ws         *websocket.Conn
	role       Role
	sessionKey string

	mu sync.Mutex // serializes writes to ws
}

// Deliver marshals and writes an event to the connection. Failures are a
// silent no-op (debug-logged): a dead connection gets no retry and no queue.
func (c *Conn) Deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal outbound event", "type", ev.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("Dropped delivery to closed connection", "type", ev.Type, "error", err)
	}
}

// WebSocketHandler upgrades connections and dispatches inbound events to
// the orchestrator.
type WebSocketHandler struct {
	orch          *Orchestrator
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new websocket handler.
func NewWebSocketHandler(orch *Orchestrator, hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		orch:          orch,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade. Operators
// identify themselves with ?role=operator (authentication happens upstream)
// and are subscribed to the global operator group for the connection's life.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	role := RoleVisitor
	if r.URL.Query().Get("role") == string(RoleOperator) {
		role = RoleOperator
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	conn := &Conn{ws: ws, role: role}
	if role == RoleOperator {
		h.hub.AddOperator(conn)
	}
	defer h.hub.Remove(conn)

	slog.Info("Chat connection opened", "role", role, "ip", r.RemoteAddr)
	h.readLoop(r.Context(), conn, r.RemoteAddr, r.UserAgent())
	slog.Info("Chat connection closed", "role", role, "ip", r.RemoteAddr)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop interprets inbound frames and dispatches each message event as
// its own task so a slow assistant call on one session never stalls reads
// or other sessions.
func (h *WebSocketHandler) readLoop(ctx context.Context, conn *Conn, remoteAddr, userAgent string) {
	for {
		_, data, err := conn.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("Discarding unparseable frame", "error", err)
			continue
		}

		if !sessionKeyPattern.MatchString(env.SessionKey) {
			slog.Warn("Rejected event with invalid session key", "type", env.Type)
			continue
		}

		switch env.Type {
		case EventJoin:
			h.handleJoin(ctx, conn, env, remoteAddr, userAgent)
		case EventVisitorMessage:
			if env.Text == "" {
				continue
			}
			go h.orch.VisitorMessage(ctx, conn, env.SessionKey, env.Text, parseTimestamp(env.Timestamp))
		case EventOperatorMessage:
			if conn.role != RoleOperator {
				slog.Warn("Rejected operator-message from visitor connection", "session_key", env.SessionKey)
				continue
			}
			if env.Text == "" {
				continue
			}
			go h.orch.OperatorMessage(ctx, env.SessionKey, env.Text, parseTimestamp(env.Timestamp))
		case EventTyping:
			h.orch.Typing(conn.role, env.SessionKey, env.IsTyping)
		default:
			slog.Debug("Ignoring unknown event type", "type", env.Type)
		}
	}
}

// handleJoin rebinds the connection's single session group and upserts the
// session. Subscription happens inline in the read loop so the binding
// stays single-valued; the storage upsert runs detached.
func (h *WebSocketHandler) handleJoin(ctx context.Context, conn *Conn, env Envelope, remoteAddr, userAgent string) {
	if conn.sessionKey != "" && conn.sessionKey != env.SessionKey {
		h.hub.LeaveRoom(conn.sessionKey, conn)
	}
	conn.sessionKey = env.SessionKey
	h.hub.JoinRoom(env.SessionKey, conn)

	origin := env.OriginMetadata
	if origin == nil {
		origin = &domain.OriginMetadata{IPAddress: remoteAddr, UserAgent: userAgent}
	}
	go h.orch.Join(ctx, env.SessionKey, origin)
}

// parseTimestamp parses a client-supplied RFC 3339 timestamp, falling back
// to the local clock.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now()
	}
	return ts
}
