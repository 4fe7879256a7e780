package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aimbrill/supportchat/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the REST routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chats", func(r chi.Router) {
		r.Get("/", h.handleListChats)
		r.Post("/", h.handleCreateChat)
		r.Get("/{sessionKey}", h.handleGetChat)
	})
	r.Route("/api/messages", func(r chi.Router) {
		r.Get("/{sessionKey}", h.handleListMessages)
		r.Patch("/{id}/read", h.handleMarkRead)
	})
	r.Route("/api/assistant", func(r chi.Router) {
		r.Get("/config", h.handleGetAssistantConfig)
		r.Put("/config", h.handleUpdateAssistantConfig)
		r.Post("/toggle", h.handleToggleAssistant)
		r.Post("/test", h.handleTestAssistant)
	})
}

// handleListChats returns all sessions, newest-active first, each with its
// most recent message.
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.repo.ListSessionSummaries(r.Context())
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch chats")
		return
	}
	if summaries == nil {
		summaries = []*domain.SessionSummary{}
	}
	JSON(w, http.StatusOK, summaries)
}

type createChatRequest struct {
	SessionKey     string                 `json:"sessionKey"`
	OriginMetadata *domain.OriginMetadata `json:"originMetadata,omitempty"`
}

func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionKey == "" {
		Error(w, http.StatusBadRequest, "sessionKey is required")
		return
	}

	sess, err := h.repo.CreateOrTouchSession(r.Context(), req.SessionKey, req.OriginMetadata)
	if err != nil {
		slog.Error("Failed to create session", "session_key", req.SessionKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	JSON(w, http.StatusOK, sess)
}

type chatResponse struct {
	*domain.Session
	Messages []*domain.Message `json:"messages"`
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	sessionKey := chi.URLParam(r, "sessionKey")

	sess, err := h.repo.GetSession(r.Context(), sessionKey)
	if err != nil {
		slog.Error("Failed to fetch session", "session_key", sessionKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch chat")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "chat not found")
		return
	}

	msgs, err := h.repo.ListMessages(r.Context(), sessionKey)
	if err != nil {
		slog.Error("Failed to fetch messages", "session_key", sessionKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch chat")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	JSON(w, http.StatusOK, chatResponse{Session: sess, Messages: msgs})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionKey := chi.URLParam(r, "sessionKey")

	msgs, err := h.repo.ListMessages(r.Context(), sessionKey)
	if err != nil {
		slog.Error("Failed to fetch messages", "session_key", sessionKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	JSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := h.repo.MarkMessageRead(r.Context(), id)
	if err != nil {
		slog.Error("Failed to mark message read", "message_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	if msg == nil {
		Error(w, http.StatusNotFound, "message not found")
		return
	}
	JSON(w, http.StatusOK, msg)
}
