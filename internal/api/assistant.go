package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aimbrill/supportchat/internal/domain"
)

func (h *Handler) handleGetAssistantConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.repo.AssistantConfig(r.Context())
	if err != nil {
		slog.Error("Failed to fetch assistant config", "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch assistant configuration")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleUpdateAssistantConfig(w http.ResponseWriter, r *http.Request) {
	var upd domain.AssistantConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if upd.Provider != nil &&
		*upd.Provider != domain.ProviderOpenAI && *upd.Provider != domain.ProviderOpenRouter {
		Error(w, http.StatusBadRequest, "unknown provider")
		return
	}

	cfg, err := h.repo.UpdateAssistantConfig(r.Context(), upd)
	if err != nil {
		slog.Error("Failed to update assistant config", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update assistant configuration")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) handleToggleAssistant(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.repo.UpdateAssistantConfig(r.Context(), domain.AssistantConfigUpdate{Enabled: &req.Enabled})
	if err != nil {
		slog.Error("Failed to toggle assistant", "error", err)
		Error(w, http.StatusInternalServerError, "failed to toggle assistant")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

type testAssistantRequest struct {
	SessionKey string `json:"sessionKey"`
	Text       string `json:"text"`
}

// handleTestAssistant exercises the responder gateway directly so operators
// can verify credentials and model settings before enabling the assistant.
func (h *Handler) handleTestAssistant(w http.ResponseWriter, r *http.Request) {
	var req testAssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionKey == "" || req.Text == "" {
		Error(w, http.StatusBadRequest, "sessionKey and text are required")
		return
	}

	cfg, err := h.repo.AssistantConfig(r.Context())
	if err != nil {
		slog.Error("Failed to fetch assistant config", "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch assistant configuration")
		return
	}

	history, err := h.repo.ListRecentMessages(r.Context(), req.SessionKey, h.historyWindow)
	if err != nil {
		slog.Error("Failed to fetch history", "session_key", req.SessionKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	reply, err := h.gateway.Respond(r.Context(), req.SessionKey, history, req.Text, cfg)
	if err != nil {
		slog.Error("Assistant test failed", "session_key", req.SessionKey, "error", err)
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"response": reply})
}
