// Package api provides HTTP handlers for the support chat REST surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/aimbrill/supportchat/internal/responder"
	"github.com/aimbrill/supportchat/internal/store"
)

// Handler serves the operator-facing REST API: chat listings, transcripts,
// and assistant configuration.
type Handler struct {
	repo          store.Repository
	gateway       responder.Responder
	historyWindow int
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, gateway responder.Responder, historyWindow int) *Handler {
	return &Handler{
		repo:          repo,
		gateway:       gateway,
		historyWindow: historyWindow,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
