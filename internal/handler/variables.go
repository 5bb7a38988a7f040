package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agenthub-platform/agenthub/internal/middleware"
)

// ListVariables returns all variables on a session.
func (h *Handler) ListVariables(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	variables, err := h.sessionService.ListVariables(r.Context(), userID, sessionID)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"variables": variables})
}

// UpsertVariable creates or updates a variable by key on an active session.
func (h *Handler) UpsertVariable(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	variable, err := h.sessionService.UpsertVariable(r.Context(), userID, sessionID, req.Key, req.Value)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusOK, variable)
}

// UpdateVariable updates an existing variable; missing keys are 404.
func (h *Handler) UpdateVariable(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	key := chi.URLParam(r, "key")
	variable, err := h.sessionService.UpdateVariable(r.Context(), userID, sessionID, key, req.Value)
	if err != nil {
		h.ServiceError(w, err, "Variable not found")
		return
	}

	h.JSON(w, http.StatusOK, variable)
}

// DeleteVariable removes an existing variable; missing keys are 404.
func (h *Handler) DeleteVariable(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	key := chi.URLParam(r, "key")
	if err := h.sessionService.DeleteVariable(r.Context(), userID, sessionID, key); err != nil {
		h.ServiceError(w, err, "Variable not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true})
}
