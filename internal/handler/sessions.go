package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agenthub-platform/agenthub/internal/middleware"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// CreateSession opens a session with an agent.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		AgentID        string `json:"agentId"`
		InitialMessage string `json:"initialMessage"`
	}
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.sessionService.CreateSession(r.Context(), userID, req.AgentID, req.InitialMessage)
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusCreated, session)
}

// ListSessions returns the caller's sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := store.SessionFilter{
		AgentID: r.URL.Query().Get("agentId"),
		Page:    queryInt(r, "page", 1),
		Limit:   queryInt(r, "limit", 10),
	}
	if raw := r.URL.Query().Get("includeEnded"); raw != "" {
		includeEnded, err := strconv.ParseBool(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "includeEnded must be true or false")
			return
		}
		filter.IncludeEnded = includeEnded
	}

	sessions, pagination, err := h.sessionService.ListSessions(r.Context(), userID, filter)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"sessions":   sessions,
		"pagination": pagination,
	})
}

// GetSession returns one session with message and variable counts.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	session, err := h.sessionService.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusOK, session)
}

// PatchSession ends a session when the body carries endSession: true.
func (h *Handler) PatchSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		EndSession bool `json:"endSession"`
	}
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.EndSession {
		h.Error(w, http.StatusBadRequest, "endSession must be true")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	session, err := h.sessionService.EndSession(r.Context(), userID, sessionID)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusOK, session)
}

// DeleteSession removes a session with its messages and variables.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	if err := h.sessionService.DeleteSession(r.Context(), userID, sessionID); err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true})
}
