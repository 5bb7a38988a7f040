package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agenthub-platform/agenthub/internal/middleware"
	"github.com/agenthub-platform/agenthub/internal/service"
)

// ListMessages returns a session's messages in chronological order, with
// optional cursor pagination via the before query param.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	limit := queryInt(r, "limit", 50)
	before := r.URL.Query().Get("before")

	messages, err := h.sessionService.ListMessages(r.Context(), userID, sessionID, limit, before)
	if err != nil {
		h.ServiceError(w, err, "Session or message not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// AppendMessage adds one message to an active session.
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.MessageInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	message, err := h.sessionService.AppendMessage(r.Context(), userID, sessionID, req)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusCreated, message)
}

// AppendMessagesBulk appends a batch of messages atomically.
func (h *Handler) AppendMessagesBulk(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		Messages []service.MessageInput `json:"messages"`
	}
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	messages, err := h.sessionService.AppendMessages(r.Context(), userID, sessionID, req.Messages)
	if err != nil {
		h.ServiceError(w, err, "Session not found")
		return
	}

	h.JSON(w, http.StatusCreated, map[string]any{"messages": messages})
}
