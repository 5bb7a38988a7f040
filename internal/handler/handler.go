// Package handler contains the HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agenthub-platform/agenthub/internal/cache"
	"github.com/agenthub-platform/agenthub/internal/config"
	"github.com/agenthub-platform/agenthub/internal/crypto"
	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/logger"
	"github.com/agenthub-platform/agenthub/internal/service"
	"github.com/agenthub-platform/agenthub/internal/store"
)

// Handler contains all HTTP handlers
type Handler struct {
	store             *store.Store
	cfg               *config.Config
	log               *logger.Logger
	agentService      *service.AgentService
	jobService        *service.JobService
	sessionService    *service.SessionService
	invocationService *service.InvocationService
}

// New creates a new Handler wired to the shared store, cache, and execution
// client. enc may be nil when env var encryption is not configured.
func New(s *store.Store, cfg *config.Config, c cache.Cache, exec *execution.Client, enc *crypto.Encryptor, log *logger.Logger) *Handler {
	return &Handler{
		store:             s,
		cfg:               cfg,
		log:               log,
		agentService:      service.NewAgentService(s, c, exec, enc, log),
		jobService:        service.NewJobService(s),
		sessionService:    service.NewSessionService(s),
		invocationService: service.NewInvocationService(s, exec, log),
	}
}

// JSON helper to write JSON responses
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error helper to write error responses
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ErrorDetails writes an error envelope with a diagnostic details field.
func (h *Handler) ErrorDetails(w http.ResponseWriter, status int, message, details string) {
	h.JSON(w, status, map[string]string{"error": message, "details": details})
}

// DecodeJSON helper to decode request body
func (h *Handler) DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// ServiceError translates a service-layer failure into the right status and
// envelope. notFoundMsg names the resource for 404 responses.
func (h *Handler) ServiceError(w http.ResponseWriter, err error, notFoundMsg string) {
	var validationErr *service.ValidationError
	var upstreamErr *execution.UpstreamError

	switch {
	case errors.Is(err, store.ErrNotFound):
		h.Error(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, service.ErrPermissionDenied):
		h.Error(w, http.StatusForbidden, "Permission denied")
	case errors.As(err, &validationErr):
		h.Error(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &upstreamErr):
		h.ErrorDetails(w, http.StatusBadGateway, "Execution server request failed", upstreamErr.Details)
	default:
		h.log.Error("internal error", "error", err)
		h.ErrorDetails(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
