package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agenthub-platform/agenthub/internal/execution"
	"github.com/agenthub-platform/agenthub/internal/middleware"
	"github.com/agenthub-platform/agenthub/internal/store"
)

const maxUploadSize = 64 << 20

// ListAgents returns agents matching the query filters.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := store.AgentFilter{
		Query:     r.URL.Query().Get("query"),
		CreatorID: r.URL.Query().Get("userId"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 10),
	}
	if raw := r.URL.Query().Get("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "verified must be true or false")
			return
		}
		filter.Verified = &verified
	}

	agents, err := h.agentService.ListAgents(r.Context(), userID, filter)
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// CreateAgent accepts a zip upload and queues agent creation.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	upload, ok := h.agentUpload(w, r)
	if !ok {
		return
	}
	defer upload.close()

	result, err := h.agentService.CreateAgent(r.Context(), userID, upload.toExecution())
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"agentId": result.AgentID,
		"jobId":   result.JobID,
	})
}

// GetAgent returns one agent's detail view.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	agent, err := h.agentService.GetAgent(r.Context(), userID, agentID)
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"agent": agent})
}

// UpdateAgent accepts a zip upload and queues an update of an existing agent.
func (h *Handler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	upload, ok := h.agentUpload(w, r)
	if !ok {
		return
	}
	defer upload.close()

	agentID := chi.URLParam(r, "agentId")
	jobID, err := h.agentService.UpdateAgent(r.Context(), userID, agentID, upload.toExecution())
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "jobId": jobID})
}

// DeleteAgent removes an agent. Creator only.
func (h *Handler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	if err := h.agentService.DeleteAgent(r.Context(), userID, agentID); err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetAgentFile returns one file's metadata with its download URL.
func (h *Handler) GetAgentFile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	fileID := chi.URLParam(r, "fileId")
	file, err := h.agentService.GetAgentFile(r.Context(), agentID, fileID)
	if err != nil {
		h.ServiceError(w, err, "File not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"file": file})
}

// StarAgent toggles the caller's star on an agent.
func (h *Handler) StarAgent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	starred, err := h.agentService.ToggleStar(r.Context(), userID, agentID)
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "isStarred": starred})
}

// VerifyAgent toggles an agent's verification flag. Admin only.
func (h *Handler) VerifyAgent(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	agent, err := h.agentService.ToggleVerified(r.Context(), user, agentID)
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agent":   map[string]any{"id": agent.ID, "isVerified": agent.IsVerified},
	})
}

// SetAgentEnvVar upserts an env var on an agent. Creator only.
func (h *Handler) SetAgentEnvVar(w http.ResponseWriter, r *http.Request) {
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

	agentID := chi.URLParam(r, "agentId")
	envVar, err := h.agentService.SetEnvVar(r.Context(), userID, agentID, req.Key, req.Value)
	if err != nil {
		h.ServiceError(w, err, "Agent not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"success": true, "envVar": envVar})
}

// DeleteAgentEnvVar removes an env var by key. Creator only.
func (h *Handler) DeleteAgentEnvVar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	key := r.URL.Query().Get("key")
	if err := h.agentService.DeleteEnvVar(r.Context(), userID, agentID, key); err != nil {
		h.ServiceError(w, err, "Environment variable not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Environment variable deleted",
	})
}

// InvokeAgent starts or continues a conversation with an agent.
func (h *Handler) InvokeAgent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		Prompt    string `json:"prompt"`
		SessionID string `json:"sessionId"`
	}
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	agentID := chi.URLParam(r, "agentId")
	result, err := h.invocationService.Invoke(r.Context(), userID, agentID, req.Prompt, req.SessionID)
	if err != nil {
		h.ServiceError(w, err, "Agent or session not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"agentId":   result.AgentID,
		"sessionId": result.SessionID,
		"jobId":     result.JobID,
		"note":      result.Note,
	})
}

type agentUpload struct {
	filename string
	file     multipart.File
}

func (u agentUpload) toExecution() execution.AgentUpload {
	return execution.AgentUpload{Filename: u.filename, Content: u.file}
}

func (u agentUpload) close() { _ = u.file.Close() }

// agentUpload extracts and validates the zip file field of a multipart
// upload. It writes the error response itself when the upload is bad.
func (h *Handler) agentUpload(w http.ResponseWriter, r *http.Request) (agentUpload, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid multipart form")
		return agentUpload{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file field is required")
		return agentUpload{}, false
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		_ = file.Close()
		h.Error(w, http.StatusBadRequest, "file must be a .zip archive")
		return agentUpload{}, false
	}

	return agentUpload{filename: header.Filename, file: file}, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
