package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agenthub-platform/agenthub/internal/middleware"
)

// GetJob returns a job's status and logs, only to its owner.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	jobID := chi.URLParam(r, "jobId")
	job, err := h.jobService.CheckJobStatus(r.Context(), jobID, userID)
	if err != nil {
		h.ServiceError(w, err, "Job not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"job": job})
}
