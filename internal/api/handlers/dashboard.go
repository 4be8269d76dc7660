package handlers

import (
	"net/http"

	"github.com/nkrecruitment/portal/internal/api/middleware"
)

// GetDashboard — GET /api/v1/admin/dashboard. Доступ: recruiter или admin.
func (h *APIHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, mapDashboard(stats))
}
