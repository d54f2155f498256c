package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// GetQuota — GET /api/v1/quotas/{action}.
func (h *APIHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	st, err := h.deps.Quota.CheckLimit(r.Context(), sub, model.QuotaAction(chi.URLParam(r, "action")), 1)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка чтения квоты")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
