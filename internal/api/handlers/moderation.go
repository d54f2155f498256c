package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/lineupstore/internal/api/errors"
	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// ListModerationQueue — GET /api/v1/moderation/submissions?status=&limit=&offset=.
// Каждая заявка дополняется остатком квоты заявок её автора.
func (h *APIHandler) ListModerationQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	var status *model.SubmissionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.SubmissionStatus(raw)
		status = &s
	}

	views, err := h.deps.Submissions.ListForModeration(r.Context(), status, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения очереди модерации")
		return
	}
	writeJSON(w, http.StatusOK, newList(views))
}

// ApproveSubmission — POST /api/v1/moderation/submissions/{id}/approve.
// Частичный перенос изображений не считается ошибкой: неудачные слоты
// возвращаются в migration.failed.
func (h *APIHandler) ApproveSubmission(w http.ResponseWriter, r *http.Request) {
	mod, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.deps.Submissions.Approve(r.Context(), id, mod)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка одобрения заявки")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectSubmission — POST /api/v1/moderation/submissions/{id}/reject.
func (h *APIHandler) RejectSubmission(w http.ResponseWriter, r *http.Request) {
	mod, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		apierrors.ValidationError(w, "Причина отклонения обязательна")
		return
	}

	updated, err := h.deps.Submissions.Reject(r.Context(), id, mod, req.Reason)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка отклонения заявки")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RunReconcile — POST /api/v1/moderation/reconcile.
func (h *APIHandler) RunReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Reconcile.Sweep(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка сверки заявок")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeletePublicLineup — DELETE /api/v1/moderation/public-lineups/{id}.
func (h *APIHandler) DeletePublicLineup(w http.ResponseWriter, r *http.Request) {
	mod, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.deps.Lineups.DeletePublic(r.Context(), id, mod); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления публичной записи")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deletePublicLineupsRequest struct {
	IDs []string `json:"ids"`
}

// DeletePublicLineups — DELETE /api/v1/moderation/public-lineups {ids}.
// Удаляет записи одним запросом; отсутствующие ID возвращаются в missing.
func (h *APIHandler) DeletePublicLineups(w http.ResponseWriter, r *http.Request) {
	mod, ok := subject(w, r)
	if !ok {
		return
	}

	var req deletePublicLineupsRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.deps.Lineups.DeletePublicMany(r.Context(), req.IDs, mod)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка удаления публичных записей")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListDownloadLogs — GET /api/v1/moderation/download-logs?limit=&offset=.
func (h *APIHandler) ListDownloadLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	logs, err := h.deps.Lineups.ListDownloadLogs(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения журнала скачиваний")
		return
	}
	writeJSON(w, http.StatusOK, newList(logs))
}
