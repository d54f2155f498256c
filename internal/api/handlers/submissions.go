package handlers

import (
	"errors"
	"io"
	"net/http"

	apierrors "github.com/bigkaa/lineupstore/internal/api/errors"
	"github.com/bigkaa/lineupstore/internal/service"
)

// multipartOverhead — запас на заголовки multipart сверх размера пакета.
const multipartOverhead = 1 << 20

// CreateSubmission — POST /api/v1/submissions.
// Принимает zip-пакет в поле формы package.
func (h *APIHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	maxBytes := h.deps.PackageMaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, _, err := r.FormFile("package")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.PayloadTooLarge(w, "Пакет превышает допустимый размер")
			return
		}
		apierrors.ValidationError(w, "Ожидается файл пакета в поле package")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		apierrors.ValidationError(w, "Не удалось прочитать пакет: "+err.Error())
		return
	}

	created, err := h.deps.Submissions.IntakePackage(r.Context(), sub, data, maxBytes)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания заявки")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// CreateSubmissionFromLineup — POST /api/v1/submissions/from-lineup/{id}.
func (h *APIHandler) CreateSubmissionFromLineup(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	created, err := h.deps.Submissions.IntakeFromLineup(r.Context(), sub, id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания заявки из записи")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListMySubmissions — GET /api/v1/submissions.
func (h *APIHandler) ListMySubmissions(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	subs, err := h.deps.Submissions.ListMine(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка заявок")
		return
	}
	writeJSON(w, http.StatusOK, newList(subs))
}

// WithdrawSubmission — POST /api/v1/submissions/{id}/withdraw.
func (h *APIHandler) WithdrawSubmission(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	updated, err := h.deps.Submissions.Withdraw(r.Context(), id, sub)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка отзыва заявки")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSubmission — DELETE /api/v1/submissions/{id}.
// Удалить можно только заявку в терминальном статусе.
func (h *APIHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.deps.Submissions.DeleteTerminal(r.Context(), id, sub); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления заявки")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteSubmissionsResponse struct {
	Deleted int `json:"deleted"`
}

// DeleteSubmissions — DELETE /api/v1/submissions?status=approved|rejected|all.
func (h *APIHandler) DeleteSubmissions(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	scope := service.DeleteScope(r.URL.Query().Get("status"))
	if scope == "" {
		apierrors.ValidationError(w, "Параметр status обязателен: approved, rejected или all")
		return
	}

	n, err := h.deps.Submissions.DeleteByStatus(r.Context(), &sub, scope)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка удаления заявок")
		return
	}
	writeJSON(w, http.StatusOK, deleteSubmissionsResponse{Deleted: n})
}
