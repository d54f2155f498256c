package handlers

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/lineupstore/internal/api/errors"
	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

type migrateImagesRequest struct {
	Provider provider.ID       `json:"provider"`
	Config   map[string]string `json:"config"`
}

// MigrateLineupImages — POST /api/v1/lineups/{id}/migrate-images.
// Переносит изображения записи в хранилище пользователя. Неудачные
// слоты сохраняют исходные URL и перечисляются в failed.
func (h *APIHandler) MigrateLineupImages(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req migrateImagesRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	providerID := provider.ID(strings.ToLower(string(req.Provider)))
	// Локальный провайдер пишет в файловую систему сервера.
	if providerID == provider.Local {
		apierrors.ValidationError(w, "Провайдер local недоступен для пользовательских конфигураций")
		return
	}

	target := provider.NewConfig(providerID, req.Config)
	res, err := h.deps.Lineups.MigrateImages(r.Context(), sub, id, target)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка переноса изображений")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadLineupPackage — GET /api/v1/lineups/{id}/package.
// Расходует одну единицу квоты скачиваний. Слоты, изображения которых
// не удалось скачать, перечисляются в заголовке X-Lineup-Failed-Slots.
func (h *APIHandler) DownloadLineupPackage(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	exp, err := h.deps.Lineups.Export(r.Context(), sub, id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка сборки пакета")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.FileName}))
	if len(exp.Failed) > 0 {
		w.Header().Set("X-Lineup-Failed-Slots", joinSlots(exp.Failed))
	}
	if exp.Quota != nil {
		// Остаток после текущего скачивания.
		w.Header().Set("X-Quota-Remaining", strconv.Itoa(max(0, exp.Quota.Remaining-1)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}

func joinSlots(slots []model.Slot) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
