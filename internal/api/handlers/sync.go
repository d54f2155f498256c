package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/lineupstore/internal/api/errors"
	"github.com/bigkaa/lineupstore/internal/domain/model"
)

type syncRequest struct {
	Scope     model.SyncScope `json:"scope"`
	MapName   string          `json:"map_name"`
	AgentName string          `json:"agent_name"`
}

// SyncPublic — POST /api/v1/sync.
// Публикует записи пользователя из области scope, пропуская уже опубликованные.
func (h *APIHandler) SyncPublic(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.deps.Sync.SyncScope(r.Context(), sub, req.Scope,
		model.SyncFilter{MapName: req.MapName, AgentName: req.AgentName})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка синхронизации")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SyncStatus — GET /api/v1/sync/status?scope=&map_name=&agent_name=.
func (h *APIHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	st, err := h.deps.Sync.Status(r.Context(), sub, model.SyncScope(q.Get("scope")),
		model.SyncFilter{MapName: q.Get("map_name"), AgentName: q.Get("agent_name")})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения статуса синхронизации")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
