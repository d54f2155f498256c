// handler.go — основной обработчик API Lineup Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/lineupstore/internal/api/errors"
	"github.com/bigkaa/lineupstore/internal/api/middleware"
	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/lineuppkg"
	"github.com/bigkaa/lineupstore/internal/service"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

// SubmissionAPI — операции очереди модерации, используемые handlers.
type SubmissionAPI interface {
	IntakePackage(ctx context.Context, submitterID string, data []byte, maxBytes int64) (*model.Submission, error)
	IntakeFromLineup(ctx context.Context, submitterID, lineupID string) (*model.Submission, error)
	ListMine(ctx context.Context, ownerID string) ([]*model.Submission, error)
	Withdraw(ctx context.Context, submissionID, ownerID string) (*model.Submission, error)
	DeleteTerminal(ctx context.Context, submissionID, ownerID string) error
	DeleteByStatus(ctx context.Context, ownerID *string, scope service.DeleteScope) (int, error)
	ListForModeration(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.ModerationView, error)
	Approve(ctx context.Context, submissionID, moderatorID string) (*service.ApproveResult, error)
	Reject(ctx context.Context, submissionID, moderatorID, reason string) (*model.Submission, error)
}

// SyncAPI — синхронизация приватных записей в публичное хранилище.
type SyncAPI interface {
	SyncScope(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncResult, error)
	Status(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncStatus, error)
}

// ReconcileAPI — ручной запуск сверки заявок.
type ReconcileAPI interface {
	Sweep(ctx context.Context) (*model.ReconcileResult, error)
}

// LineupAPI — операции над записями lineup.
type LineupAPI interface {
	Export(ctx context.Context, userID, lineupID string) (*service.PackageExport, error)
	MigrateImages(ctx context.Context, userID, lineupID string, target provider.Config) (*service.MigrationResult, error)
	DeletePublic(ctx context.Context, publicID, moderatorID string) error
	DeletePublicMany(ctx context.Context, ids []string, moderatorID string) (*model.BulkDeleteResult, error)
	ListDownloadLogs(ctx context.Context, limit, offset int) ([]*model.DownloadLog, error)
}

// QuotaAPI — чтение состояния дневных квот.
type QuotaAPI interface {
	CheckLimit(ctx context.Context, userID string, action model.QuotaAction, n int) (*model.QuotaStatus, error)
}

// Deps — зависимости APIHandler.
type Deps struct {
	Submissions SubmissionAPI
	Sync        SyncAPI
	Reconcile   ReconcileAPI
	Lineups     LineupAPI
	Quota       QuotaAPI
	// PackageMaxBytes — лимит размера загружаемого пакета заявки.
	PackageMaxBytes int64
}

// APIHandler — основной обработчик API Lineup Module.
type APIHandler struct {
	deps   Deps
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(deps Deps, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		deps:   deps,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// listResponse — обёртка списков.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: len(items)}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Неизвестные поля допускаются.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("некорректный JSON: %w", err)
	}
	return nil
}

// paginationDefaults нормализует параметры пагинации.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = min(max(*limit, 1), 1000)
	}
	if offset != nil {
		o = max(*offset, 0)
	}
	return l, o
}

// pagination читает limit и offset запроса с ограничениями paginationDefaults.
// Для нечислового значения пишет 400 и возвращает false.
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return 0, 0, false
	}
	offsetParam, err := queryInt(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return 0, 0, false
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)
	return limit, offset, true
}

// queryInt читает необязательный целочисленный query-параметр.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("параметр %s: некорректное целое число %q", name, raw)
	}
	return &n, nil
}

// subject возвращает sub аутентифицированного пользователя.
// Если claims отсутствуют, пишет 401 и возвращает false.
func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub := middleware.SubjectFromContext(r.Context())
	if sub == "" {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return "", false
	}
	return sub, true
}

// pathID возвращает параметр маршрута {id} в каноническом виде UUID.
// Для некорректного значения пишет 400 и возвращает false.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор: ожидается UUID")
		return "", false
	}
	return id.String(), true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500 с сообщением msg.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	var quotaErr *service.QuotaExceededError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &quotaErr):
		apierrors.QuotaExceeded(w, err.Error(), quotaErr.Status)
	case errors.Is(err, lineuppkg.ErrPackageTooLarge), errors.As(err, &maxBytesErr):
		apierrors.PayloadTooLarge(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.InvalidTransition(w, err.Error())
	case errors.Is(err, service.ErrStorage):
		apierrors.StorageUnavailable(w, err.Error())
	default:
		h.logger.Error(msg, slog.String("error", err.Error()))
		apierrors.InternalError(w, msg)
	}
}
