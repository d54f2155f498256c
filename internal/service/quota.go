// quota.go — дневные квоты пользователей (заявки, скачивания).
//
// Проверка квоты выполняется до действия и служит ранним отказом,
// увеличение счётчика — после успешного действия атомарным upsert.
// Проверка и увеличение не транзакционны с самим действием: при сбое
// между ними счётчик занижается, но не завышается.
//
// Лимиты берутся из quota_settings через expirable LRU-кэш,
// при отсутствии переопределения — из конфигурации.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/repository"
)

var quotaRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lm_quota_rejections_total",
	Help: "Количество отказов по дневной квоте",
}, []string{"action"})

// QuotaService — проверка и учёт дневных квот.
type QuotaService struct {
	repo     repository.QuotaRepository
	settings repository.QuotaSettingsRepository
	defaults map[model.QuotaAction]int
	limits   *expirable.LRU[model.QuotaAction, int]
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewQuotaService создаёт сервис квот.
// defaults — лимиты по умолчанию, loc — часовой пояс границы суток.
func NewQuotaService(
	repo repository.QuotaRepository,
	settings repository.QuotaSettingsRepository,
	defaults map[model.QuotaAction]int,
	loc *time.Location,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *QuotaService {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaService{
		repo:     repo,
		settings: settings,
		defaults: defaults,
		limits:   expirable.NewLRU[model.QuotaAction, int](8, nil, cacheTTL),
		loc:      loc,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "quota")),
	}
}

// SetClock подменяет источник времени (для тестов).
func (s *QuotaService) SetClock(now func() time.Time) {
	s.now = now
}

// today возвращает начало текущих суток в часовом поясе квот.
func (s *QuotaService) today() time.Time {
	t := s.now().In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// Limit возвращает действующий дневной лимит действия.
func (s *QuotaService) Limit(ctx context.Context, action model.QuotaAction) int {
	if limit, ok := s.limits.Get(action); ok {
		return limit
	}

	limit, err := s.settings.GetLimit(ctx, action)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		limit = s.defaults[action]
	default:
		// Не кэшируем: при следующем запросе попробуем снова.
		s.logger.Warn("Не удалось прочитать лимит, используется значение по умолчанию",
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
		return s.defaults[action]
	}

	s.limits.Add(action, limit)
	return limit
}

// CheckLimit проверяет, можно ли выполнить действие n раз сегодня.
// Allowed = used+n <= limit, Remaining = max(0, limit-used).
func (s *QuotaService) CheckLimit(ctx context.Context, userID string, action model.QuotaAction, n int) (*model.QuotaStatus, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: неизвестное действие квоты %q", ErrValidation, action)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: количество должно быть положительным", ErrValidation)
	}

	day := s.today()
	used, err := s.repo.Get(ctx, userID, action, day)
	if err != nil {
		return nil, fmt.Errorf("чтение квоты: %w", err)
	}
	limit := s.Limit(ctx, action)

	return &model.QuotaStatus{
		Allowed:   used+n <= limit,
		Action:    action,
		Used:      used,
		Remaining: max(0, limit-used),
		Limit:     limit,
		Date:      day.Format(time.DateOnly),
	}, nil
}

// Guard возвращает *QuotaExceededError, если действие не помещается в квоту.
func (s *QuotaService) Guard(ctx context.Context, userID string, action model.QuotaAction, n int) (*model.QuotaStatus, error) {
	status, err := s.CheckLimit(ctx, userID, action, n)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		quotaRejectionsTotal.WithLabelValues(string(action)).Inc()
		s.logger.Info("Отказ по дневной квоте",
			slog.String("user_id", userID),
			slog.String("action", string(action)),
			slog.Int("used", status.Used),
			slog.Int("limit", status.Limit),
		)
		return status, &QuotaExceededError{Status: *status}
	}
	return status, nil
}

// Increment атомарно увеличивает счётчик действия на n и возвращает новое значение.
func (s *QuotaService) Increment(ctx context.Context, userID string, action model.QuotaAction, n int) (int, error) {
	if !action.IsValid() {
		return 0, fmt.Errorf("%w: неизвестное действие квоты %q", ErrValidation, action)
	}
	count, err := s.repo.Increment(ctx, userID, action, s.today(), n)
	if err != nil {
		return 0, fmt.Errorf("увеличение квоты: %w", err)
	}
	return count, nil
}

// RemainingMany возвращает остаток квоты для набора пользователей.
func (s *QuotaService) RemainingMany(ctx context.Context, userIDs []string, action model.QuotaAction) (map[string]int, error) {
	used, err := s.repo.GetMany(ctx, userIDs, action, s.today())
	if err != nil {
		return nil, fmt.Errorf("чтение квот: %w", err)
	}
	limit := s.Limit(ctx, action)

	result := make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		result[id] = max(0, limit-used[id])
	}
	return result, nil
}
