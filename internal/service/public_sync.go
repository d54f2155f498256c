// public_sync.go — публикация личных записей пользователя в публичное хранилище.
//
// Синхронизация последовательная: для каждой записи области проверяется
// наличие публичной копии по source_id, при отсутствии вставляется копия.
// Уникальный индекс на source_id делает повторный запуск идемпотентным:
// конфликт вставки считается пропуском. Ошибка одной записи не прерывает цикл.
//
// Prometheus-метрики:
//   - lm_sync_records_total — обработанные записи по исходу
//   - lm_sync_duration_seconds — длительность одного запуска
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/repository"
)

var (
	syncRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lm_sync_records_total",
		Help: "Записи, обработанные синхронизацией",
	}, []string{"outcome"}) // outcome: synced, skipped, failed

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lm_sync_duration_seconds",
		Help:    "Длительность синхронизации области",
		Buckets: prometheus.DefBuckets,
	})
)

// PublicSyncService публикует записи приватного хранилища.
type PublicSyncService struct {
	lineups    repository.LineupRepository
	publics    repository.PublicLineupRepository
	displayIDs *DisplayIDResolver
	logger     *slog.Logger
}

// NewPublicSyncService создаёт сервис синхронизации.
func NewPublicSyncService(
	lineups repository.LineupRepository,
	publics repository.PublicLineupRepository,
	displayIDs *DisplayIDResolver,
	logger *slog.Logger,
) *PublicSyncService {
	return &PublicSyncService{
		lineups:    lineups,
		publics:    publics,
		displayIDs: displayIDs,
		logger:     logger.With(slog.String("component", "public_sync")),
	}
}

// scopeFilter проверяет область и возвращает фильтр запроса.
func scopeFilter(scope model.SyncScope, filter model.SyncFilter) (model.SyncFilter, error) {
	filter.MapName = strings.TrimSpace(filter.MapName)
	filter.AgentName = strings.TrimSpace(filter.AgentName)

	switch scope {
	case model.SyncScopeAgent:
		if filter.AgentName == "" {
			return filter, fmt.Errorf("%w: для области agent требуется agent_name", ErrValidation)
		}
		return filter, nil
	case model.SyncScopeMap:
		if filter.MapName == "" {
			return filter, fmt.Errorf("%w: для области map требуется map_name", ErrValidation)
		}
		return model.SyncFilter{MapName: filter.MapName}, nil
	case model.SyncScopeAll:
		return model.SyncFilter{}, nil
	default:
		return filter, fmt.Errorf("%w: недопустимая область %q, допустимые: agent, map, all", ErrValidation, scope)
	}
}

// SyncScope публикует записи пользователя из области scope.
func (s *PublicSyncService) SyncScope(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncResult, error) {
	filter, err := scopeFilter(scope, filter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := s.lineups.ListPublishable(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	displayID, err := s.displayIDs.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &model.SyncResult{StartedAt: start.UTC()}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome, err := s.syncRecord(ctx, rec, displayID)
		switch outcome {
		case "synced":
			result.Synced++
		case "skipped":
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ID, err))
			s.logger.Warn("Не удалось опубликовать запись",
				slog.String("lineup_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
		syncRecordsTotal.WithLabelValues(outcome).Inc()
	}

	elapsed := time.Since(start)
	result.Duration = elapsed.Round(time.Millisecond).String()
	syncDuration.Observe(elapsed.Seconds())

	s.logger.Info("Синхронизация завершена",
		slog.String("user_id", userID),
		slog.String("scope", string(scope)),
		slog.Int("synced", result.Synced),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// syncRecord публикует одну запись и возвращает исход: synced, skipped или failed.
func (s *PublicSyncService) syncRecord(ctx context.Context, rec *model.Lineup, displayID string) (string, error) {
	exists, err := s.publics.ExistsBySourceID(ctx, rec.ID)
	if err != nil {
		return "failed", fmt.Errorf("проверка публикации: %w", err)
	}
	if exists {
		return "skipped", nil
	}

	sourceID := rec.ID
	pl := &model.PublicLineup{
		UserID:       displayID,
		LineupFields: rec.LineupFields,
		SourceID:     &sourceID,
	}
	if err := s.publics.Create(ctx, pl); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "skipped", nil
		}
		return "failed", err
	}
	return "synced", nil
}

// Status возвращает, сколько записей области уже опубликовано.
func (s *PublicSyncService) Status(ctx context.Context, userID string, scope model.SyncScope, filter model.SyncFilter) (*model.SyncStatus, error) {
	filter, err := scopeFilter(scope, filter)
	if err != nil {
		return nil, err
	}
	records, err := s.lineups.ListPublishable(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	synced, err := s.publics.CountBySourceIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("подсчёт опубликованных: %w", err)
	}
	return &model.SyncStatus{Total: len(records), Synced: synced}, nil
}
