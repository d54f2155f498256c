// lineup.go — операции над отдельной записью: экспорт пакета и журнал
// скачиваний, перенос изображений в хранилище пользователя, удаление
// публичных записей модератором.
//
// Prometheus-метрики:
//   - lm_package_exports_total — экспортированные пакеты по исходу
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/lineuppkg"
	"github.com/bigkaa/lineupstore/internal/repository"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

var packageExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lm_package_exports_total",
	Help: "Экспортированные пакеты lineup",
}, []string{"outcome"}) // outcome: ok, partial, quota_exceeded

// MaxBulkDelete — предел числа ID в одном запросе массового удаления.
const MaxBulkDelete = 100

// ImageFetcher скачивает изображение по URL. Реализуется *provider.Fetcher.
type ImageFetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*provider.Fetched, error)
}

// PackageExport — собранный пакет lineup.
type PackageExport struct {
	// FileName — имя архива для Content-Disposition.
	FileName string
	Data     []byte
	// Failed — слоты, изображения которых не удалось скачать.
	Failed []model.Slot
	// Quota — состояние квоты скачиваний до экспорта.
	Quota *model.QuotaStatus
}

// LineupService — операции над записями пользователя.
type LineupService struct {
	lineups     repository.LineupRepository
	publics     repository.PublicLineupRepository
	downloads   repository.DownloadLogRepository
	quota       *QuotaService
	migrator    SlotMigrator
	fetcher     ImageFetcher
	concurrency int
	logger      *slog.Logger
}

// NewLineupService создаёт сервис записей.
func NewLineupService(
	lineups repository.LineupRepository,
	publics repository.PublicLineupRepository,
	downloads repository.DownloadLogRepository,
	quota *QuotaService,
	migrator SlotMigrator,
	fetcher ImageFetcher,
	concurrency int,
	logger *slog.Logger,
) *LineupService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LineupService{
		lineups:     lineups,
		publics:     publics,
		downloads:   downloads,
		quota:       quota,
		migrator:    migrator,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "lineup")),
	}
}

// owned возвращает запись, если она принадлежит userID.
func (s *LineupService) owned(ctx context.Context, userID, lineupID string) (*model.Lineup, error) {
	l, err := s.lineups.GetByID(ctx, lineupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lineup %s", ErrNotFound, lineupID)
		}
		return nil, fmt.Errorf("получение lineup: %w", err)
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("%w: lineup принадлежит другому пользователю", ErrForbidden)
	}
	return l, nil
}

// Export собирает пакет записи и расходует одну единицу квоты скачиваний.
// Изображения, которые не удалось скачать, остаются в метаданных внешними URL.
func (s *LineupService) Export(ctx context.Context, userID, lineupID string) (*PackageExport, error) {
	l, err := s.owned(ctx, userID, lineupID)
	if err != nil {
		return nil, err
	}
	status, err := s.quota.Guard(ctx, userID, model.QuotaDownload, 1)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			packageExportsTotal.WithLabelValues("quota_exceeded").Inc()
		}
		return nil, err
	}

	images, failed := s.fetchImages(ctx, l.Images.URLs())
	pkg := lineuppkg.FromLineup(l, images)

	var buf bytes.Buffer
	if err := lineuppkg.Write(&buf, pkg); err != nil {
		return nil, fmt.Errorf("сборка пакета: %w", err)
	}

	if _, err := s.quota.Increment(ctx, userID, model.QuotaDownload, 1); err != nil {
		s.logger.Error("Не удалось увеличить квоту скачиваний",
			slog.String("lineup_id", l.ID),
			slog.String("error", err.Error()),
		)
	}

	s.recordDownload(ctx, userID, l)

	outcome := "ok"
	if len(failed) > 0 {
		outcome = "partial"
	}
	packageExportsTotal.WithLabelValues(outcome).Inc()

	return &PackageExport{
		FileName: lineuppkg.BaseName(&pkg.Meta) + ".zip",
		Data:     buf.Bytes(),
		Failed:   failed,
		Quota:    status,
	}, nil
}

// recordDownload пишет запись журнала скачиваний. Ошибка журнала
// не отменяет уже собранный пакет.
func (s *LineupService) recordDownload(ctx context.Context, userID string, l *model.Lineup) {
	entry := &model.DownloadLog{
		UserID:        userID,
		LineupID:      l.ID,
		LineupTitle:   l.Title,
		MapName:       l.MapName,
		AgentName:     l.AgentName,
		DownloadCount: 1,
	}
	if err := s.downloads.Create(ctx, entry); err != nil {
		s.logger.Warn("Не удалось записать журнал скачиваний",
			slog.String("lineup_id", l.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListDownloadLogs возвращает журнал скачиваний от новых записей к старым.
func (s *LineupService) ListDownloadLogs(ctx context.Context, limit, offset int) ([]*model.DownloadLog, error) {
	logs, err := s.downloads.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение журнала скачиваний: %w", err)
	}
	return logs, nil
}

// fetchImages параллельно скачивает изображения слотов.
func (s *LineupService) fetchImages(ctx context.Context, urls map[model.Slot]string) (map[model.Slot][]byte, []model.Slot) {
	images := make(map[model.Slot][]byte, len(urls))
	errs := make(map[model.Slot]string)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for slot, u := range urls {
		g.Go(func() error {
			fetched, err := s.fetcher.Fetch(ctx, u)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("Не удалось скачать изображение для пакета",
					slog.String("slot", string(slot)),
					slog.String("error", err.Error()),
				)
				errs[slot] = err.Error()
				return nil
			}
			images[slot] = fetched.Data
			return nil
		})
	}
	_ = g.Wait()
	return images, failedSlots(errs)
}

// MigrateImages переносит изображения записи в хранилище target
// и сохраняет новые URL. Неудачные слоты сохраняют прежние URL.
func (s *LineupService) MigrateImages(ctx context.Context, userID, lineupID string, target provider.Config) (*MigrationResult, error) {
	if err := target.ValidateUserSupplied(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	l, err := s.owned(ctx, userID, lineupID)
	if err != nil {
		return nil, err
	}

	result := s.migrator.MigrateSlots(ctx, l.Images.URLs(), target, MigrateOptions{})
	if len(result.URLs) == 0 {
		return result, nil
	}
	if err := s.lineups.UpdateImages(ctx, l.ID, result.Apply(l.Images)); err != nil {
		return nil, fmt.Errorf("сохранение URL изображений: %w", err)
	}

	s.logger.Info("Изображения lineup перенесены",
		slog.String("lineup_id", l.ID),
		slog.String("provider", string(target.Provider)),
		slog.Int("migrated", len(result.URLs)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// DeletePublic удаляет публичную запись (модерация).
func (s *LineupService) DeletePublic(ctx context.Context, publicID, moderatorID string) error {
	if err := s.publics.Delete(ctx, publicID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: публичная запись %s", ErrNotFound, publicID)
		}
		return fmt.Errorf("удаление публичной записи: %w", err)
	}
	s.logger.Info("Публичная запись удалена",
		slog.String("public_id", publicID),
		slog.String("moderator_id", moderatorID),
	)
	return nil
}

// DeletePublicMany удаляет несколько публичных записей одним запросом.
// Повторы в ids схлопываются; ID без записи попадают в Missing.
func (s *LineupService) DeletePublicMany(ctx context.Context, ids []string, moderatorID string) (*model.BulkDeleteResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: список ids пуст", ErrValidation)
	}

	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: некорректный идентификатор %q", ErrValidation, raw)
		}
		if key := id.String(); !seen[key] {
			seen[key] = true
			unique = append(unique, key)
		}
	}
	if len(unique) > MaxBulkDelete {
		return nil, fmt.Errorf("%w: не более %d ids за запрос", ErrValidation, MaxBulkDelete)
	}

	deleted, err := s.publics.DeleteMany(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("удаление публичных записей: %w", err)
	}

	gone := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		gone[id] = true
	}
	res := &model.BulkDeleteResult{Deleted: make([]string, 0, len(deleted)), Missing: []string{}}
	for _, id := range unique {
		if gone[id] {
			res.Deleted = append(res.Deleted, id)
		} else {
			res.Missing = append(res.Missing, id)
		}
	}

	s.logger.Info("Публичные записи удалены",
		slog.Int("requested", len(unique)),
		slog.Int("deleted", len(res.Deleted)),
		slog.String("moderator_id", moderatorID),
	)
	return res, nil
}
