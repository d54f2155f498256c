// asset_migration.go — перенос набора изображений lineup в целевой провайдер.
//
// Слоты группируются по URL источника: одинаковый URL переносится один раз,
// результат раздаётся всем слотам с этим URL. Разные URL переносятся
// параллельно (errgroup с лимитом). Ошибка одного переноса не отменяет
// остальные: каждая горутина возвращает nil, а ошибка записывается в результат.
//
// Prometheus-метрики:
//   - lm_migration_slots_total — перенесённые слоты по провайдеру и исходу
//   - lm_migration_duration_seconds — длительность одной миграции набора
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

var (
	migrationSlotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lm_migration_slots_total",
		Help: "Количество слотов изображений, обработанных миграцией",
	}, []string{"provider", "outcome"}) // outcome: migrated, failed

	migrationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lm_migration_duration_seconds",
		Help:    "Длительность миграции набора изображений",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider"})
)

// AdapterResolver выбирает адаптер по конфигурации провайдера.
// Реализуется *provider.Registry.
type AdapterResolver interface {
	For(cfg provider.Config) (provider.Adapter, error)
}

// MigrationResult — итог миграции набора слотов.
type MigrationResult struct {
	// URLs — новые URL успешно перенесённых слотов.
	URLs map[model.Slot]string `json:"urls"`
	// Failed — слоты, которые не удалось перенести, в каноническом порядке.
	Failed []model.Slot `json:"failed,omitempty"`
	// Errors — текст ошибки по каждому неудачному слоту.
	Errors map[model.Slot]string `json:"errors,omitempty"`
}

// Complete — все непустые слоты перенесены.
func (r *MigrationResult) Complete() bool {
	return len(r.Failed) == 0
}

// Apply возвращает набор изображений, где перенесённые слоты указывают
// на новые URL, а неудачные сохраняют исходные.
func (r *MigrationResult) Apply(images model.Images) model.Images {
	return images.WithURLs(r.URLs)
}

// MigrateOptions — параметры миграции.
type MigrateOptions struct {
	// BasePath переопределяет basePath целевой конфигурации.
	BasePath string
}

// AssetMigrationService переносит изображения между хранилищами.
type AssetMigrationService struct {
	adapters    AdapterResolver
	concurrency int
	logger      *slog.Logger
}

// NewAssetMigrationService создаёт сервис миграции изображений.
// concurrency — максимум одновременных переносов разных URL.
func NewAssetMigrationService(adapters AdapterResolver, concurrency int, logger *slog.Logger) *AssetMigrationService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AssetMigrationService{
		adapters:    adapters,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "asset_migration")),
	}
}

// MigrateSlots переносит непустые слоты images в хранилище target.
// Никогда не возвращает ошибку: неудачные слоты перечислены в результате.
func (s *AssetMigrationService) MigrateSlots(
	ctx context.Context,
	images map[model.Slot]string,
	target provider.Config,
	opts MigrateOptions,
) *MigrationResult {
	start := time.Now()
	result := &MigrationResult{
		URLs:   make(map[model.Slot]string),
		Errors: make(map[model.Slot]string),
	}

	// 1. Группировка слотов по URL источника
	bySource := make(map[string][]model.Slot)
	for _, slot := range model.AllSlots {
		if src := images[slot]; src != "" {
			bySource[src] = append(bySource[src], slot)
		}
	}
	if len(bySource) == 0 {
		return result
	}

	providerLabel := string(target.Provider)
	fail := func(slots []model.Slot, msg string) {
		for _, slot := range slots {
			result.Errors[slot] = msg
		}
		migrationSlotsTotal.WithLabelValues(providerLabel, "failed").Add(float64(len(slots)))
	}

	// 2. Адаптер целевого провайдера
	adapter, err := s.adapters.For(target)
	if err == nil {
		err = target.Validate()
	}
	if err != nil {
		s.logger.Warn("Целевой провайдер недоступен для миграции",
			slog.Any("config", target),
			slog.String("error", err.Error()),
		)
		for _, slots := range bySource {
			fail(slots, err.Error())
		}
		result.Failed = failedSlots(result.Errors)
		return result
	}

	// 3. Параллельный перенос разных URL
	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, src := range sources {
		slots := bySource[src]
		g.Go(func() error {
			newURL, err := adapter.Transfer(ctx, src, target, provider.UploadOptions{BasePath: opts.BasePath})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("Перенос изображения не удался",
					slog.String("source", src),
					slog.Any("slots", slots),
					slog.String("error", err.Error()),
				)
				fail(slots, err.Error())
				return nil
			}
			for _, slot := range slots {
				result.URLs[slot] = newURL
			}
			migrationSlotsTotal.WithLabelValues(providerLabel, "migrated").Add(float64(len(slots)))
			return nil
		})
	}
	_ = g.Wait()

	result.Failed = failedSlots(result.Errors)
	migrationDuration.WithLabelValues(providerLabel).Observe(time.Since(start).Seconds())

	s.logger.Info("Миграция изображений завершена",
		slog.String("provider", providerLabel),
		slog.Int("sources", len(sources)),
		slog.Int("migrated_slots", len(result.URLs)),
		slog.Int("failed_slots", len(result.Failed)),
	)
	return result
}

// failedSlots возвращает неудачные слоты в каноническом порядке.
func failedSlots(errs map[model.Slot]string) []model.Slot {
	if len(errs) == 0 {
		return nil
	}
	var out []model.Slot
	for _, slot := range model.AllSlots {
		if _, ok := errs[slot]; ok {
			out = append(out, slot)
		}
	}
	return out
}
