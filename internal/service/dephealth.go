// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Lineup Module мониторит:
//   - PostgreSQL приватного хранилища (pool mode, critical)
//   - PostgreSQL публичного хранилища (pool mode, critical), если это отдельная БД
//   - JWKS endpoint провайдера идентификации (HTTP, critical)
//   - публичное объектное хранилище (HTTP, non-critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для JWKS и хранилища
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DependencyTargets — адреса зависимостей для мониторинга.
type DependencyTargets struct {
	// PrivateDB — *sql.DB поверх pgxpool приватного хранилища (stdlib.OpenDBFromPool)
	PrivateDB *sql.DB
	// PrivateDBURL — URL приватной БД для лейблов (без пароля)
	PrivateDBURL string
	// PublicDB — *sql.DB публичного хранилища; nil, если БД общая
	PublicDB *sql.DB
	// PublicDBURL — URL публичной БД для лейблов
	PublicDBURL string
	// JWKSURL — URL JWKS endpoint
	JWKSURL string
	// StorageURL — базовый URL публичного хранилища (пустой — не проверяется)
	StorageURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(
	serviceID string,
	group string,
	targets DependencyTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	targets DependencyTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

// healthPath возвращает path URL или fallback.
func healthPath(rawURL, fallback string) string {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return fallback
}

func newDephealthService(
	serviceID string,
	group string,
	targets DependencyTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql-private", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.PrivateDB)),
			dephealth.FromURL(targets.PrivateDBURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
		// Путь самого JWKS URL подтверждает доступность realm.
		dephealth.HTTP("jwks",
			dephealth.FromURL(targets.JWKSURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.JWKSURL, "/health")),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	}
	if targets.PublicDB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql-public", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.PublicDB)),
			dephealth.FromURL(targets.PublicDBURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}
	if targets.StorageURL != "" {
		// Хранилище нужно только для одобрения заявок.
		opts = append(opts, dephealth.HTTP("public-storage",
			dephealth.FromURL(targets.StorageURL),
			dephealth.WithHTTPHealthPath(healthPath(targets.StorageURL, "/")),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
