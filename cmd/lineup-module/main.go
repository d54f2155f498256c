// Точка входа Lineup Module — сервис заявок, синхронизации и переноса
// изображений lineup между объектными хранилищами.
// Загружает конфигурацию, применяет миграции обоих хранилищ PostgreSQL,
// собирает провайдеры хранилищ и сервисный слой, запускает фоновую
// сверку заявок, topologymetrics и HTTP-сервер с JWT middleware.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/lineupstore/internal/api/handlers"
	"github.com/bigkaa/lineupstore/internal/api/middleware"
	"github.com/bigkaa/lineupstore/internal/config"
	"github.com/bigkaa/lineupstore/internal/database"
	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/repository"
	"github.com/bigkaa/lineupstore/internal/server"
	"github.com/bigkaa/lineupstore/internal/service"
	"github.com/bigkaa/lineupstore/internal/storage/imagenorm"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Lineup Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Any("public_provider", cfg.PublicProvider),
	)

	// Публичное хранилище может совпадать с приватным: тогда один пул и одна проверка.
	sharedDB := cfg.PublicDB == cfg.PrivateDB

	// 3. Применение миграций обоих хранилищ
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg.PrivateDB, database.StorePrivate, logger); err != nil {
		logger.Error("Ошибка миграций приватного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.Migrate(cfg.PublicDB, database.StorePublic, logger); err != nil {
		logger.Error("Ошибка миграций публичного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	privatePool, err := database.Connect(ctx, cfg.PrivateDB, database.StorePrivate, logger)
	if err != nil {
		logger.Error("Ошибка подключения к приватному хранилищу", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer privatePool.Close()

	publicPool := privatePool
	if !sharedDB {
		publicPool, err = database.Connect(ctx, cfg.PublicDB, database.StorePublic, logger)
		if err != nil {
			logger.Error("Ошибка подключения к публичному хранилищу", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publicPool.Close()
	}

	// 5. HTTP-клиент с кастомным CA (JWKS и скачивание источников)
	httpClient, err := provider.NewHTTPClient(cfg.CACertPath)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата",
			slog.String("path", cfg.CACertPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 6. Провайдеры объектных хранилищ
	fetcher := provider.NewFetcher(httpClient, cfg.FetchMaxBytes, cfg.FetchTrustedHosts()...)
	providerOpts := provider.Options{AttemptTimeout: cfg.UploadAttemptTimeout}
	local := provider.NewLocal(fetcher, providerOpts, logger)
	registry := provider.NewRegistry(
		provider.NewAliyun(fetcher, providerOpts, logger),
		provider.NewTencent(httpClient, fetcher, providerOpts, logger),
		provider.NewQiniu(httpClient, fetcher, providerOpts, logger),
		local,
	)
	publicAdapter, err := registry.For(cfg.PublicProvider)
	if err != nil {
		logger.Error("Платформенный провайдер недоступен", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Repositories
	lineupRepo := repository.NewLineupRepository(privatePool)
	profileRepo := repository.NewProfileRepository(privatePool)
	quotaRepo := repository.NewQuotaRepository(privatePool)
	quotaSettingsRepo := repository.NewQuotaSettingsRepository(privatePool)
	downloadLogRepo := repository.NewDownloadLogRepository(privatePool)
	publicLineupRepo := repository.NewPublicLineupRepository(publicPool)
	submissionRepo := repository.NewSubmissionRepository(publicPool)

	// 8. Services
	quotaSvc := service.NewQuotaService(
		quotaRepo, quotaSettingsRepo,
		map[model.QuotaAction]int{
			model.QuotaSubmission: cfg.QuotaSubmissionLimit,
			model.QuotaDownload:   cfg.QuotaDownloadLimit,
		},
		cfg.QuotaLocation, cfg.QuotaSettingsCacheTTL,
		logger,
	)
	displayIDs := service.NewDisplayIDResolver(profileRepo)
	migrationSvc := service.NewAssetMigrationService(registry, cfg.MigrationConcurrency, logger)
	normalizer := imagenorm.New(imagenorm.Options{
		MaxWidth:  cfg.ImageMaxWidth,
		MaxHeight: cfg.ImageMaxHeight,
		MaxPixels: cfg.ImageMaxPixels,
		Quality:   cfg.ImageQuality,
	})

	submissionSvc := service.NewSubmissionService(service.SubmissionDeps{
		Submissions:   submissionRepo,
		PublicLineups: publicLineupRepo,
		Lineups:       lineupRepo,
		Quota:         quotaSvc,
		DisplayIDs:    displayIDs,
		Normalizer:    normalizer,
		Temp:          local,
		TempConfig:    cfg.TempProvider(),
		Migrator:      migrationSvc,
		PublicConfig:  cfg.PublicProvider,
	}, logger)
	syncSvc := service.NewPublicSyncService(lineupRepo, publicLineupRepo, displayIDs, logger)
	lineupSvc := service.NewLineupService(
		lineupRepo, publicLineupRepo, downloadLogRepo, quotaSvc,
		migrationSvc, fetcher,
		cfg.MigrationConcurrency,
		logger,
	)
	reconcileSvc := service.NewReconcileService(submissionRepo, cfg.ReconcileInterval, logger)

	// 9. Readiness checkers (PostgreSQL + JWKS)
	pgChecker := database.NewReadinessChecker(privatePool, publicPool)
	jwksChecker := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, withTimeout(httpClient, cfg.JWKSClientTimeout))
	healthHandler := handlers.NewHealthHandler(pgChecker, jwksChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(handlers.Deps{
		Submissions:     submissionSvc,
		Sync:            syncSvc,
		Reconcile:       reconcileSvc,
		Lineups:         lineupSvc,
		Quota:           quotaSvc,
		PackageMaxBytes: cfg.PackageMaxBytes,
	}, logger)

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		withTimeout(httpClient, cfg.JWKSClientTimeout),
		cfg.RoleModeratorGroups,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. Фоновая сверка заявок (LM_RECONCILE_INTERVAL=0 — только по запросу)
	reconcileSvc.Start(ctx)

	// 13. topologymetrics — мониторинг зависимостей.
	// Адаптер pgxpool → *sql.DB: проверка идёт через существующий пул.
	privateDB := stdlib.OpenDBFromPool(privatePool)
	defer privateDB.Close()
	var publicDB *sql.DB
	if !sharedDB {
		publicDB = stdlib.OpenDBFromPool(publicPool)
		defer publicDB.Close()
	}

	dephealthSvc, dephealthErr := service.NewDephealthService(
		"lineup-module",
		cfg.DephealthGroup,
		service.DependencyTargets{
			PrivateDB:    privateDB,
			PrivateDBURL: cfg.PrivateDB.HealthURL(),
			PublicDB:     publicDB,
			PublicDBURL:  cfg.PublicDB.HealthURL(),
			JWKSURL:      cfg.JWTJWKSURL,
			StorageURL:   publicAdapter.PublicURL(cfg.PublicProvider, ""),
		},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	reconcileSvc.Stop()
	logger.Info("Lineup Module остановлен")
}

// withTimeout возвращает копию клиента с общим таймаутом запроса.
// Клиент загрузчика источников таймаута не имеет: его задаёт контекст попытки.
func withTimeout(c *http.Client, timeout time.Duration) *http.Client {
	clone := *c
	clone.Timeout = timeout
	return &clone
}
