// Пакет config — загрузка и валидация конфигурации Lineup Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// publicProviderPrefix — префикс переменных конфигурации платформенного провайдера.
const publicProviderPrefix = "LM_PUBLIC_PROVIDER_"

// DBConfig — параметры подключения к одной базе PostgreSQL.
type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	// Режим SSL: disable, require, verify-ca, verify-full
	SSLMode string
}

// DSN возвращает строку подключения для pgxpool.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// HealthURL возвращает URL без учётных данных для метрик зависимостей.
func (d DBConfig) HealthURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", d.Host, d.Port, d.Name)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (d DBConfig) MigrateURL(migrationsTable string) string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s&x-migrations-table=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode, migrationsTable,
	)
}

// Config содержит все параметры конфигурации Lineup Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Приватное хранилище: lineups, квоты, профили
	PrivateDB DBConfig
	// Публичное хранилище: public_lineups, заявки.
	// По умолчанию совпадает с приватным.
	PublicDB DBConfig

	// --- JWT ---

	// Issuer JWT
	JWTIssuer string
	// URL JWKS endpoint
	JWTJWKSURL string
	// Путь к CA-сертификату для JWKS и загрузки изображений (опционально)
	CACertPath string
	// Таймаут HTTP-клиента JWKS и проверки готовности
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления ключей JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration

	// Группы, дающие роль moderator (через запятую)
	RoleModeratorGroups []string

	// --- Квоты ---

	// Дневной лимит заявок по умолчанию
	QuotaSubmissionLimit int
	// Дневной лимит скачиваний по умолчанию
	QuotaDownloadLimit int
	// Часовой пояс, определяющий границу суток квоты
	QuotaLocation *time.Location
	// TTL кэша лимитов из quota_settings
	QuotaSettingsCacheTTL time.Duration

	// --- Миграция изображений ---

	// Максимум одновременных переносов URL в одной миграции
	MigrationConcurrency int
	// Таймаут одной попытки загрузки
	UploadAttemptTimeout time.Duration
	// Максимальный размер загружаемого источника
	FetchMaxBytes int64
	// Хосты источников, которым разрешены внутренние адреса
	FetchAllowedHosts []string
	// Максимальный размер загружаемого пакета заявки
	PackageMaxBytes int64

	// --- Временное хранилище заявок ---

	// Каталог файлов временного хранилища
	TempStorageRoot string
	// Внешний адрес раздачи временных файлов (маршрут /media)
	TempStorageBaseURL string

	// --- Нормализация изображений ---

	ImageMaxWidth  int
	ImageMaxHeight int
	// ImageMaxPixels — предел ширина×высота исходника, проверяется по заголовку.
	ImageMaxPixels int
	ImageQuality   float32

	// --- Платформенный провайдер ---

	// Конфигурация публичного объектного хранилища
	PublicProvider provider.Config

	// --- Фоновые задачи ---

	// Интервал фоновой сверки заявок (0 — отключена)
	ReconcileInterval time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках зависимостей
	DephealthGroup string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LM_PORT — порт HTTP-сервера (по умолчанию 8030)
	cfg.Port, err = getEnvInt("LM_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("LM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// LM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LM_LOG_LEVEL: %w", err)
	}

	// LM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// LM_DB_* — приватное хранилище, host/name/user/password обязательны
	cfg.PrivateDB, err = loadDB("LM_DB_", nil)
	if err != nil {
		return nil, err
	}

	// LM_PUBLIC_DB_* — публичное хранилище, незаданные поля берутся из LM_DB_*
	cfg.PublicDB, err = loadDB("LM_PUBLIC_DB_", &cfg.PrivateDB)
	if err != nil {
		return nil, err
	}

	// --- JWT ---

	// LM_JWT_ISSUER — обязательный
	cfg.JWTIssuer, err = getEnvRequired("LM_JWT_ISSUER")
	if err != nil {
		return nil, err
	}
	cfg.JWTIssuer = strings.TrimRight(cfg.JWTIssuer, "/")

	// LM_JWT_JWKS_URL — авто-вычисляется из issuer, если не задан
	cfg.JWTJWKSURL = getEnvDefault("LM_JWT_JWKS_URL", cfg.JWTIssuer+"/protocol/openid-connect/certs")

	// LM_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("LM_CA_CERT_PATH", "")

	// LM_JWKS_CLIENT_TIMEOUT — таймаут запросов к JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("LM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// LM_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 15m)
	cfg.JWKSRefreshInterval, err = getEnvDuration("LM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// LM_JWT_LEEWAY — допуск часов при проверке токена (по умолчанию 5s)
	cfg.JWTLeeway, err = getEnvDuration("LM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_JWT_LEEWAY: %w", err)
	}

	// LM_ROLE_MODERATOR_GROUPS — группы для роли moderator (по умолчанию "lineup-moderators")
	cfg.RoleModeratorGroups = parseCSV(getEnvDefault("LM_ROLE_MODERATOR_GROUPS", "lineup-moderators"))

	// --- Квоты ---

	// LM_QUOTA_SUBMISSION_LIMIT — дневной лимит заявок (по умолчанию 10)
	cfg.QuotaSubmissionLimit, err = getEnvInt("LM_QUOTA_SUBMISSION_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("LM_QUOTA_SUBMISSION_LIMIT: %w", err)
	}
	if cfg.QuotaSubmissionLimit < 0 {
		return nil, fmt.Errorf("LM_QUOTA_SUBMISSION_LIMIT: отрицательное значение %d", cfg.QuotaSubmissionLimit)
	}

	// LM_QUOTA_DOWNLOAD_LIMIT — дневной лимит скачиваний (по умолчанию 50)
	cfg.QuotaDownloadLimit, err = getEnvInt("LM_QUOTA_DOWNLOAD_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("LM_QUOTA_DOWNLOAD_LIMIT: %w", err)
	}
	if cfg.QuotaDownloadLimit < 0 {
		return nil, fmt.Errorf("LM_QUOTA_DOWNLOAD_LIMIT: отрицательное значение %d", cfg.QuotaDownloadLimit)
	}

	// LM_QUOTA_TIMEZONE — часовой пояс суток квоты (по умолчанию UTC)
	tz := getEnvDefault("LM_QUOTA_TIMEZONE", "UTC")
	cfg.QuotaLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("LM_QUOTA_TIMEZONE: неизвестный часовой пояс %q", tz)
	}

	// LM_QUOTA_SETTINGS_CACHE_TTL — TTL кэша лимитов (по умолчанию 1m)
	cfg.QuotaSettingsCacheTTL, err = getEnvDuration("LM_QUOTA_SETTINGS_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LM_QUOTA_SETTINGS_CACHE_TTL: %w", err)
	}

	// --- Миграция изображений ---

	// LM_MIGRATION_CONCURRENCY — параллельные переносы (по умолчанию 5)
	cfg.MigrationConcurrency, err = getEnvInt("LM_MIGRATION_CONCURRENCY", 5)
	if err != nil {
		return nil, fmt.Errorf("LM_MIGRATION_CONCURRENCY: %w", err)
	}
	if cfg.MigrationConcurrency < 1 || cfg.MigrationConcurrency > 32 {
		return nil, fmt.Errorf("LM_MIGRATION_CONCURRENCY: значение %d вне допустимого диапазона 1-32", cfg.MigrationConcurrency)
	}

	// LM_UPLOAD_ATTEMPT_TIMEOUT — таймаут попытки загрузки (по умолчанию 60s)
	cfg.UploadAttemptTimeout, err = getEnvDuration("LM_UPLOAD_ATTEMPT_TIMEOUT", provider.DefaultAttemptTimeout)
	if err != nil {
		return nil, fmt.Errorf("LM_UPLOAD_ATTEMPT_TIMEOUT: %w", err)
	}

	// LM_FETCH_MAX_BYTES — лимит размера источника (по умолчанию 32 MiB)
	cfg.FetchMaxBytes, err = getEnvInt64("LM_FETCH_MAX_BYTES", provider.DefaultMaxFetchBytes)
	if err != nil {
		return nil, fmt.Errorf("LM_FETCH_MAX_BYTES: %w", err)
	}

	// LM_FETCH_ALLOWED_HOSTS — доверенные хосты источников (CSV, по умолчанию пусто).
	// Хост LM_TEMP_STORAGE_BASE_URL доверенный всегда.
	cfg.FetchAllowedHosts = parseCSV(getEnvDefault("LM_FETCH_ALLOWED_HOSTS", ""))

	// LM_PACKAGE_MAX_BYTES — лимит размера пакета заявки (по умолчанию 64 MiB)
	cfg.PackageMaxBytes, err = getEnvInt64("LM_PACKAGE_MAX_BYTES", 64<<20)
	if err != nil {
		return nil, fmt.Errorf("LM_PACKAGE_MAX_BYTES: %w", err)
	}

	// --- Временное хранилище ---

	// LM_TEMP_STORAGE_ROOT — каталог временных файлов (по умолчанию /var/lib/lineup-module/media)
	cfg.TempStorageRoot = getEnvDefault("LM_TEMP_STORAGE_ROOT", "/var/lib/lineup-module/media")

	// LM_TEMP_STORAGE_BASE_URL — обязательный, внешний адрес маршрута /media
	cfg.TempStorageBaseURL, err = getEnvRequired("LM_TEMP_STORAGE_BASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.TempStorageBaseURL = strings.TrimRight(cfg.TempStorageBaseURL, "/")
	if u, err := url.Parse(cfg.TempStorageBaseURL); err != nil || u.Host == "" {
		return nil, fmt.Errorf("LM_TEMP_STORAGE_BASE_URL: некорректный адрес %q", cfg.TempStorageBaseURL)
	}

	// --- Нормализация изображений ---

	cfg.ImageMaxWidth, err = getEnvInt("LM_IMAGE_MAX_WIDTH", 1920)
	if err != nil {
		return nil, fmt.Errorf("LM_IMAGE_MAX_WIDTH: %w", err)
	}
	cfg.ImageMaxHeight, err = getEnvInt("LM_IMAGE_MAX_HEIGHT", 1920)
	if err != nil {
		return nil, fmt.Errorf("LM_IMAGE_MAX_HEIGHT: %w", err)
	}
	cfg.ImageMaxPixels, err = getEnvInt("LM_IMAGE_MAX_PIXELS", 40_000_000)
	if err != nil {
		return nil, fmt.Errorf("LM_IMAGE_MAX_PIXELS: %w", err)
	}
	quality, err := getEnvInt("LM_IMAGE_QUALITY", 82)
	if err != nil {
		return nil, fmt.Errorf("LM_IMAGE_QUALITY: %w", err)
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("LM_IMAGE_QUALITY: значение %d вне допустимого диапазона 1-100", quality)
	}
	cfg.ImageQuality = float32(quality)

	// --- Платформенный провайдер ---

	// LM_PUBLIC_PROVIDER — обязательный: aliyun, tencent, qiniu, local
	providerID, err := getEnvRequired("LM_PUBLIC_PROVIDER")
	if err != nil {
		return nil, err
	}
	cfg.PublicProvider = provider.ConfigFromEnv(provider.ID(strings.ToLower(providerID)),
		collectPrefixed(publicProviderPrefix))
	if err := cfg.PublicProvider.Validate(); err != nil {
		return nil, fmt.Errorf("LM_PUBLIC_PROVIDER: %w", err)
	}

	// --- Фоновые задачи ---

	// LM_RECONCILE_INTERVAL — интервал сверки (по умолчанию 0, отключена)
	cfg.ReconcileInterval, err = getEnvDuration("LM_RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("LM_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.ReconcileInterval < 0 {
		return nil, fmt.Errorf("LM_RECONCILE_INTERVAL: отрицательное значение %v", cfg.ReconcileInterval)
	}

	// LM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("LM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	// LM_DEPHEALTH_GROUP — группа в метриках зависимостей (по умолчанию lineup)
	cfg.DephealthGroup = getEnvDefault("LM_DEPHEALTH_GROUP", "lineup")

	// --- Graceful shutdown ---

	// LM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("LM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// TempProvider возвращает конфигурацию локального провайдера временной области заявок.
func (c *Config) TempProvider() provider.Config {
	return provider.NewConfig(provider.Local, map[string]string{
		"root":    c.TempStorageRoot,
		"baseURL": c.TempStorageBaseURL,
	})
}

// FetchTrustedHosts — хосты, источники с которых скачиваются без проверки
// адреса: маршрут /media временной области и LM_FETCH_ALLOWED_HOSTS.
func (c *Config) FetchTrustedHosts() []string {
	hosts := append([]string(nil), c.FetchAllowedHosts...)
	if u, err := url.Parse(c.TempStorageBaseURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, u.Hostname())
	}
	return hosts
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// loadDB читает группу переменных базы данных с префиксом prefix.
// Если fallback не nil, незаданные значения берутся из него.
func loadDB(prefix string, fallback *DBConfig) (DBConfig, error) {
	var db DBConfig
	var err error

	str := func(name string, fb string) (string, error) {
		if fallback != nil {
			return getEnvDefault(prefix+name, fb), nil
		}
		return getEnvRequired(prefix + name)
	}

	var fb DBConfig
	if fallback != nil {
		fb = *fallback
	}

	if db.Host, err = str("HOST", fb.Host); err != nil {
		return db, err
	}
	defPort := 5432
	if fallback != nil {
		defPort = fb.Port
	}
	if db.Port, err = getEnvInt(prefix+"PORT", defPort); err != nil {
		return db, fmt.Errorf("%sPORT: %w", prefix, err)
	}
	if db.Name, err = str("NAME", fb.Name); err != nil {
		return db, err
	}
	if db.User, err = str("USER", fb.User); err != nil {
		return db, err
	}
	if db.Password, err = str("PASSWORD", fb.Password); err != nil {
		return db, err
	}

	defSSL := "disable"
	if fallback != nil {
		defSSL = fb.SSLMode
	}
	db.SSLMode = getEnvDefault(prefix+"SSL_MODE", defSSL)
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[db.SSLMode] {
		return db, fmt.Errorf("%sSSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", prefix, db.SSLMode)
	}
	return db, nil
}

// collectPrefixed собирает переменные окружения с префиксом prefix.
// Ключ результата — остаток имени после префикса.
func collectPrefixed(prefix string) map[string]string {
	result := make(map[string]string)
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || val == "" {
			continue
		}
		result[strings.TrimPrefix(name, prefix)] = val
	}
	return result
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("некорректное положительное число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
