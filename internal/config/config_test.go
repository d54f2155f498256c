package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"LM_DB_HOST":                           "localhost",
		"LM_DB_NAME":                           "lineups",
		"LM_DB_USER":                           "lineups",
		"LM_DB_PASSWORD":                       "secret",
		"LM_JWT_ISSUER":                        "https://keycloak.example.com/realms/lineups/",
		"LM_TEMP_STORAGE_BASE_URL":             "https://lineups.example.com/media/",
		"LM_PUBLIC_PROVIDER":                   "aliyun",
		"LM_PUBLIC_PROVIDER_ACCESS_KEY_ID":     "ak",
		"LM_PUBLIC_PROVIDER_ACCESS_KEY_SECRET": "sk",
		"LM_PUBLIC_PROVIDER_BUCKET":            "lineups",
		"LM_PUBLIC_PROVIDER_REGION":            "oss-cn-hangzhou",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8030 {
		t.Errorf("Port = %d, ожидается 8030", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.PrivateDB.Port != 5432 || cfg.PrivateDB.SSLMode != "disable" {
		t.Errorf("PrivateDB = %+v, ожидаются порт 5432 и sslmode disable", cfg.PrivateDB)
	}
	if cfg.PublicDB != cfg.PrivateDB {
		t.Errorf("PublicDB = %+v, ожидается копия PrivateDB", cfg.PublicDB)
	}
	if cfg.ImageMaxPixels != 40_000_000 {
		t.Errorf("ImageMaxPixels = %d, ожидается 40000000", cfg.ImageMaxPixels)
	}
	if cfg.JWTIssuer != "https://keycloak.example.com/realms/lineups" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTJWKSURL != "https://keycloak.example.com/realms/lineups/protocol/openid-connect/certs" {
		t.Errorf("JWTJWKSURL = %q", cfg.JWTJWKSURL)
	}
	if len(cfg.RoleModeratorGroups) != 1 || cfg.RoleModeratorGroups[0] != "lineup-moderators" {
		t.Errorf("RoleModeratorGroups = %v", cfg.RoleModeratorGroups)
	}
	if cfg.QuotaSubmissionLimit != 10 || cfg.QuotaDownloadLimit != 50 {
		t.Errorf("лимиты = %d/%d, ожидается 10/50", cfg.QuotaSubmissionLimit, cfg.QuotaDownloadLimit)
	}
	if cfg.QuotaLocation != time.UTC {
		t.Errorf("QuotaLocation = %v, ожидается UTC", cfg.QuotaLocation)
	}
	if cfg.MigrationConcurrency != 5 {
		t.Errorf("MigrationConcurrency = %d, ожидается 5", cfg.MigrationConcurrency)
	}
	if cfg.UploadAttemptTimeout != 60*time.Second {
		t.Errorf("UploadAttemptTimeout = %v, ожидается 60s", cfg.UploadAttemptTimeout)
	}
	if cfg.TempStorageBaseURL != "https://lineups.example.com/media" {
		t.Errorf("TempStorageBaseURL = %q", cfg.TempStorageBaseURL)
	}
	if cfg.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval = %v, ожидается 0", cfg.ReconcileInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}

	if cfg.PublicProvider.Provider != provider.Aliyun {
		t.Errorf("PublicProvider.Provider = %q", cfg.PublicProvider.Provider)
	}
	if got := cfg.PublicProvider.Get("accessKeySecret"); got != "sk" {
		t.Errorf("accessKeySecret = %q, ожидается sk", got)
	}
}

func TestLoad_PublicDBOverride(t *testing.T) {
	envs := minimalEnvs()
	envs["LM_PUBLIC_DB_HOST"] = "public-db"
	envs["LM_PUBLIC_DB_NAME"] = "public"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.PublicDB.Host != "public-db" || cfg.PublicDB.Name != "public" {
		t.Errorf("PublicDB = %+v", cfg.PublicDB)
	}
	if cfg.PublicDB.User != "lineups" || cfg.PublicDB.Password != "secret" {
		t.Error("незаданные поля PublicDB должны браться из LM_DB_*")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"LM_DB_HOST", "LM_DB_NAME", "LM_DB_USER", "LM_DB_PASSWORD",
		"LM_JWT_ISSUER", "LM_TEMP_STORAGE_BASE_URL", "LM_PUBLIC_PROVIDER",
	}
	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			envs := minimalEnvs()
			envs[key] = ""
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен вернуть ошибку", key)
			}
		})
	}
}

func TestLoad_IncompletePublicProvider(t *testing.T) {
	envs := minimalEnvs()
	envs["LM_PUBLIC_PROVIDER_BUCKET"] = ""
	setEnvs(t, envs)

	_, err := Load()
	if !errors.Is(err, provider.ErrConfigIncomplete) {
		t.Fatalf("ожидалась ErrConfigIncomplete, получено %v", err)
	}
}

func TestLoad_UnsupportedPublicProvider(t *testing.T) {
	envs := minimalEnvs()
	envs["LM_PUBLIC_PROVIDER"] = "dropbox"
	setEnvs(t, envs)

	_, err := Load()
	if !errors.Is(err, provider.ErrUnsupportedProvider) {
		t.Fatalf("ожидалась ErrUnsupportedProvider, получено %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key string
		val string
	}{
		{"LM_PORT", "abc"},
		{"LM_PORT", "70000"},
		{"LM_LOG_LEVEL", "verbose"},
		{"LM_LOG_FORMAT", "xml"},
		{"LM_DB_SSL_MODE", "maybe"},
		{"LM_QUOTA_SUBMISSION_LIMIT", "-1"},
		{"LM_QUOTA_TIMEZONE", "Mars/Olympus"},
		{"LM_MIGRATION_CONCURRENCY", "0"},
		{"LM_FETCH_MAX_BYTES", "0"},
		{"LM_IMAGE_QUALITY", "101"},
		{"LM_RECONCILE_INTERVAL", "-1m"},
		{"LM_SHUTDOWN_TIMEOUT", "soon"},
		{"LM_TEMP_STORAGE_BASE_URL", "media"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.val
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_QuotaTimezone(t *testing.T) {
	envs := minimalEnvs()
	envs["LM_QUOTA_TIMEZONE"] = "Asia/Shanghai"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.QuotaLocation.String() != "Asia/Shanghai" {
		t.Errorf("QuotaLocation = %v", cfg.QuotaLocation)
	}
}

func TestTempProvider(t *testing.T) {
	setEnvs(t, minimalEnvs())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	tp := cfg.TempProvider()
	if tp.Provider != provider.Local {
		t.Errorf("Provider = %q, ожидается local", tp.Provider)
	}
	if err := tp.Validate(); err != nil {
		t.Errorf("конфигурация временного хранилища невалидна: %v", err)
	}
}

func TestFetchTrustedHosts(t *testing.T) {
	envs := minimalEnvs()
	envs["LM_FETCH_ALLOWED_HOSTS"] = "cdn.internal, assets.lan"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	got := cfg.FetchTrustedHosts()
	want := []string{"cdn.internal", "assets.lan", "lineups.example.com"}
	if len(got) != len(want) {
		t.Fatalf("FetchTrustedHosts() = %v, ожидается %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FetchTrustedHosts()[%d] = %q, ожидается %q", i, got[i], want[i])
		}
	}
}

func TestDBConfig_MigrateURL(t *testing.T) {
	db := DBConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p", SSLMode: "disable"}
	want := "pgx5://u:p@h:5433/n?sslmode=disable&x-migrations-table=schema_migrations_public"
	if got := db.MigrateURL("schema_migrations_public"); got != want {
		t.Errorf("MigrateURL() = %q, ожидается %q", got, want)
	}
	if got := db.HealthURL(); got != "postgres://h:5433/n" {
		t.Errorf("HealthURL() = %q, пароль не должен попадать в метрики", got)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" a, ,b ,c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("parseCSV() = %v", got)
	}
	if parseCSV("") != nil {
		t.Error("parseCSV(\"\") должен вернуть nil")
	}
}
