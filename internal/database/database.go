// Пакет database — подключение к PostgreSQL через pgxpool,
// применение миграций (golang-migrate) и проверка готовности.
//
// Модуль работает с двумя хранилищами: приватным (lineups, квоты,
// профили) и публичным (public_lineups, заявки). У каждого свой набор
// миграций и своя таблица версий, поэтому оба набора можно применить
// к одной базе.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/lineupstore/internal/config"
)

//go:embed migrations/private/*.sql migrations/public/*.sql
var migrationsFS embed.FS

// Store — набор миграций одного хранилища.
type Store string

const (
	// StorePrivate — приватное хранилище.
	StorePrivate Store = "private"
	// StorePublic — публичное хранилище.
	StorePublic Store = "public"
)

// migrationsTable возвращает имя таблицы версий набора.
func (s Store) migrationsTable() string {
	return "schema_migrations_" + string(s)
}

// Connect создаёт пул подключений к PostgreSQL.
// Выполняет ping для проверки доступности.
func Connect(ctx context.Context, db config.DBConfig, store Store, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(db.DSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL (%s): %w", store, err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("store", string(store)),
		slog.String("host", db.Host),
		slog.Int("port", db.Port),
		slog.String("database", db.Name),
	)

	return pool, nil
}

// Migrate применяет SQL-миграции набора store из embedded FS.
// Использует golang-migrate с драйвером pgx5.
func Migrate(db config.DBConfig, store Store, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations/"+string(store))
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, db.MigrateURL(store.migrationsTable()))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций (%s): %w", store, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций (%s): %w", store, err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.String("store", string(store)),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// ReadinessChecker — проверка готовности PostgreSQL для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	pools map[Store]*pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности обоих хранилищ.
// Если публичное хранилище использует тот же пул, его можно передать дважды.
func NewReadinessChecker(private, public *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pools: map[Store]*pgxpool.Pool{
		StorePrivate: private,
		StorePublic:  public,
	}}
}

// CheckReady проверяет подключения через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for _, store := range []Store{StorePrivate, StorePublic} {
		if err := c.pools[store].Ping(ctx); err != nil {
			return "fail", fmt.Sprintf("PostgreSQL (%s) недоступен: %v", store, err)
		}
	}
	return "ok", "подключения активны"
}
