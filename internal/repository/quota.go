package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// QuotaRepository — дневные счётчики действий пользователей.
// День задаётся датой (время отбрасывается вызывающей стороной).
type QuotaRepository interface {
	// Get возвращает счётчик за день (0, если записи нет).
	Get(ctx context.Context, userID string, action model.QuotaAction, day time.Time) (int, error)
	// GetMany возвращает счётчики нескольких пользователей за день.
	// Пользователи без записи в результат не попадают.
	GetMany(ctx context.Context, userIDs []string, action model.QuotaAction, day time.Time) (map[string]int, error)
	// Increment атомарно увеличивает счётчик на n и возвращает новое значение.
	Increment(ctx context.Context, userID string, action model.QuotaAction, day time.Time, n int) (int, error)
}

// quotaRepo — реализация QuotaRepository.
type quotaRepo struct {
	db DBTX
}

// NewQuotaRepository создаёт репозиторий дневных квот.
func NewQuotaRepository(db DBTX) QuotaRepository {
	return &quotaRepo{db: db}
}

// dateKey приводит время к строке даты YYYY-MM-DD в его собственной зоне.
func dateKey(day time.Time) string {
	return day.Format(time.DateOnly)
}

func (r *quotaRepo) Get(ctx context.Context, userID string, action model.QuotaAction, day time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count FROM daily_quotas
		WHERE user_id = $1 AND action = $2 AND quota_date = $3::date`,
		userID, string(action), dateKey(day),
	).Scan(&count)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("ошибка получения квоты: %w", err)
	}
	return count, nil
}

func (r *quotaRepo) GetMany(ctx context.Context, userIDs []string, action model.QuotaAction, day time.Time) (map[string]int, error) {
	result := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT user_id, count FROM daily_quotas
		WHERE user_id = ANY($1) AND action = $2 AND quota_date = $3::date`,
		userIDs, string(action), dateKey(day),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения квот: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования квоты: %w", err)
		}
		result[userID] = count
	}
	return result, rows.Err()
}

func (r *quotaRepo) Increment(ctx context.Context, userID string, action model.QuotaAction, day time.Time, n int) (int, error) {
	// Upsert-add: запись создаётся лениво, параллельные инкременты не теряются.
	var count int
	err := r.db.QueryRow(ctx, `
		INSERT INTO daily_quotas (user_id, action, quota_date, count)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (user_id, action, quota_date)
		DO UPDATE SET count = daily_quotas.count + EXCLUDED.count
		RETURNING count`,
		userID, string(action), dateKey(day), n,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка увеличения квоты: %w", err)
	}
	return count, nil
}

// QuotaSettingsRepository — переопределения дневных лимитов.
type QuotaSettingsRepository interface {
	// GetLimit возвращает лимит действия или ErrNotFound, если он не переопределён.
	GetLimit(ctx context.Context, action model.QuotaAction) (int, error)
}

// quotaSettingsRepo — реализация QuotaSettingsRepository.
type quotaSettingsRepo struct {
	db DBTX
}

// NewQuotaSettingsRepository создаёт репозиторий лимитов.
func NewQuotaSettingsRepository(db DBTX) QuotaSettingsRepository {
	return &quotaSettingsRepo{db: db}
}

func (r *quotaSettingsRepo) GetLimit(ctx context.Context, action model.QuotaAction) (int, error) {
	var limit int
	err := r.db.QueryRow(ctx,
		`SELECT daily_limit FROM quota_settings WHERE action = $1`, string(action),
	).Scan(&limit)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка получения лимита %s: %w", action, err)
	}
	return limit, nil
}
