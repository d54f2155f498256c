package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// DownloadLogRepository — журнал скачиваний пакетов (приватное хранилище).
type DownloadLogRepository interface {
	// Create добавляет запись и заполняет ID и CreatedAt.
	Create(ctx context.Context, entry *model.DownloadLog) error
	// List возвращает записи от новых к старым.
	List(ctx context.Context, limit, offset int) ([]*model.DownloadLog, error)
}

type downloadLogRepo struct {
	db DBTX
}

// NewDownloadLogRepository создаёт репозиторий журнала скачиваний.
func NewDownloadLogRepository(db DBTX) DownloadLogRepository {
	return &downloadLogRepo{db: db}
}

func (r *downloadLogRepo) Create(ctx context.Context, entry *model.DownloadLog) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO download_logs (user_id, lineup_id, lineup_title, map_name, agent_name, download_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		entry.UserID, entry.LineupID, entry.LineupTitle, entry.MapName, entry.AgentName, entry.DownloadCount,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала скачиваний: %w", err)
	}
	return nil
}

func (r *downloadLogRepo) List(ctx context.Context, limit, offset int) ([]*model.DownloadLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, lineup_id, lineup_title, map_name, agent_name, download_count, created_at
		FROM download_logs
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала скачиваний: %w", err)
	}
	defer rows.Close()

	var logs []*model.DownloadLog
	for rows.Next() {
		e := &model.DownloadLog{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.LineupID, &e.LineupTitle,
			&e.MapName, &e.AgentName, &e.DownloadCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала скачиваний: %w", err)
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
