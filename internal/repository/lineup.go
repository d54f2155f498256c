package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// LineupRepository — доступ к личным записям приватного хранилища.
type LineupRepository interface {
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.Lineup, error)
	// ListPublishable возвращает записи пользователя, подходящие под фильтр,
	// кроме клонированных из публичного хранилища.
	ListPublishable(ctx context.Context, userID string, filter model.SyncFilter) ([]*model.Lineup, error)
	// UpdateImages заменяет набор изображений записи.
	UpdateImages(ctx context.Context, id string, images model.Images) error
}

// lineupRepo — реализация LineupRepository.
type lineupRepo struct {
	db DBTX
}

// NewLineupRepository создаёт репозиторий личных записей.
func NewLineupRepository(db DBTX) LineupRepository {
	return &lineupRepo{db: db}
}

const lineupColumns = `id, user_id, ` + fieldColumns + `, cloned_from, created_at, updated_at`

func scanLineup(row pgx.Row) (*model.Lineup, error) {
	l := &model.Lineup{}
	dest := concat(
		[]any{&l.ID, &l.UserID},
		fieldDest(&l.LineupFields),
		[]any{&l.ClonedFrom, &l.CreatedAt, &l.UpdatedAt},
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *lineupRepo) GetByID(ctx context.Context, id string) (*model.Lineup, error) {
	query := fmt.Sprintf(`SELECT %s FROM lineups WHERE id = $1`, lineupColumns)

	l, err := scanLineup(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения lineup: %w", err)
	}
	return l, nil
}

func (r *lineupRepo) ListPublishable(ctx context.Context, userID string, filter model.SyncFilter) ([]*model.Lineup, error) {
	conditions := []string{"user_id = $1", "cloned_from IS NULL"}
	args := []any{userID}

	if filter.MapName != "" {
		args = append(args, filter.MapName)
		conditions = append(conditions, fmt.Sprintf("map_name = $%d", len(args)))
	}
	if filter.AgentName != "" {
		args = append(args, filter.AgentName)
		conditions = append(conditions, fmt.Sprintf("agent_name = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM lineups
		WHERE %s
		ORDER BY created_at, id`, lineupColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка lineups: %w", err)
	}
	defer rows.Close()

	var result []*model.Lineup
	for rows.Next() {
		l, err := scanLineup(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования lineup: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *lineupRepo) UpdateImages(ctx context.Context, id string, images model.Images) error {
	if images == nil {
		images = model.Images{}
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE lineups SET images = $2, updated_at = NOW() WHERE id = $1`, id, images)
	if err != nil {
		return fmt.Errorf("ошибка обновления изображений lineup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
