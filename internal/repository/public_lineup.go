package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// PublicLineupRepository — доступ к записям публичного хранилища.
type PublicLineupRepository interface {
	// Create вставляет публичную запись. Повторный source_id → ErrConflict.
	Create(ctx context.Context, pl *model.PublicLineup) error
	// GetBySourceID возвращает запись, опубликованную из источника sourceID.
	GetBySourceID(ctx context.Context, sourceID string) (*model.PublicLineup, error)
	// ExistsBySourceID проверяет, опубликован ли источник.
	ExistsBySourceID(ctx context.Context, sourceID string) (bool, error)
	// CountBySourceIDs возвращает число опубликованных источников из списка.
	CountBySourceIDs(ctx context.Context, sourceIDs []string) (int, error)
	// Delete удаляет публичную запись по ID.
	Delete(ctx context.Context, id string) error
	// DeleteMany удаляет записи одним запросом и возвращает ID удалённых.
	DeleteMany(ctx context.Context, ids []string) ([]string, error)
}

// publicLineupRepo — реализация PublicLineupRepository.
type publicLineupRepo struct {
	db DBTX
}

// NewPublicLineupRepository создаёт репозиторий публичных записей.
func NewPublicLineupRepository(db DBTX) PublicLineupRepository {
	return &publicLineupRepo{db: db}
}

const publicLineupColumns = `id, user_id, ` + fieldColumns + `, source_id, created_at, updated_at`

func (r *publicLineupRepo) Create(ctx context.Context, pl *model.PublicLineup) error {
	query := fmt.Sprintf(`
		INSERT INTO public_lineups (user_id, %s, source_id)
		VALUES ($1, %s, $%d)
		RETURNING id, created_at, updated_at`,
		fieldColumns, placeholders(2, fieldCount), fieldCount+2)

	args := concat([]any{pl.UserID}, fieldArgs(&pl.LineupFields), []any{pl.SourceID})
	err := r.db.QueryRow(ctx, query, args...).Scan(&pl.ID, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: source_id уже опубликован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания публичной записи: %w", err)
	}
	return nil
}

func (r *publicLineupRepo) GetBySourceID(ctx context.Context, sourceID string) (*model.PublicLineup, error) {
	query := fmt.Sprintf(`SELECT %s FROM public_lineups WHERE source_id = $1`, publicLineupColumns)

	pl := &model.PublicLineup{}
	dest := concat(
		[]any{&pl.ID, &pl.UserID},
		fieldDest(&pl.LineupFields),
		[]any{&pl.SourceID, &pl.CreatedAt, &pl.UpdatedAt},
	)
	if err := r.db.QueryRow(ctx, query, sourceID).Scan(dest...); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения публичной записи: %w", err)
	}
	return pl, nil
}

func (r *publicLineupRepo) ExistsBySourceID(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM public_lineups WHERE source_id = $1)`, sourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки публикации: %w", err)
	}
	return exists, nil
}

func (r *publicLineupRepo) CountBySourceIDs(ctx context.Context, sourceIDs []string) (int, error) {
	if len(sourceIDs) == 0 {
		return 0, nil
	}
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM public_lineups WHERE source_id = ANY($1::uuid[])`, sourceIDs,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта опубликованных записей: %w", err)
	}
	return count, nil
}

func (r *publicLineupRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM public_lineups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления публичной записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *publicLineupRepo) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`DELETE FROM public_lineups WHERE id = ANY($1::uuid[]) RETURNING id`, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления публичных записей: %w", err)
	}
	deleted, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления публичных записей: %w", err)
	}
	return deleted, nil
}
