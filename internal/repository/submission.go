package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// DeletedSubmission — идентификаторы удалённой заявки,
// нужные для очистки её временных изображений.
type DeletedSubmission struct {
	ID          string
	SubmitterID string
}

// SubmissionRepository — доступ к заявкам на модерацию.
type SubmissionRepository interface {
	// Create вставляет новую заявку со статусом pending.
	Create(ctx context.Context, s *model.Submission) error
	// GetByID возвращает заявку по UUID.
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	// ListBySubmitter возвращает заявки автора, новые первыми.
	ListBySubmitter(ctx context.Context, submitterID string) ([]*model.Submission, error)
	// ListByStatus возвращает заявки с указанным статусом (nil — все), старые первыми.
	ListByStatus(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.Submission, error)
	// Review переводит заявку из pending в терминальный статус.
	// Если заявка уже не pending — ErrConflict.
	Review(ctx context.Context, id string, review model.SubmissionReview) error
	// Delete удаляет заявку.
	Delete(ctx context.Context, id string) error
	// DeleteByStatuses удаляет заявки с указанными статусами.
	// submitterID nil — заявки всех авторов.
	DeleteByStatuses(ctx context.Context, submitterID *string, statuses []model.SubmissionStatus) ([]DeletedSubmission, error)
	// ListPendingPublished возвращает ID заявок в pending,
	// для которых уже существует публичная запись.
	ListPendingPublished(ctx context.Context, limit int) ([]string, error)
}

// submissionRepo — реализация SubmissionRepository.
type submissionRepo struct {
	db DBTX
}

// NewSubmissionRepository создаёт репозиторий заявок.
func NewSubmissionRepository(db DBTX) SubmissionRepository {
	return &submissionRepo{db: db}
}

const submissionColumns = `id, submitter_id, ` + fieldColumns + `,
	status, reject_reason, reviewed_by, reviewed_at, created_at, updated_at`

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	dest := concat(
		[]any{&s.ID, &s.SubmitterID},
		fieldDest(&s.LineupFields),
		[]any{&s.Status, &s.RejectReason, &s.ReviewedBy, &s.ReviewedAt, &s.CreatedAt, &s.UpdatedAt},
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	query := fmt.Sprintf(`
		INSERT INTO lineup_submissions (id, submitter_id, %s, status)
		VALUES ($1, $2, %s, 'pending')
		RETURNING status, created_at, updated_at`,
		fieldColumns, placeholders(3, fieldCount))

	args := concat([]any{s.ID, s.SubmitterID}, fieldArgs(&s.LineupFields))
	err := r.db.QueryRow(ctx, query, args...).Scan(&s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: заявка %s уже существует", ErrConflict, s.ID)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM lineup_submissions WHERE id = $1`, submissionColumns)

	s, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return s, nil
}

func (r *submissionRepo) ListBySubmitter(ctx context.Context, submitterID string) ([]*model.Submission, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM lineup_submissions
		WHERE submitter_id = $1
		ORDER BY created_at DESC`, submissionColumns)

	return r.list(ctx, query, submitterID)
}

func (r *submissionRepo) ListByStatus(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.Submission, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM lineup_submissions
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at
		LIMIT $2 OFFSET $3`, submissionColumns)

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}
	return r.list(ctx, query, statusArg, limit, offset)
}

func (r *submissionRepo) list(ctx context.Context, query string, args ...any) ([]*model.Submission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *submissionRepo) Review(ctx context.Context, id string, review model.SubmissionReview) error {
	// Условное обновление: из двух конкурентных модераторов выигрывает один.
	tag, err := r.db.Exec(ctx, `
		UPDATE lineup_submissions
		SET status = $2, reject_reason = $3, reviewed_by = $4, reviewed_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, string(review.Status), review.RejectReason, review.ReviewedBy, review.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заявки: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lineup_submissions WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки заявки: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return fmt.Errorf("%w: заявка %s уже рассмотрена", ErrConflict, id)
}

func (r *submissionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lineup_submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *submissionRepo) DeleteByStatuses(ctx context.Context, submitterID *string, statuses []model.SubmissionStatus) ([]DeletedSubmission, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.db.Query(ctx, `
		DELETE FROM lineup_submissions
		WHERE status = ANY($1) AND ($2::text IS NULL OR submitter_id = $2)
		RETURNING id, submitter_id`, names, submitterID)
	if err != nil {
		return nil, fmt.Errorf("ошибка массового удаления заявок: %w", err)
	}
	defer rows.Close()

	var result []DeletedSubmission
	for rows.Next() {
		var d DeletedSubmission
		if err := rows.Scan(&d.ID, &d.SubmitterID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования удалённой заявки: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *submissionRepo) ListPendingPublished(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id
		FROM lineup_submissions s
		JOIN public_lineups p ON p.source_id = s.id
		WHERE s.status = 'pending'
		ORDER BY s.created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска зависших заявок: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ID заявки: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
