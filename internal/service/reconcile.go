// reconcile.go — сверка заявок с публичным хранилищем.
//
// Если одобрение прервалось после вставки публичной записи, но до перевода
// заявки в approved, заявка остаётся в pending. Sweep находит такие заявки
// и завершает переход от имени системы. Запускается модератором по запросу
// и, если задан интервал, периодически в фоне.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/repository"
)

// ReconcileReviewer — reviewed_by заявок, завершённых сверкой.
const ReconcileReviewer = "system:reconcile"

// reconcileBatch — максимум заявок за один проход.
const reconcileBatch = 500

// ReconcileService завершает прерванные одобрения.
type ReconcileService struct {
	submissions repository.SubmissionRepository
	interval    time.Duration
	now         func() time.Time
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconcileService создаёт сервис сверки.
// interval — период фоновой сверки (0 — только по запросу).
func NewReconcileService(submissions repository.SubmissionRepository, interval time.Duration, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		submissions: submissions,
		interval:    interval,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую сверку. При нулевом интервале ничего не делает.
func (s *ReconcileService) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Фоновая сверка заявок запущена",
			slog.String("interval", s.interval.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Фоновая сверка заявок остановлена")
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("Ошибка фоновой сверки", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *ReconcileService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// Sweep переводит в approved заявки, уже имеющие публичную запись.
func (s *ReconcileService) Sweep(ctx context.Context) (*model.ReconcileResult, error) {
	ids, err := s.submissions.ListPendingPublished(ctx, reconcileBatch)
	if err != nil {
		return nil, fmt.Errorf("поиск прерванных одобрений: %w", err)
	}

	result := &model.ReconcileResult{Checked: len(ids)}
	for _, id := range ids {
		err := s.submissions.Review(ctx, id, model.SubmissionReview{
			Status:     model.SubmissionApproved,
			ReviewedBy: ReconcileReviewer,
			ReviewedAt: s.now().UTC(),
		})
		switch {
		case err == nil:
			result.Fixed++
		case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrNotFound):
			// Заявку успели рассмотреть или удалить.
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
		}
	}

	if result.Checked > 0 {
		s.logger.Info("Сверка заявок завершена",
			slog.Int("checked", result.Checked),
			slog.Int("fixed", result.Fixed),
			slog.Int("errors", len(result.Errors)),
		)
	}
	return result, nil
}
