// submission.go — очередь модерации: приём заявок, одобрение с переносом
// изображений в публичное хранилище, отклонение, отзыв и удаление.
//
// Одобрение (Approve) повторяемо:
//  1. Заявка должна быть в pending
//  2. Если публичная запись с source_id = ID заявки уже есть
//     (предыдущая попытка прервалась), сразу к шагу 5
//  3. Перенос изображений в платформенный провайдер
//  4. Вставка публичной записи (конфликт уникальности = уже опубликовано)
//  5. Условный перевод заявки в approved
//  6. Удаление временных изображений, только если перенесены все слоты
//
// Любой сбой до шага 5 оставляет заявку в pending.
//
// Prometheus-метрики:
//   - lm_submissions_total — операции над заявками по исходу
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lineupstore/internal/domain/lifecycle"
	"github.com/bigkaa/lineupstore/internal/domain/model"
	"github.com/bigkaa/lineupstore/internal/lineuppkg"
	"github.com/bigkaa/lineupstore/internal/repository"
	"github.com/bigkaa/lineupstore/internal/storage/imagenorm"
	"github.com/bigkaa/lineupstore/internal/storage/provider"
)

var submissionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lm_submissions_total",
	Help: "Операции над заявками на модерацию",
}, []string{"operation", "outcome"})

// ImageNormalizer приводит изображение заявки к формату хранения.
type ImageNormalizer interface {
	Normalize(data []byte) (*imagenorm.Result, error)
}

// TempStorage — временная область изображений заявок.
// Реализуется *provider.LocalAdapter.
type TempStorage interface {
	Upload(ctx context.Context, data []byte, cfg provider.Config, opts provider.UploadOptions) (*provider.UploadResult, error)
	DeletePrefix(ctx context.Context, cfg provider.Config, prefix string) error
	ObjectKeyFromURL(cfg provider.Config, rawURL string) (string, bool)
}

// SlotMigrator переносит слоты изображений в целевое хранилище.
type SlotMigrator interface {
	MigrateSlots(ctx context.Context, images map[model.Slot]string, target provider.Config, opts MigrateOptions) *MigrationResult
}

// SubmissionDraft — данные новой заявки: поля lineup и исходные изображения.
// URL в Fields.Images игнорируются, подписи сохраняются.
type SubmissionDraft struct {
	Fields model.LineupFields
	Images map[model.Slot][]byte
}

// ApproveResult — итог одобрения заявки.
type ApproveResult struct {
	PublicID string `json:"public_id"`
	// AlreadyPublished — публичная запись существовала до этого вызова.
	AlreadyPublished bool `json:"already_published"`
	// Migration — итог переноса изображений (nil, если перенос не выполнялся).
	Migration *MigrationResult `json:"migration,omitempty"`
}

// DeleteScope — какие терминальные заявки удалять массово.
type DeleteScope string

const (
	DeleteApproved DeleteScope = "approved"
	DeleteRejected DeleteScope = "rejected"
	DeleteAll      DeleteScope = "all"
)

// SubmissionDeps — зависимости SubmissionService.
type SubmissionDeps struct {
	Submissions   repository.SubmissionRepository
	PublicLineups repository.PublicLineupRepository
	Lineups       repository.LineupRepository
	Quota         *QuotaService
	DisplayIDs    *DisplayIDResolver
	Normalizer    ImageNormalizer
	Temp          TempStorage
	TempConfig    provider.Config
	Migrator      SlotMigrator
	PublicConfig  provider.Config
}

// SubmissionService — конвейер заявок на модерацию.
type SubmissionService struct {
	SubmissionDeps
	now    func() time.Time
	logger *slog.Logger
}

// NewSubmissionService создаёт сервис заявок.
func NewSubmissionService(deps SubmissionDeps, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		SubmissionDeps: deps,
		now:            time.Now,
		logger:         logger.With(slog.String("component", "submission")),
	}
}

// tempPrefix — префикс временной области заявки.
func tempPrefix(submitterID, submissionID string) string {
	return fmt.Sprintf("submissions/%s/%s", submitterID, submissionID)
}

// validateFields проверяет обязательные поля lineup.
func validateFields(f *model.LineupFields) error {
	f.Title = strings.TrimSpace(f.Title)
	f.MapName = strings.TrimSpace(f.MapName)
	f.AgentName = strings.TrimSpace(f.AgentName)

	var missing []string
	if f.Title == "" {
		missing = append(missing, "title")
	}
	if f.MapName == "" {
		missing = append(missing, "map_name")
	}
	if f.AgentName == "" {
		missing = append(missing, "agent_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: не заданы поля %s", ErrValidation, strings.Join(missing, ", "))
	}
	if f.Side != model.SideAttack && f.Side != model.SideDefense {
		return fmt.Errorf("%w: недопустимая сторона %q", ErrValidation, f.Side)
	}
	return nil
}

// Intake принимает новую заявку.
func (s *SubmissionService) Intake(ctx context.Context, submitterID string, draft SubmissionDraft) (*model.Submission, error) {
	// 1. Валидация и квота (до любой записи)
	if err := validateFields(&draft.Fields); err != nil {
		return nil, err
	}
	for slot := range draft.Images {
		if !slot.IsValid() {
			return nil, fmt.Errorf("%w: неизвестный слот %q", ErrValidation, slot)
		}
	}
	if _, err := s.Quota.Guard(ctx, submitterID, model.QuotaSubmission, 1); err != nil {
		submissionOpsTotal.WithLabelValues("intake", "quota_exceeded").Inc()
		return nil, err
	}

	id := uuid.NewString()
	prefix := tempPrefix(submitterID, id)

	// 2-3. Нормализация и загрузка во временную область
	images := make(model.Images)
	for _, slot := range model.AllSlots {
		data := draft.Images[slot]
		if len(data) == 0 {
			continue
		}
		norm, err := s.Normalizer.Normalize(data)
		if err != nil {
			s.cleanupTemp(ctx, prefix)
			return nil, fmt.Errorf("%w: изображение %s: %v", ErrValidation, slot, err)
		}
		up, err := s.Temp.Upload(ctx, norm.Data, s.TempConfig, provider.UploadOptions{
			BasePath:    prefix,
			Ext:         norm.Ext,
			ContentType: norm.ContentType,
		})
		if err != nil {
			s.cleanupTemp(ctx, prefix)
			return nil, fmt.Errorf("%w: загрузка %s: %v", ErrStorage, slot, err)
		}
		images[slot] = model.ImageSlot{URL: up.URL, Description: draft.Fields.Images[slot].Description}
	}

	// 4. Запись заявки
	sub, err := s.create(ctx, id, submitterID, draft.Fields, images, prefix)
	if err != nil {
		return nil, err
	}
	submissionOpsTotal.WithLabelValues("intake", "ok").Inc()
	return sub, nil
}

// IntakePackage принимает заявку из экспортного пакета lineup.
func (s *SubmissionService) IntakePackage(ctx context.Context, submitterID string, data []byte, maxBytes int64) (*model.Submission, error) {
	pkg, err := lineuppkg.Read(data, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	fields := pkg.Fields()
	// Внешние URL пакета во временную область не попадают.
	for slot, img := range fields.Images {
		img.URL = ""
		fields.Images[slot] = img
	}
	return s.Intake(ctx, submitterID, SubmissionDraft{Fields: fields, Images: pkg.Images})
}

// IntakeFromLineup создаёт заявку из собственной приватной записи,
// копируя её изображения во временную область.
func (s *SubmissionService) IntakeFromLineup(ctx context.Context, submitterID, lineupID string) (*model.Submission, error) {
	lineup, err := s.Lineups.GetByID(ctx, lineupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lineup %s", ErrNotFound, lineupID)
		}
		return nil, fmt.Errorf("получение lineup: %w", err)
	}
	if lineup.UserID != submitterID {
		return nil, fmt.Errorf("%w: lineup принадлежит другому пользователю", ErrForbidden)
	}
	if !lineup.IsPublishable() {
		return nil, fmt.Errorf("%w: клонированную запись нельзя предложить к публикации", ErrValidation)
	}
	fields := lineup.LineupFields
	if err := validateFields(&fields); err != nil {
		return nil, err
	}
	if _, err := s.Quota.Guard(ctx, submitterID, model.QuotaSubmission, 1); err != nil {
		submissionOpsTotal.WithLabelValues("intake", "quota_exceeded").Inc()
		return nil, err
	}

	id := uuid.NewString()
	prefix := tempPrefix(submitterID, id)

	mig := s.Migrator.MigrateSlots(ctx, lineup.Images.URLs(), s.TempConfig, MigrateOptions{BasePath: prefix})
	if !mig.Complete() {
		s.cleanupTemp(ctx, prefix)
		return nil, fmt.Errorf("%w: не удалось скопировать слоты %v", ErrStorage, mig.Failed)
	}

	sub, err := s.create(ctx, id, submitterID, fields, mig.Apply(lineup.Images), prefix)
	if err != nil {
		return nil, err
	}
	submissionOpsTotal.WithLabelValues("intake", "ok").Inc()
	return sub, nil
}

// create вставляет заявку и учитывает квоту.
// При ошибке вставки временные изображения удаляются.
func (s *SubmissionService) create(
	ctx context.Context,
	id, submitterID string,
	fields model.LineupFields,
	images model.Images,
	prefix string,
) (*model.Submission, error) {
	fields.Images = images
	sub := &model.Submission{ID: id, SubmitterID: submitterID, LineupFields: fields}

	if err := s.Submissions.Create(ctx, sub); err != nil {
		s.cleanupTemp(ctx, prefix)
		submissionOpsTotal.WithLabelValues("intake", "error").Inc()
		return nil, fmt.Errorf("создание заявки: %w", err)
	}

	// 5. Учёт квоты. Заявка уже создана, поэтому ошибка только логируется.
	if _, err := s.Quota.Increment(ctx, submitterID, model.QuotaSubmission, 1); err != nil {
		s.logger.Error("Не удалось увеличить квоту заявок",
			slog.String("submission_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Заявка принята",
		slog.String("submission_id", id),
		slog.String("submitter_id", submitterID),
		slog.Int("images", len(images)),
	)
	return sub, nil
}

// Approve одобряет заявку и публикует её.
func (s *SubmissionService) Approve(ctx context.Context, submissionID, moderatorID string) (*ApproveResult, error) {
	// 1. Заявка в pending
	sub, err := s.get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := checkOperation(sub.Status, lifecycle.OpApprove); err != nil {
		return nil, err
	}

	result := &ApproveResult{}
	created := false
	complete := true

	// 2. Повторная попытка: публичная запись уже есть
	existing, err := s.PublicLineups.GetBySourceID(ctx, sub.ID)
	switch {
	case err == nil:
		result.PublicID = existing.ID
		result.AlreadyPublished = true
		complete = !s.referencesTemp(existing.Images)
	case errors.Is(err, repository.ErrNotFound):
		// 3. Перенос изображений
		mig := s.Migrator.MigrateSlots(ctx, sub.Images.URLs(), s.PublicConfig, MigrateOptions{})
		result.Migration = mig
		complete = mig.Complete()

		// 4. Публичная запись
		publicID, inserted, err := s.publish(ctx, sub, mig.Apply(sub.Images))
		if err != nil {
			submissionOpsTotal.WithLabelValues("approve", "error").Inc()
			return nil, err
		}
		result.PublicID = publicID
		result.AlreadyPublished = !inserted
		created = inserted
	default:
		return nil, fmt.Errorf("проверка публикации: %w", err)
	}

	// 5. Перевод в approved
	err = s.Submissions.Review(ctx, sub.ID, model.SubmissionReview{
		Status:     model.SubmissionApproved,
		ReviewedBy: moderatorID,
		ReviewedAt: s.now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			submissionOpsTotal.WithLabelValues("approve", "error").Inc()
			return nil, mapReviewError(err, sub.ID)
		}
		// Заявку рассмотрели параллельно. Если её одобрили (второй Approve
		// или сверка), публикация остаётся; иначе своя вставка откатывается.
		approved, settleErr := s.settleReviewConflict(ctx, sub.ID, result.PublicID, created)
		if settleErr != nil || !approved {
			submissionOpsTotal.WithLabelValues("approve", "conflict").Inc()
			if settleErr != nil {
				return nil, settleErr
			}
			return nil, mapReviewError(err, sub.ID)
		}
		result.AlreadyPublished = true
	}

	// 6. Очистка временной области
	if complete {
		s.cleanupTemp(ctx, tempPrefix(sub.SubmitterID, sub.ID))
	} else {
		s.logger.Warn("Перенесены не все изображения, временные файлы сохранены",
			slog.String("submission_id", sub.ID),
		)
	}

	outcome := "ok"
	if !complete {
		outcome = "partial"
	}
	submissionOpsTotal.WithLabelValues("approve", outcome).Inc()
	s.logger.Info("Заявка одобрена",
		slog.String("submission_id", sub.ID),
		slog.String("public_id", result.PublicID),
		slog.String("moderator_id", moderatorID),
		slog.Bool("already_published", result.AlreadyPublished),
	)
	return result, nil
}

// settleReviewConflict разбирает проигранный условный переход в approved.
// Возвращает true, если заявка в итоге одобрена. Публичная запись,
// созданная этим вызовом, удаляется только когда заявка не одобрена.
func (s *SubmissionService) settleReviewConflict(ctx context.Context, submissionID, publicID string, created bool) (bool, error) {
	current, err := s.get(ctx, submissionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return false, err
		}
		current = nil
	}
	if current != nil && current.Status == model.SubmissionApproved {
		s.logger.Info("Заявка одобрена параллельно, публикация сохранена",
			slog.String("submission_id", submissionID),
			slog.String("public_id", publicID),
		)
		return true, nil
	}
	if created {
		if delErr := s.PublicLineups.Delete(ctx, publicID); delErr != nil {
			s.logger.Error("Не удалось удалить публикацию после конфликта статуса",
				slog.String("public_id", publicID),
				slog.String("error", delErr.Error()),
			)
		}
	}
	return false, nil
}

// publish вставляет публичную запись заявки.
// Возвращает ID записи и признак, что вставка выполнена этим вызовом.
func (s *SubmissionService) publish(ctx context.Context, sub *model.Submission, images model.Images) (string, bool, error) {
	displayID, err := s.DisplayIDs.Resolve(ctx, sub.SubmitterID)
	if err != nil {
		return "", false, err
	}

	fields := sub.LineupFields
	fields.Images = images
	sourceID := sub.ID
	pl := &model.PublicLineup{UserID: displayID, LineupFields: fields, SourceID: &sourceID}

	err = s.PublicLineups.Create(ctx, pl)
	if err == nil {
		return pl.ID, true, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return "", false, fmt.Errorf("создание публичной записи: %w", err)
	}

	existing, err := s.PublicLineups.GetBySourceID(ctx, sub.ID)
	if err != nil {
		return "", false, fmt.Errorf("получение опубликованной записи: %w", err)
	}
	return existing.ID, false, nil
}

// referencesTemp — хотя бы одно изображение указывает во временную область.
func (s *SubmissionService) referencesTemp(images model.Images) bool {
	for _, u := range images.URLs() {
		if _, ok := s.Temp.ObjectKeyFromURL(s.TempConfig, u); ok {
			return true
		}
	}
	return false
}

// Reject отклоняет заявку с указанной причиной.
func (s *SubmissionService) Reject(ctx context.Context, submissionID, moderatorID, reason string) (*model.Submission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: причина отклонения обязательна", ErrValidation)
	}
	sub, err := s.get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if err := checkOperation(sub.Status, lifecycle.OpReject); err != nil {
		return nil, err
	}
	if err := s.review(ctx, sub, model.SubmissionRejected, &reason, moderatorID); err != nil {
		return nil, err
	}
	submissionOpsTotal.WithLabelValues("reject", "ok").Inc()
	return sub, nil
}

// Withdraw — отзыв заявки владельцем: отклонение с системной причиной.
func (s *SubmissionService) Withdraw(ctx context.Context, submissionID, ownerID string) (*model.Submission, error) {
	sub, err := s.get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.SubmitterID != ownerID {
		return nil, fmt.Errorf("%w: заявка принадлежит другому пользователю", ErrForbidden)
	}
	if err := checkOperation(sub.Status, lifecycle.OpWithdraw); err != nil {
		return nil, err
	}
	reason := lifecycle.WithdrawReason
	if err := s.review(ctx, sub, model.SubmissionRejected, &reason, ownerID); err != nil {
		return nil, err
	}
	submissionOpsTotal.WithLabelValues("withdraw", "ok").Inc()
	return sub, nil
}

// review выполняет условный терминальный переход и обновляет sub.
func (s *SubmissionService) review(ctx context.Context, sub *model.Submission, status model.SubmissionStatus, reason *string, reviewer string) error {
	now := s.now().UTC()
	err := s.Submissions.Review(ctx, sub.ID, model.SubmissionReview{
		Status:       status,
		RejectReason: reason,
		ReviewedBy:   reviewer,
		ReviewedAt:   now,
	})
	if err != nil {
		return mapReviewError(err, sub.ID)
	}
	sub.Status = status
	sub.RejectReason = reason
	sub.ReviewedBy = &reviewer
	sub.ReviewedAt = &now
	sub.UpdatedAt = now

	s.logger.Info("Статус заявки изменён",
		slog.String("submission_id", sub.ID),
		slog.String("status", string(status)),
		slog.String("reviewed_by", reviewer),
	)
	return nil
}

// DeleteTerminal удаляет рассмотренную заявку владельца и её временные файлы.
func (s *SubmissionService) DeleteTerminal(ctx context.Context, submissionID, ownerID string) error {
	sub, err := s.get(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.SubmitterID != ownerID {
		return fmt.Errorf("%w: заявка принадлежит другому пользователю", ErrForbidden)
	}
	if err := checkOperation(sub.Status, lifecycle.OpDelete); err != nil {
		return err
	}
	if err := s.Submissions.Delete(ctx, sub.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: заявка %s", ErrNotFound, sub.ID)
		}
		return fmt.Errorf("удаление заявки: %w", err)
	}
	s.releaseTemp(ctx, sub.SubmitterID, sub.ID)
	submissionOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// DeleteByStatus массово удаляет терминальные заявки.
// ownerID nil — заявки всех пользователей (для модератора).
func (s *SubmissionService) DeleteByStatus(ctx context.Context, ownerID *string, scope DeleteScope) (int, error) {
	var statuses []model.SubmissionStatus
	switch scope {
	case DeleteApproved:
		statuses = []model.SubmissionStatus{model.SubmissionApproved}
	case DeleteRejected:
		statuses = []model.SubmissionStatus{model.SubmissionRejected}
	case DeleteAll:
		statuses = []model.SubmissionStatus{model.SubmissionApproved, model.SubmissionRejected}
	default:
		return 0, fmt.Errorf("%w: недопустимая область удаления %q, допустимые: approved, rejected, all", ErrValidation, scope)
	}

	deleted, err := s.Submissions.DeleteByStatuses(ctx, ownerID, statuses)
	if err != nil {
		return 0, fmt.Errorf("массовое удаление заявок: %w", err)
	}
	for _, d := range deleted {
		s.releaseTemp(ctx, d.SubmitterID, d.ID)
	}
	s.logger.Info("Заявки удалены",
		slog.String("scope", string(scope)),
		slog.Int("count", len(deleted)),
	)
	return len(deleted), nil
}

// ListMine возвращает заявки пользователя.
func (s *SubmissionService) ListMine(ctx context.Context, ownerID string) ([]*model.Submission, error) {
	subs, err := s.Submissions.ListBySubmitter(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("список заявок: %w", err)
	}
	return subs, nil
}

// ListForModeration возвращает заявки с остатком квоты заявок их авторов.
func (s *SubmissionService) ListForModeration(ctx context.Context, status *model.SubmissionStatus, limit, offset int) ([]*model.ModerationView, error) {
	if status != nil && !lifecycle.IsValidStatus(*status) {
		return nil, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, *status)
	}
	subs, err := s.Submissions.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("список заявок: %w", err)
	}

	seen := make(map[string]bool)
	var submitters []string
	for _, sub := range subs {
		if !seen[sub.SubmitterID] {
			seen[sub.SubmitterID] = true
			submitters = append(submitters, sub.SubmitterID)
		}
	}
	remaining, err := s.Quota.RemainingMany(ctx, submitters, model.QuotaSubmission)
	if err != nil {
		return nil, err
	}

	views := make([]*model.ModerationView, len(subs))
	for i, sub := range subs {
		views[i] = &model.ModerationView{Submission: sub, RemainingQuota: remaining[sub.SubmitterID]}
	}
	return views, nil
}

func (s *SubmissionService) get(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := s.Submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: заявка %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение заявки: %w", err)
	}
	return sub, nil
}

// cleanupTemp удаляет временные изображения заявки (best effort).
func (s *SubmissionService) cleanupTemp(ctx context.Context, prefix string) {
	if err := s.Temp.DeletePrefix(ctx, s.TempConfig, prefix); err != nil {
		s.logger.Warn("Не удалось удалить временные изображения",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
	}
}

// releaseTemp удаляет временную область удалённой заявки. Область
// сохраняется, пока на неё ссылается публичная запись (частичный перенос
// при одобрении): иначе изображения публикации станут недоступны.
func (s *SubmissionService) releaseTemp(ctx context.Context, submitterID, submissionID string) {
	pl, err := s.PublicLineups.GetBySourceID(ctx, submissionID)
	switch {
	case err == nil && s.referencesTemp(pl.Images):
		s.logger.Info("Временные изображения сохранены: на них ссылается публикация",
			slog.String("submission_id", submissionID),
			slog.String("public_id", pl.ID),
		)
		return
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		s.logger.Warn("Не удалось проверить публикацию, временные изображения сохранены",
			slog.String("submission_id", submissionID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.cleanupTemp(ctx, tempPrefix(submitterID, submissionID))
}

// checkOperation переводит ошибку автомата статусов в ErrInvalidTransition.
func checkOperation(status model.SubmissionStatus, op lifecycle.Operation) error {
	if err := lifecycle.CheckOperation(status, op); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return nil
}

// mapReviewError переводит ошибки условного обновления статуса.
func mapReviewError(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: заявка %s", ErrNotFound, id)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: заявка %s уже рассмотрена", ErrInvalidTransition, id)
	default:
		return fmt.Errorf("обновление статуса заявки: %w", err)
	}
}
