// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — операция доступна только владельцу ресурса.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrQuotaExceeded — дневная квота исчерпана.
	ErrQuotaExceeded = errors.New("дневная квота исчерпана")
	// ErrInvalidTransition — операция недопустима в текущем статусе заявки.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	// ErrStorage — объектное хранилище не приняло изображения.
	ErrStorage = errors.New("ошибка объектного хранилища")
)

// QuotaExceededError — отказ квоты с текущим состоянием счётчика.
type QuotaExceededError struct {
	Status model.QuotaStatus
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %s использовано %d из %d",
		ErrQuotaExceeded.Error(), e.Status.Action, e.Status.Used, e.Status.Limit)
}

// Is позволяет сравнивать через errors.Is(err, ErrQuotaExceeded).
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
