// Пакет lifecycle — конечный автомат статусов заявки на модерацию.
//
// Жизненный цикл: pending → approved | rejected.
// Терминальные статусы переходов не имеют. Отзыв заявки владельцем —
// это переход pending → rejected с системной причиной.
package lifecycle

import (
	"fmt"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// Operation — действие над заявкой.
type Operation string

const (
	OpApprove  Operation = "approve"
	OpReject   Operation = "reject"
	OpWithdraw Operation = "withdraw"
	OpDelete   Operation = "delete"
)

// WithdrawReason — причина отклонения при отзыве заявки владельцем.
const WithdrawReason = "用户主动取消"

// validTransitions — матрица допустимых переходов.
var validTransitions = map[model.SubmissionStatus]map[model.SubmissionStatus]bool{
	model.SubmissionPending:  {model.SubmissionApproved: true, model.SubmissionRejected: true},
	model.SubmissionApproved: {},
	model.SubmissionRejected: {},
}

// allowedOperations — матрица допустимых операций для каждого статуса.
// Заявку в pending нельзя удалить, только отозвать: модератор должен её увидеть.
var allowedOperations = map[model.SubmissionStatus]map[Operation]bool{
	model.SubmissionPending:  {OpApprove: true, OpReject: true, OpWithdraw: true},
	model.SubmissionApproved: {OpDelete: true},
	model.SubmissionRejected: {OpDelete: true},
}

// TransitionError — ошибка недопустимого перехода или операции.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidStatus проверяет, что статус известен автомату.
func IsValidStatus(s model.SubmissionStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal — статус не имеет исходящих переходов.
func IsTerminal(s model.SubmissionStatus) bool {
	t, ok := validTransitions[s]
	return ok && len(t) == 0
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to model.SubmissionStatus) bool {
	return validTransitions[from][to]
}

// IsOperationAllowed проверяет, допустима ли операция в статусе.
func IsOperationAllowed(s model.SubmissionStatus, op Operation) bool {
	return allowedOperations[s][op]
}

// CheckOperation возвращает *TransitionError, если операция недопустима.
func CheckOperation(s model.SubmissionStatus, op Operation) error {
	if !IsValidStatus(s) {
		return &TransitionError{
			Code:    "INVALID_STATUS",
			Message: fmt.Sprintf("неизвестный статус заявки: %q", s),
		}
	}
	if !IsOperationAllowed(s, op) {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("операция %s недопустима для заявки в статусе %s", op, s),
		}
	}
	return nil
}

// TargetStatus возвращает статус, в который операция переводит заявку.
// Для delete целевого статуса нет.
func TargetStatus(op Operation) (model.SubmissionStatus, bool) {
	switch op {
	case OpApprove:
		return model.SubmissionApproved, true
	case OpReject, OpWithdraw:
		return model.SubmissionRejected, true
	default:
		return "", false
	}
}
