package lifecycle

import (
	"errors"
	"testing"

	"github.com/bigkaa/lineupstore/internal/domain/model"
)

// TestTransitions_FromPending проверяет переходы из pending.
func TestTransitions_FromPending(t *testing.T) {
	if !CanTransition(model.SubmissionPending, model.SubmissionApproved) {
		t.Error("pending → approved должен быть допустим")
	}
	if !CanTransition(model.SubmissionPending, model.SubmissionRejected) {
		t.Error("pending → rejected должен быть допустим")
	}
	if CanTransition(model.SubmissionPending, model.SubmissionPending) {
		t.Error("pending → pending не должен быть допустим")
	}
}

// TestTransitions_TerminalIsolated проверяет, что терминальные статусы не имеют выходов.
func TestTransitions_TerminalIsolated(t *testing.T) {
	terminal := []model.SubmissionStatus{model.SubmissionApproved, model.SubmissionRejected}
	all := []model.SubmissionStatus{model.SubmissionPending, model.SubmissionApproved, model.SubmissionRejected}

	for _, from := range terminal {
		if !IsTerminal(from) {
			t.Errorf("%s должен быть терминальным", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("%s → %s не должен быть допустим", from, to)
			}
		}
	}
	if IsTerminal(model.SubmissionPending) {
		t.Error("pending не должен быть терминальным")
	}
}

// TestOperations проверяет матрицу допустимых операций.
func TestOperations(t *testing.T) {
	tests := []struct {
		status model.SubmissionStatus
		op     Operation
		want   bool
	}{
		{model.SubmissionPending, OpApprove, true},
		{model.SubmissionPending, OpReject, true},
		{model.SubmissionPending, OpWithdraw, true},
		{model.SubmissionPending, OpDelete, false},
		{model.SubmissionApproved, OpDelete, true},
		{model.SubmissionApproved, OpWithdraw, false},
		{model.SubmissionApproved, OpApprove, false},
		{model.SubmissionRejected, OpDelete, true},
		{model.SubmissionRejected, OpReject, false},
	}

	for _, tt := range tests {
		if got := IsOperationAllowed(tt.status, tt.op); got != tt.want {
			t.Errorf("IsOperationAllowed(%s, %s) = %v, ожидалось %v", tt.status, tt.op, got, tt.want)
		}
	}
}

// TestCheckOperation проверяет коды ошибок.
func TestCheckOperation(t *testing.T) {
	if err := CheckOperation(model.SubmissionPending, OpWithdraw); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	err := CheckOperation(model.SubmissionPending, OpDelete)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидалась *TransitionError, получено %v", err)
	}
	if te.Code != "INVALID_TRANSITION" {
		t.Errorf("Code = %q, ожидался INVALID_TRANSITION", te.Code)
	}

	err = CheckOperation(model.SubmissionStatus("draft"), OpApprove)
	if !errors.As(err, &te) || te.Code != "INVALID_STATUS" {
		t.Errorf("ожидался код INVALID_STATUS, получено %v", err)
	}
}

// TestTargetStatus проверяет целевые статусы операций.
func TestTargetStatus(t *testing.T) {
	if s, ok := TargetStatus(OpWithdraw); !ok || s != model.SubmissionRejected {
		t.Errorf("withdraw → %q, ожидался rejected", s)
	}
	if s, ok := TargetStatus(OpApprove); !ok || s != model.SubmissionApproved {
		t.Errorf("approve → %q, ожидался approved", s)
	}
	if _, ok := TargetStatus(OpDelete); ok {
		t.Error("delete не должен иметь целевого статуса")
	}
}
