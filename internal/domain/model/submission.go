package model

import "time"

// SubmissionStatus — статус заявки на модерацию.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission — заявка пользователя на публикацию lineup.
// Изображения заявки лежат во временной области хранения,
// отдельной от приватных и публичных записей.
type Submission struct {
	ID          string `json:"id"`
	SubmitterID string `json:"submitter_id"`
	LineupFields
	Status       SubmissionStatus `json:"status"`
	RejectReason *string          `json:"reject_reason,omitempty"`
	ReviewedBy   *string          `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// SubmissionReview — данные терминального перехода заявки.
type SubmissionReview struct {
	Status       SubmissionStatus
	RejectReason *string
	ReviewedBy   string
	ReviewedAt   time.Time
}

// ModerationView — заявка с вычисленным остатком квоты автора.
type ModerationView struct {
	*Submission
	RemainingQuota int `json:"remaining_quota"`
}
