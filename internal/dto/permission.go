package dto

import "time"

// CreatePermissionRequest is the student submission payload.
type CreatePermissionRequest struct {
	ReasonID     string    `json:"reason_id" validate:"required"`
	CustomReason string    `json:"custom_reason"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
}

// DecisionRequest carries a reviewer verdict for a pending stage.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

// RejectRequest carries an explicit rejection with optional free text.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BlockStudentRequest is the compound reject-and-block payload.
type BlockStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// PermissionQuery filters permission listings.
type PermissionQuery struct {
	StudentID string `form:"student_id"`
	Status    string `form:"status"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}
