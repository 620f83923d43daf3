package dto

// ApproveUserRequest activates a pending account with a role.
type ApproveUserRequest struct {
	Role string `json:"role" validate:"required,oneof=STUDENT TEACHER HOD LAB_ASSISTANT ADMIN"`
}

// BlockUserRequest sets or clears the block flag on a profile.
type BlockUserRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// BulkImportSummary reports the outcome of a CSV user import.
type BulkImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
}
