package dto

// ReportStudentRequest files a disciplinary report.
type ReportStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
	Severity  string `json:"severity" validate:"required,oneof=WARNING SEVERE"`
}

// ExecuteBlockRequest executes a block for an escalated report.
type ExecuteBlockRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ReportID  string `json:"report_id" validate:"required"`
}
