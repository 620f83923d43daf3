package models

import "time"

// ReportSeverity grades a disciplinary report.
type ReportSeverity string

const (
	SeverityWarning ReportSeverity = "WARNING"
	SeveritySevere  ReportSeverity = "SEVERE"
)

// ReportStatus tracks the disciplinary workflow.
type ReportStatus string

const (
	ReportWarningIssued ReportStatus = "WARNING_ISSUED"
	ReportPendingHOD    ReportStatus = "PENDING_HOD"
	ReportActionTaken   ReportStatus = "ACTION_TAKEN"
)

// DisciplinaryReport records a behavioral report against a student.
// WARNING severity applies to the profile immediately; SEVERE reports
// sit in the pending-HOD queue until a block is explicitly executed.
type DisciplinaryReport struct {
	ID         string         `db:"id" json:"id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	ReporterID string         `db:"reporter_id" json:"reporter_id"`
	Reason     string         `db:"reason" json:"reason"`
	Severity   ReportSeverity `db:"severity" json:"severity"`
	Status     ReportStatus   `db:"status" json:"status"`
	Action     *string        `db:"action" json:"action,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// DisciplinaryFilter constrains report listings.
type DisciplinaryFilter struct {
	StudentID string
	Status    ReportStatus
	Page      int
	PageSize  int
}
