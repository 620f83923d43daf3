package models

import "time"

// ApprovalType determines which review stages a request passes through.
type ApprovalType string

const (
	ApprovalTeacherOnly ApprovalType = "TEACHER_ONLY"
	ApprovalTeacherHOD  ApprovalType = "TEACHER_HOD"
)

// StageStatus is the per-stage review state.
type StageStatus string

const (
	StagePending     StageStatus = "pending"
	StageApproved    StageStatus = "approved"
	StageRejected    StageStatus = "rejected"
	StageNotRequired StageStatus = "not_required"
)

// Decision is a reviewer's verdict on a pending stage.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether the decision is one of the two verdicts.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Workflow history step tags.
const (
	StepRequested       = "REQUESTED"
	StepApproved        = "APPROVED"
	StepRejected        = "REJECTED"
	StepTeacherEndorsed = "TEACHER_ENDORSED"
	StepEscalated       = "TEACHER_ESCALATED"
	StepBlocked         = "BLOCKED"
)

// PermissionRequest is a student leave request moving through the
// approval workflow. final_status is terminal (approved/rejected) iff
// every policy-required stage is non-pending; once terminal the record
// is immutable to workflow actions.
type PermissionRequest struct {
	ID                string       `db:"id" json:"id"`
	StudentID         string       `db:"student_id" json:"student_id"`
	StudentEmail      string       `db:"student_email" json:"student_email"`
	StudentName       string       `db:"student_name" json:"student_name"`
	StudentRoll       string       `db:"student_roll" json:"student_roll"`
	StudentDepartment string       `db:"student_department" json:"student_department"`
	ReasonID          string       `db:"reason_id" json:"reason_id"`
	ReasonLabel       string       `db:"reason_label" json:"reason_label"`
	ReasonIsCustom    bool         `db:"reason_is_custom" json:"reason_is_custom"`
	CustomReason      *string      `db:"custom_reason" json:"custom_reason,omitempty"`
	ApprovalType      ApprovalType `db:"approval_type" json:"approval_type"`
	StartDate         time.Time    `db:"start_date" json:"start_date"`
	EndDate           time.Time    `db:"end_date" json:"end_date"`
	TeacherStatus     StageStatus  `db:"teacher_status" json:"teacher_status"`
	HODStatus         StageStatus  `db:"hod_status" json:"hod_status"`
	FinalStatus       StageStatus  `db:"final_status" json:"final_status"`

	TeacherActorID    *string    `db:"teacher_actor_id" json:"teacher_actor_id,omitempty"`
	TeacherActorName  *string    `db:"teacher_actor_name" json:"teacher_actor_name,omitempty"`
	TeacherActorEmail *string    `db:"teacher_actor_email" json:"teacher_actor_email,omitempty"`
	TeacherDecision   *Decision  `db:"teacher_decision" json:"teacher_decision,omitempty"`
	TeacherDecidedAt  *time.Time `db:"teacher_decided_at" json:"teacher_decided_at,omitempty"`

	HODActorID    *string    `db:"hod_actor_id" json:"hod_actor_id,omitempty"`
	HODActorName  *string    `db:"hod_actor_name" json:"hod_actor_name,omitempty"`
	HODActorEmail *string    `db:"hod_actor_email" json:"hod_actor_email,omitempty"`
	HODDecision   *Decision  `db:"hod_decision" json:"hod_decision,omitempty"`
	HODDecidedAt  *time.Time `db:"hod_decided_at" json:"hod_decided_at,omitempty"`

	PDFGenerated   bool       `db:"pdf_generated" json:"pdf_generated"`
	PDFGeneratedAt *time.Time `db:"pdf_generated_at" json:"pdf_generated_at,omitempty"`
	VerifyToken    *string    `db:"verify_token" json:"verify_token,omitempty"`
	PDFURL         *string    `db:"pdf_url" json:"pdf_url,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the request reached a final state.
func (p *PermissionRequest) Terminal() bool {
	return p.FinalStatus == StageApproved || p.FinalStatus == StageRejected
}

// DurationDays is the inclusive day count of the validity window,
// the input to the escalation threshold check.
func (p *PermissionRequest) DurationDays() int {
	start := p.StartDate.Truncate(24 * time.Hour)
	end := p.EndDate.Truncate(24 * time.Hour)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// HistoryEntry is one append-only workflow history record embedded in a
// request's timeline. Entries are never mutated or deleted.
type HistoryEntry struct {
	ID           string    `db:"id" json:"id"`
	PermissionID string    `db:"permission_id" json:"permission_id"`
	Seq          int       `db:"seq" json:"seq"`
	Step         string    `db:"step" json:"step"`
	Actor        string    `db:"actor" json:"actor"`
	Role         string    `db:"role" json:"role"`
	Note         string    `db:"note" json:"note"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PermissionFilter constrains listing queries.
type PermissionFilter struct {
	StudentID     string
	TeacherStatus StageStatus
	FinalStatus   StageStatus
	Page          int
	PageSize      int
}
