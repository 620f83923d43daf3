package models

import "time"

// AuditAction constants represent HTTP-level actions to be logged,
// separate from the permission event stream.
const (
	AuditActionLogin        = "LOGIN"
	AuditActionLogout       = "LOGOUT"
	AuditActionOTPSignIn    = "OTP_SIGNIN"
	AuditActionUserApprove  = "USER_APPROVE"
	AuditActionUserBlock    = "USER_BLOCK"
	AuditActionUserUnblock  = "USER_UNBLOCK"
	AuditActionBulkImport   = "USER_BULK_IMPORT"
	AuditActionPassIssue    = "PASS_TOKEN_ISSUE"
	AuditActionReportCreate = "DISCIPLINARY_REPORT"
	AuditActionBlockExecute = "DISCIPLINARY_BLOCK"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
