package models

// PermissionReason maps a requested reason to its approval policy.
// Absence of a reason id is a hard INVALID_REASON failure, never a
// defaulted policy. Sensitivity is not a reason attribute: the
// escalation check matches labels against the injected workflow config.
type PermissionReason struct {
	ID           string       `db:"id" json:"id"`
	Label        string       `db:"label" json:"label"`
	IsCustom     bool         `db:"is_custom" json:"is_custom"`
	ApprovalType ApprovalType `db:"approval_type" json:"approval_type"`
}
