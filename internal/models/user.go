package models

import "time"

// UserRole represents the available roles for the RBAC system.
// RolePending marks accounts created at first sign-in that an
// administrator has not yet activated.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleHOD          UserRole = "HOD"
	RoleTeacher      UserRole = "TEACHER"
	RoleLabAssistant UserRole = "LAB_ASSISTANT"
	RoleStudent      UserRole = "STUDENT"
	RolePending      UserRole = "PENDING"
)

// DisciplinaryStatus flags a student's standing on their profile.
type DisciplinaryStatus string

const (
	DisciplinaryNone    DisciplinaryStatus = "NONE"
	DisciplinaryWarning DisciplinaryStatus = "WARNING"
	DisciplinaryBlocked DisciplinaryStatus = "BLOCKED"
)

// approvalHierarchy lists which roles each role may activate.
var approvalHierarchy = map[UserRole][]UserRole{
	RoleAdmin:   {RoleHOD, RoleTeacher, RoleLabAssistant, RoleStudent},
	RoleHOD:     {RoleTeacher, RoleStudent},
	RoleTeacher: {RoleStudent},
}

// CanApprove reports whether actorRole may activate an account holding
// targetRole. Equal or higher roles are never approvable.
func CanApprove(actorRole, targetRole UserRole) bool {
	for _, allowed := range approvalHierarchy[actorRole] {
		if allowed == targetRole {
			return true
		}
	}
	return false
}

// User represents a campus account stored in the users table.
type User struct {
	ID                 string             `db:"id" json:"id"`
	Email              string             `db:"email" json:"email"`
	DisplayName        string             `db:"display_name" json:"display_name"`
	Role               UserRole           `db:"role" json:"role"`
	Department         string             `db:"department" json:"department"`
	RollNumber         string             `db:"roll_number" json:"roll_number"`
	Approved           bool               `db:"approved" json:"approved"`
	ApprovedAt         *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
	Blocked            bool               `db:"blocked" json:"blocked"`
	BlockedAt          *time.Time         `db:"blocked_at" json:"blocked_at,omitempty"`
	BlockedBy          *string            `db:"blocked_by" json:"blocked_by,omitempty"`
	BlockReason        *string            `db:"block_reason" json:"block_reason,omitempty"`
	DisciplinaryStatus DisciplinaryStatus `db:"disciplinary_status" json:"disciplinary_status"`
	LastWarning        *string            `db:"last_warning" json:"last_warning,omitempty"`
	Attendance         int                `db:"attendance" json:"attendance"`
	PasswordHash       string             `db:"password_hash" json:"-"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Actor is the verified identity performing a workflow action, resolved
// by the identity gate before any transition is evaluated.
type Actor struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
	RollNumber  string   `json:"roll_number,omitempty"`
	Department  string   `json:"department,omitempty"`
	Blocked     bool     `json:"blocked"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role       *UserRole
	Approved   *bool
	Blocked    *bool
	Department string
	Search     string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
