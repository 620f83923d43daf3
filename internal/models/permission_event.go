package models

import "time"

// PermissionEventType enumerates workflow transition tags. Every
// transition emits exactly one event; no-op calls emit none.
type PermissionEventType string

const (
	EventRequested       PermissionEventType = "REQUESTED"
	EventTeacherApproved PermissionEventType = "TEACHER_APPROVED"
	EventTeacherRejected PermissionEventType = "TEACHER_REJECTED"
	EventHODApproved     PermissionEventType = "HOD_APPROVED"
	EventHODRejected     PermissionEventType = "HOD_REJECTED"
	EventRejected        PermissionEventType = "REJECTED"
	EventBlocked         PermissionEventType = "BLOCKED"
	EventPDFGenerated    PermissionEventType = "PDF_GENERATED"
)

// PermissionEvent is an append-only audit record in the global event
// stream, ordered by creation time for timeline reconstruction.
type PermissionEvent struct {
	ID           string              `db:"id" json:"id"`
	PermissionID string              `db:"permission_id" json:"permission_id"`
	Type         PermissionEventType `db:"type" json:"type"`
	ActorRole    string              `db:"actor_role" json:"actor_role"`
	ActorID      *string             `db:"actor_id" json:"actor_id,omitempty"`
	ActorEmail   *string             `db:"actor_email" json:"actor_email,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}
