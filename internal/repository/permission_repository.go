package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harsha-e/unipass-api/internal/models"
)

// ErrStaleTransition signals that a conditional update matched zero
// rows: the expected stage was no longer current. Callers treat this as
// a no-op, not a failure.
var ErrStaleTransition = errors.New("transition precondition not met")

const permissionColumns = `id, student_id, student_email, student_name, student_roll, student_department,
reason_id, reason_label, reason_is_custom, custom_reason, approval_type, start_date, end_date,
teacher_status, hod_status, final_status,
teacher_actor_id, teacher_actor_name, teacher_actor_email, teacher_decision, teacher_decided_at,
hod_actor_id, hod_actor_name, hod_actor_email, hod_decision, hod_decided_at,
pdf_generated, pdf_generated_at, verify_token, pdf_url, created_at, updated_at`

// PermissionRepository persists leave requests, their embedded workflow
// history and the global event stream. All transitions are conditional
// writes committed together with their history entry and event.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// ApprovalRecord captures the reviewer identity stored in a stage slot.
type ApprovalRecord struct {
	ActorID    string
	ActorName  string
	ActorEmail string
	Decision   models.Decision
	DecidedAt  time.Time
}

// StageTransition describes one conditional workflow write: the new
// stage values, the approval slot to fill, the history entry to append
// and the event to emit. The write applies only while the guard stages
// still hold.
type StageTransition struct {
	PermissionID  string
	TeacherStatus *models.StageStatus
	HODStatus     *models.StageStatus
	FinalStatus   models.StageStatus
	Teacher       *ApprovalRecord
	HOD           *ApprovalRecord
	History       models.HistoryEntry
	Event         models.PermissionEvent
}

// Create inserts a new request together with its REQUESTED history
// entry and event in one transaction.
func (r *PermissionRepository) Create(ctx context.Context, perm *models.PermissionRequest, history models.HistoryEntry, event models.PermissionEvent) error {
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = now
	}
	perm.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create permission: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO permissions (id, student_id, student_email, student_name, student_roll, student_department,
reason_id, reason_label, reason_is_custom, custom_reason, approval_type, start_date, end_date,
teacher_status, hod_status, final_status, pdf_generated, created_at, updated_at)
VALUES (:id, :student_id, :student_email, :student_name, :student_roll, :student_department,
:reason_id, :reason_label, :reason_is_custom, :custom_reason, :approval_type, :start_date, :end_date,
:teacher_status, :hod_status, :final_status, :pdf_generated, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, perm); err != nil {
		return fmt.Errorf("create permission: %w", err)
	}

	history.PermissionID = perm.ID
	event.PermissionID = perm.ID
	if err := appendHistoryTx(ctx, tx, history); err != nil {
		return err
	}
	if err := insertEventTx(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create permission: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE id = $1 LIMIT 1`
	var perm models.PermissionRequest
	if err := r.db.GetContext(ctx, &perm, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get permission: %w", err)
	}
	return &perm, nil
}

// ListByStudent returns all requests created by a student.
func (r *PermissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE student_id = $1 ORDER BY created_at DESC`
	var perms []models.PermissionRequest
	if err := r.db.SelectContext(ctx, &perms, query, studentID); err != nil {
		return nil, fmt.Errorf("list permissions by student: %w", err)
	}
	return perms, nil
}

// ListPendingTeacher returns requests awaiting teacher review.
func (r *PermissionRepository) ListPendingTeacher(ctx context.Context) ([]models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE teacher_status = $1 ORDER BY created_at ASC`
	var perms []models.PermissionRequest
	if err := r.db.SelectContext(ctx, &perms, query, models.StagePending); err != nil {
		return nil, fmt.Errorf("list pending teacher permissions: %w", err)
	}
	return perms, nil
}

// ListAll returns the full review queue for HOD dashboards.
func (r *PermissionRepository) ListAll(ctx context.Context) ([]models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions ORDER BY created_at DESC`
	var perms []models.PermissionRequest
	if err := r.db.SelectContext(ctx, &perms, query); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

// FindApprovedByVerifyToken resolves a pass token to its approved
// request; used by the gate verification boundary.
func (r *PermissionRepository) FindApprovedByVerifyToken(ctx context.Context, token string) (*models.PermissionRequest, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE verify_token = $1 AND final_status = $2 LIMIT 1`
	var perm models.PermissionRequest
	if err := r.db.GetContext(ctx, &perm, query, token, models.StageApproved); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find permission by verify token: %w", err)
	}
	return &perm, nil
}

// ApplyTeacherDecision commits a teacher-stage transition. The guard is
// teacher_status = 'pending'; a stale guard returns ErrStaleTransition
// with nothing written, so retries never double-append history.
func (r *PermissionRepository) ApplyTeacherDecision(ctx context.Context, t StageTransition) error {
	return r.applyTransition(ctx, t, `UPDATE permissions SET
teacher_status = $2, hod_status = COALESCE($3, hod_status), final_status = $4,
teacher_actor_id = $5, teacher_actor_name = $6, teacher_actor_email = $7, teacher_decision = $8, teacher_decided_at = $9,
updated_at = $10
WHERE id = $1 AND teacher_status = 'pending'`,
		func(t StageTransition, now time.Time) []interface{} {
			return []interface{}{
				t.PermissionID, *t.TeacherStatus, t.HODStatus, t.FinalStatus,
				t.Teacher.ActorID, t.Teacher.ActorName, t.Teacher.ActorEmail, t.Teacher.Decision, t.Teacher.DecidedAt,
				now,
			}
		})
}

// ApplyHODDecision commits an HOD-stage transition. Guards: TEACHER_HOD
// policy, teacher approved, hod pending.
func (r *PermissionRepository) ApplyHODDecision(ctx context.Context, t StageTransition) error {
	return r.applyTransition(ctx, t, `UPDATE permissions SET
hod_status = $2, final_status = $3,
hod_actor_id = $4, hod_actor_name = $5, hod_actor_email = $6, hod_decision = $7, hod_decided_at = $8,
updated_at = $9
WHERE id = $1 AND approval_type = 'TEACHER_HOD' AND teacher_status = 'approved' AND hod_status = 'pending'`,
		func(t StageTransition, now time.Time) []interface{} {
			return []interface{}{
				t.PermissionID, *t.HODStatus, t.FinalStatus,
				t.HOD.ActorID, t.HOD.ActorName, t.HOD.ActorEmail, t.HOD.Decision, t.HOD.DecidedAt,
				now,
			}
		})
}

// ApplyRejection rejects a non-terminal request, recording the verdict
// under the acting role's slot. The guard is final_status = 'pending'.
func (r *PermissionRepository) ApplyRejection(ctx context.Context, t StageTransition) error {
	if t.Teacher != nil {
		return r.applyTransition(ctx, t, `UPDATE permissions SET
teacher_status = 'rejected', final_status = 'rejected',
teacher_actor_id = $2, teacher_actor_name = $3, teacher_actor_email = $4, teacher_decision = $5, teacher_decided_at = $6,
updated_at = $7
WHERE id = $1 AND final_status = 'pending'`,
			func(t StageTransition, now time.Time) []interface{} {
				return []interface{}{
					t.PermissionID,
					t.Teacher.ActorID, t.Teacher.ActorName, t.Teacher.ActorEmail, t.Teacher.Decision, t.Teacher.DecidedAt,
					now,
				}
			})
	}
	return r.applyTransition(ctx, t, `UPDATE permissions SET
hod_status = 'rejected', final_status = 'rejected',
hod_actor_id = $2, hod_actor_name = $3, hod_actor_email = $4, hod_decision = $5, hod_decided_at = $6,
updated_at = $7
WHERE id = $1 AND final_status = 'pending'`,
		func(t StageTransition, now time.Time) []interface{} {
			return []interface{}{
				t.PermissionID,
				t.HOD.ActorID, t.HOD.ActorName, t.HOD.ActorEmail, t.HOD.Decision, t.HOD.DecidedAt,
				now,
			}
		})
}

func (r *PermissionRepository) applyTransition(ctx context.Context, t StageTransition, query string, argsFn func(StageTransition, time.Time) []interface{}) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, query, argsFn(t, now)...)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}

	t.History.PermissionID = t.PermissionID
	t.Event.PermissionID = t.PermissionID
	if err := appendHistoryTx(ctx, tx, t.History); err != nil {
		return err
	}
	if err := insertEventTx(ctx, tx, t.Event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// BlockStudent atomically rejects the named permission and sets the
// student's block flag. Both writes commit together or not at all.
func (r *PermissionRepository) BlockStudent(ctx context.Context, t StageTransition, studentID, blockedBy, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin block student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE permissions SET final_status = 'rejected', updated_at = $2 WHERE id = $1 AND final_status = 'pending'`, t.PermissionID, now)
	if err != nil {
		return fmt.Errorf("block: reject permission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("block rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET blocked = TRUE, blocked_at = $2, blocked_by = $3, block_reason = $4, disciplinary_status = $5, updated_at = $2 WHERE id = $1`,
		studentID, now, blockedBy, reason, models.DisciplinaryBlocked); err != nil {
		return fmt.Errorf("block: flag user: %w", err)
	}

	t.History.PermissionID = t.PermissionID
	t.Event.PermissionID = t.PermissionID
	if err := appendHistoryTx(ctx, tx, t.History); err != nil {
		return err
	}
	if err := insertEventTx(ctx, tx, t.Event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit block student: %w", err)
	}
	return nil
}

// MarkPDFGenerated records pass issuance. Approval is not re-checked
// here; callers invoke this only after final approval.
func (r *PermissionRepository) MarkPDFGenerated(ctx context.Context, permissionID, pdfURL, verifyToken string, event models.PermissionEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark pdf: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE permissions SET pdf_generated = TRUE, pdf_generated_at = $2, pdf_url = $3, verify_token = $4, updated_at = $2 WHERE id = $1`,
		permissionID, now, pdfURL, verifyToken); err != nil {
		return fmt.Errorf("mark pdf generated: %w", err)
	}

	event.PermissionID = permissionID
	if err := insertEventTx(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark pdf: %w", err)
	}
	return nil
}

// SetVerifyToken stores an issued verification token on the record.
func (r *PermissionRepository) SetVerifyToken(ctx context.Context, permissionID, token string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE permissions SET verify_token = $2, updated_at = $3 WHERE id = $1`,
		permissionID, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("set verify token: %w", err)
	}
	return nil
}

// ListHistory returns the embedded workflow history in append order.
func (r *PermissionRepository) ListHistory(ctx context.Context, permissionID string) ([]models.HistoryEntry, error) {
	const query = `SELECT id, permission_id, seq, step, actor, role, note, created_at FROM permission_history WHERE permission_id = $1 ORDER BY seq ASC`
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, permissionID); err != nil {
		return nil, fmt.Errorf("list permission history: %w", err)
	}
	return entries, nil
}

func appendHistoryTx(ctx context.Context, tx *sqlx.Tx, entry models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO permission_history (id, permission_id, seq, step, actor, role, note, created_at)
VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM permission_history WHERE permission_id = $2), $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query, entry.ID, entry.PermissionID, entry.Step, entry.Actor, entry.Role, entry.Note, entry.CreatedAt); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func insertEventTx(ctx context.Context, tx *sqlx.Tx, event models.PermissionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO permission_events (id, permission_id, type, actor_role, actor_id, actor_email, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query, event.ID, event.PermissionID, event.Type, event.ActorRole, event.ActorID, event.ActorEmail, event.CreatedAt); err != nil {
		return fmt.Errorf("insert permission event: %w", err)
	}
	return nil
}
