package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harsha-e/unipass-api/internal/models"
)

const reportColumns = `id, student_id, reporter_id, reason, severity, status, action, created_at, updated_at`

// DisciplinaryRepository persists behavioral reports.
type DisciplinaryRepository struct {
	db *sqlx.DB
}

// NewDisciplinaryRepository constructs the repository.
func NewDisciplinaryRepository(db *sqlx.DB) *DisciplinaryRepository {
	return &DisciplinaryRepository{db: db}
}

// Create inserts a new report.
func (r *DisciplinaryRepository) Create(ctx context.Context, report *models.DisciplinaryReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	const query = `INSERT INTO disciplinary_reports (id, student_id, reporter_id, reason, severity, status, action, created_at, updated_at)
VALUES (:id, :student_id, :reporter_id, :reason, :severity, :status, :action, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create disciplinary report: %w", err)
	}
	return nil
}

// GetByID fetches a report by identifier.
func (r *DisciplinaryRepository) GetByID(ctx context.Context, id string) (*models.DisciplinaryReport, error) {
	query := `SELECT ` + reportColumns + ` FROM disciplinary_reports WHERE id = $1 LIMIT 1`
	var report models.DisciplinaryReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get disciplinary report: %w", err)
	}
	return &report, nil
}

// List returns reports per the provided filter.
func (r *DisciplinaryRepository) List(ctx context.Context, filter models.DisciplinaryFilter) ([]models.DisciplinaryReport, int, error) {
	base := `FROM disciplinary_reports`
	where := []string{"1=1"}
	var args []interface{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", reportColumns, base, whereClause, size, offset)
	var reports []models.DisciplinaryReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list disciplinary reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count disciplinary reports: %w", err)
	}
	return reports, total, nil
}

// MarkActionTaken finalizes an escalated report after a block executes.
func (r *DisciplinaryRepository) MarkActionTaken(ctx context.Context, id, action string, ts time.Time) error {
	const query = `UPDATE disciplinary_reports SET status = $2, action = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportActionTaken, action, ts); err != nil {
		return fmt.Errorf("mark disciplinary action: %w", err)
	}
	return nil
}
