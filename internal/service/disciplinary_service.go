package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type disciplinaryStore interface {
	Create(ctx context.Context, report *models.DisciplinaryReport) error
	GetByID(ctx context.Context, id string) (*models.DisciplinaryReport, error)
	List(ctx context.Context, filter models.DisciplinaryFilter) ([]models.DisciplinaryReport, int, error)
	MarkActionTaken(ctx context.Context, id, action string, ts time.Time) error
}

type disciplinaryUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetBlocked(ctx context.Context, id string, blocked bool, blockedBy, reason *string, ts time.Time) error
	SetDisciplinaryStatus(ctx context.Context, id string, status models.DisciplinaryStatus, lastWarning *string, ts time.Time) error
}

// DisciplinaryService runs the two-tier behavioral workflow: WARNING
// reports flag the profile immediately, SEVERE reports queue an
// advisory for the HOD and change nothing until a block is executed.
type DisciplinaryService struct {
	reports   disciplinaryStore
	users     disciplinaryUserStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDisciplinaryService constructs the service.
func NewDisciplinaryService(reports disciplinaryStore, users disciplinaryUserStore, validate *validator.Validate, logger *zap.Logger) *DisciplinaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisciplinaryService{reports: reports, users: users, validator: validate, logger: logger}
}

// Report files a disciplinary report against a student.
func (s *DisciplinaryService) Report(ctx context.Context, actor *models.Actor, req dto.ReportStudentRequest) (*models.DisciplinaryReport, error) {
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient privileges to file reports")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reports can only target student accounts")
	}

	severity := models.ReportSeverity(req.Severity)
	report := &models.DisciplinaryReport{
		StudentID:  req.StudentID,
		ReporterID: actor.UID,
		Reason:     req.Reason,
		Severity:   severity,
	}

	now := time.Now().UTC()
	switch severity {
	case models.SeverityWarning:
		report.Status = models.ReportWarningIssued
		if err := s.users.SetDisciplinaryStatus(ctx, req.StudentID, models.DisciplinaryWarning, &req.Reason, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag student profile")
		}
	case models.SeveritySevere:
		report.Status = models.ReportPendingHOD
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "severity must be WARNING or SEVERE")
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file report")
	}
	s.logger.Info("disciplinary report filed",
		zap.String("report_id", report.ID),
		zap.String("student_id", req.StudentID),
		zap.String("severity", string(severity)))
	return report, nil
}

// ExecuteBlock acts on an escalated report: blocks the student account
// and finalizes the report. The block covers the account only; any
// in-flight gate passes the student holds are left untouched.
func (s *DisciplinaryService) ExecuteBlock(ctx context.Context, actor *models.Actor, req dto.ExecuteBlockRequest) (*models.DisciplinaryReport, error) {
	if actor.Role != models.RoleHOD && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the HOD or an admin can execute a block")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}

	report, err := s.reports.GetByID(ctx, req.ReportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if report.StudentID != req.StudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report does not belong to this student")
	}
	if report.Status != models.ReportPendingHOD {
		return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, "report is not awaiting action")
	}

	now := time.Now().UTC()
	blockedBy := actor.UID
	reason := report.Reason
	if err := s.users.SetBlocked(ctx, req.StudentID, true, &blockedBy, &reason, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block student")
	}
	if err := s.users.SetDisciplinaryStatus(ctx, req.StudentID, models.DisciplinaryBlocked, nil, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile standing")
	}
	if err := s.reports.MarkActionTaken(ctx, report.ID, "BLOCKED", now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize report")
	}

	s.logger.Info("disciplinary block executed",
		zap.String("report_id", report.ID),
		zap.String("student_id", req.StudentID),
		zap.String("actor", actor.UID))

	return s.reports.GetByID(ctx, report.ID)
}

// List returns reports per the provided filter.
func (s *DisciplinaryService) List(ctx context.Context, actor *models.Actor, filter models.DisciplinaryFilter) ([]models.DisciplinaryReport, int, error) {
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RoleAdmin:
	default:
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "insufficient privileges to view reports")
	}
	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, total, nil
}
