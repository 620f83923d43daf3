package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

const defaultImportAttendance = 75

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Upsert(ctx context.Context, user *models.User) error
	Approve(ctx context.Context, id string, role models.UserRole, ts time.Time) error
	SetBlocked(ctx context.Context, id string, blocked bool, blockedBy, reason *string, ts time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService manages campus accounts: activation of pending profiles
// per the role hierarchy, manual blocks and the CSV roster import.
type UserService struct {
	repo      userStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userStore, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns a single account.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns accounts per the provided filter.
func (s *UserService) List(ctx context.Context, actor *models.Actor, filter models.UserFilter) ([]models.User, int, error) {
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RoleAdmin:
	default:
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "insufficient privileges to list users")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Approve activates a pending account with the requested role. The
// hierarchy is strict: admins may grant any role, HODs grant teacher
// and student, teachers grant student only.
func (s *UserService) Approve(ctx context.Context, actor *models.Actor, targetID string, req dto.ApproveUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	role := models.UserRole(req.Role)
	if !models.CanApprove(actor.Role, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s cannot grant the %s role", actor.Role, role))
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if target.Approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account is already active")
	}

	now := time.Now().UTC()
	if err := s.repo.Approve(ctx, targetID, role, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve user")
	}

	s.audit(ctx, actor, models.AuditActionUserApprove, targetID, fmt.Sprintf(`{"role":%q}`, role))
	return s.repo.FindByID(ctx, targetID)
}

// Block disables an account and revokes its sessions.
func (s *UserService) Block(ctx context.Context, actor *models.Actor, targetID string, req dto.BlockUserRequest) error {
	if actor.Role != models.RoleHOD && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient privileges to block users")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	if targetID == actor.UID {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot block your own account")
	}

	now := time.Now().UTC()
	blockedBy := actor.UID
	if err := s.repo.SetBlocked(ctx, targetID, true, &blockedBy, &req.Reason, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block user")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, targetID); err != nil {
		s.logger.Warn("failed to revoke sessions of blocked user", zap.String("user_id", targetID), zap.Error(err))
	}

	s.audit(ctx, actor, models.AuditActionUserBlock, targetID, fmt.Sprintf(`{"reason":%q}`, req.Reason))
	return nil
}

// Unblock re-enables a blocked account.
func (s *UserService) Unblock(ctx context.Context, actor *models.Actor, targetID string) error {
	if actor.Role != models.RoleHOD && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient privileges to unblock users")
	}

	now := time.Now().UTC()
	if err := s.repo.SetBlocked(ctx, targetID, false, nil, nil, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unblock user")
	}

	s.audit(ctx, actor, models.AuditActionUserUnblock, targetID, `{"status":"unblocked"}`)
	return nil
}

// BulkImport loads a roster CSV with the columns Name, Email, ID/RollNo,
// Department, Role. Students are keyed by roll number, staff by email,
// so re-imports refresh existing profiles instead of duplicating them.
// Imported accounts are pre-approved.
func (s *UserService) BulkImport(ctx context.Context, actor *models.Actor, r io.Reader) (*dto.BulkImportSummary, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can import rosters")
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster file is empty or unreadable")
	}
	cols, err := mapRosterColumns(header)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	summary := &dto.BulkImportSummary{}
	now := time.Now().UTC()
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			summary.Skipped++
			summary.Failures = append(summary.Failures, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		user, err := rosterRowToUser(record, cols, now)
		if err != nil {
			summary.Skipped++
			summary.Failures = append(summary.Failures, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if err := s.repo.Upsert(ctx, user); err != nil {
			summary.Skipped++
			summary.Failures = append(summary.Failures, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		summary.Imported++
	}

	s.audit(ctx, actor, models.AuditActionBulkImport, "", fmt.Sprintf(`{"imported":%d,"skipped":%d}`, summary.Imported, summary.Skipped))
	s.logger.Info("roster import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

type rosterColumns struct {
	name       int
	email      int
	identifier int
	department int
	role       int
}

func mapRosterColumns(header []string) (rosterColumns, error) {
	cols := rosterColumns{name: -1, email: -1, identifier: -1, department: -1, role: -1}
	for i, raw := range header {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "name":
			cols.name = i
		case "email":
			cols.email = i
		case "id", "rollno", "roll_no", "roll number":
			cols.identifier = i
		case "department":
			cols.department = i
		case "role":
			cols.role = i
		}
	}
	if cols.name < 0 || cols.email < 0 || cols.identifier < 0 || cols.role < 0 {
		return cols, errors.New("roster must have Name, Email, ID/RollNo and Role columns")
	}
	return cols, nil
}

func rosterRowToUser(record []string, cols rosterColumns, now time.Time) (*models.User, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := field(cols.name)
	email := strings.ToLower(field(cols.email))
	identifier := field(cols.identifier)
	roleRaw := strings.ToUpper(field(cols.role))

	if name == "" || email == "" || identifier == "" {
		return nil, errors.New("missing name, email or id")
	}

	role := models.UserRole(roleRaw)
	switch role {
	case models.RoleStudent, models.RoleTeacher, models.RoleHOD, models.RoleLabAssistant, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", roleRaw)
	}

	approvedAt := now
	user := &models.User{
		Email:              email,
		DisplayName:        name,
		Role:               role,
		Department:         field(cols.department),
		Approved:           true,
		ApprovedAt:         &approvedAt,
		DisciplinaryStatus: models.DisciplinaryNone,
	}
	if role == models.RoleStudent {
		user.ID = identifier
		user.RollNumber = identifier
		user.Attendance = defaultImportAttendance
	} else {
		user.ID = email
	}
	return user, nil
}

func (s *UserService) audit(ctx context.Context, actor *models.Actor, action, resourceID, newValues string) {
	entry := &models.AuditLog{
		UserID:    &actor.UID,
		Action:    action,
		Resource:  "users",
		NewValues: []byte(newValues),
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
