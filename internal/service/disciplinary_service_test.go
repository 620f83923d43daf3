package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harsha-e/unipass-api/internal/dto"
	"github.com/harsha-e/unipass-api/internal/models"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
)

type reportStoreStub struct {
	reports map[string]*models.DisciplinaryReport
}

func (s *reportStoreStub) Create(_ context.Context, report *models.DisciplinaryReport) error {
	if report.ID == "" {
		report.ID = "report-" + report.StudentID
	}
	s.reports[report.ID] = report
	return nil
}

func (s *reportStoreStub) GetByID(_ context.Context, id string) (*models.DisciplinaryReport, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *report
	return &clone, nil
}

func (s *reportStoreStub) List(_ context.Context, filter models.DisciplinaryFilter) ([]models.DisciplinaryReport, int, error) {
	var out []models.DisciplinaryReport
	for _, report := range s.reports {
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		out = append(out, *report)
	}
	return out, len(out), nil
}

func (s *reportStoreStub) MarkActionTaken(_ context.Context, id, action string, _ time.Time) error {
	report := s.reports[id]
	report.Status = models.ReportActionTaken
	report.Action = &action
	return nil
}

type disciplinaryUserStub struct {
	users map[string]*models.User
}

func (s *disciplinaryUserStub) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *disciplinaryUserStub) SetBlocked(_ context.Context, id string, blocked bool, blockedBy, reason *string, ts time.Time) error {
	user := s.users[id]
	user.Blocked = blocked
	user.BlockedBy = blockedBy
	user.BlockReason = reason
	user.BlockedAt = &ts
	return nil
}

func (s *disciplinaryUserStub) SetDisciplinaryStatus(_ context.Context, id string, status models.DisciplinaryStatus, lastWarning *string, _ time.Time) error {
	user := s.users[id]
	user.DisciplinaryStatus = status
	user.LastWarning = lastWarning
	return nil
}

func newDisciplinaryFixture() (*DisciplinaryService, *reportStoreStub, *disciplinaryUserStub) {
	reports := &reportStoreStub{reports: map[string]*models.DisciplinaryReport{}}
	users := &disciplinaryUserStub{users: map[string]*models.User{
		"student-1": {ID: "student-1", Role: models.RoleStudent, DisciplinaryStatus: models.DisciplinaryNone},
		"teacher-2": {ID: "teacher-2", Role: models.RoleTeacher},
	}}
	return NewDisciplinaryService(reports, users, nil, nil), reports, users
}

func TestDisciplinaryServiceWarningFlagsProfile(t *testing.T) {
	svc, _, users := newDisciplinaryFixture()

	report, err := svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "student-1",
		Reason:    "late to lab",
		Severity:  "WARNING",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportWarningIssued, report.Status)

	student := users.users["student-1"]
	require.Equal(t, models.DisciplinaryWarning, student.DisciplinaryStatus)
	require.NotNil(t, student.LastWarning)
	require.Equal(t, "late to lab", *student.LastWarning)
	require.False(t, student.Blocked)
}

func TestDisciplinaryServiceSevereQueuesForHOD(t *testing.T) {
	svc, _, users := newDisciplinaryFixture()

	report, err := svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "student-1",
		Reason:    "forged signature",
		Severity:  "SEVERE",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportPendingHOD, report.Status)

	// Nothing changes on the profile until the HOD acts.
	student := users.users["student-1"]
	require.Equal(t, models.DisciplinaryNone, student.DisciplinaryStatus)
	require.False(t, student.Blocked)
}

func TestDisciplinaryServiceReportGuards(t *testing.T) {
	svc, _, _ := newDisciplinaryFixture()

	_, err := svc.Report(context.Background(), studentActor(), dto.ReportStudentRequest{
		StudentID: "student-1", Reason: "x", Severity: "WARNING",
	})
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "missing", Reason: "x", Severity: "WARNING",
	})
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "teacher-2", Reason: "x", Severity: "WARNING",
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDisciplinaryServiceExecuteBlock(t *testing.T) {
	svc, _, users := newDisciplinaryFixture()

	report, err := svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "student-1",
		Reason:    "forged signature",
		Severity:  "SEVERE",
	})
	require.NoError(t, err)

	final, err := svc.ExecuteBlock(context.Background(), hodActor(), dto.ExecuteBlockRequest{
		StudentID: "student-1",
		ReportID:  report.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportActionTaken, final.Status)
	require.NotNil(t, final.Action)
	require.Equal(t, "BLOCKED", *final.Action)

	student := users.users["student-1"]
	require.True(t, student.Blocked)
	require.Equal(t, models.DisciplinaryBlocked, student.DisciplinaryStatus)
	require.Equal(t, "hod-1", *student.BlockedBy)
	require.Equal(t, "forged signature", *student.BlockReason)
}

func TestDisciplinaryServiceExecuteBlockGuards(t *testing.T) {
	svc, _, _ := newDisciplinaryFixture()

	report, err := svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "student-1",
		Reason:    "forged signature",
		Severity:  "SEVERE",
	})
	require.NoError(t, err)

	_, err = svc.ExecuteBlock(context.Background(), teacherActor(), dto.ExecuteBlockRequest{
		StudentID: "student-1", ReportID: report.ID,
	})
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ExecuteBlock(context.Background(), hodActor(), dto.ExecuteBlockRequest{
		StudentID: "someone-else", ReportID: report.ID,
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ExecuteBlock(context.Background(), hodActor(), dto.ExecuteBlockRequest{
		StudentID: "student-1", ReportID: report.ID,
	})
	require.NoError(t, err)

	// A second execution finds the report already finalized.
	_, err = svc.ExecuteBlock(context.Background(), hodActor(), dto.ExecuteBlockRequest{
		StudentID: "student-1", ReportID: report.ID,
	})
	require.Equal(t, appErrors.ErrAlreadyResolved.Code, appErrors.FromError(err).Code)
}

func TestDisciplinaryServiceListFilters(t *testing.T) {
	svc, _, _ := newDisciplinaryFixture()

	_, err := svc.Report(context.Background(), teacherActor(), dto.ReportStudentRequest{
		StudentID: "student-1", Reason: "late", Severity: "WARNING",
	})
	require.NoError(t, err)

	reports, total, err := svc.List(context.Background(), hodActor(), models.DisciplinaryFilter{Status: models.ReportWarningIssued})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, reports, 1)

	_, _, err = svc.List(context.Background(), studentActor(), models.DisciplinaryFilter{})
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
