package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/harsha-e/unipass-api/internal/models"
)

func newPermissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func teacherTransition(permissionID string) StageTransition {
	approved := models.StageApproved
	return StageTransition{
		PermissionID:  permissionID,
		TeacherStatus: &approved,
		FinalStatus:   models.StageApproved,
		Teacher: &ApprovalRecord{
			ActorID:    "teacher-1",
			ActorName:  "Ravi",
			ActorEmail: "teacher@mvgr.edu.in",
			Decision:   models.DecisionApproved,
			DecidedAt:  time.Now().UTC(),
		},
		History: models.HistoryEntry{Step: models.StepApproved, Actor: "Ravi", Role: "TEACHER", Note: "Request Approved (Standard)"},
		Event:   models.PermissionEvent{Type: models.EventTeacherApproved, ActorRole: "TEACHER"},
	}
}

func TestPermissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	perm := &models.PermissionRequest{
		StudentID:     "student-1",
		ReasonID:      "medical",
		ReasonLabel:   "Medical",
		ApprovalType:  models.ApprovalTeacherHOD,
		StartDate:     time.Now(),
		EndDate:       time.Now(),
		TeacherStatus: models.StagePending,
		HODStatus:     models.StagePending,
		FinalStatus:   models.StagePending,
	}
	history := models.HistoryEntry{Step: models.StepRequested, Actor: "Asha", Role: "STUDENT", Note: "Requested leave: Medical"}
	event := models.PermissionEvent{Type: models.EventRequested, ActorRole: "STUDENT"}

	require.NoError(t, repo.Create(context.Background(), perm, history, event))
	require.NotEmpty(t, perm.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryApplyTeacherDecision(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_history")).
		WithArgs(sqlmock.AnyArg(), "perm-1", models.StepApproved, "Ravi", "TEACHER", "Request Approved (Standard)", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyTeacherDecision(context.Background(), teacherTransition("perm-1")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryStaleTransitionWritesNothing(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	// Zero rows matched: the guard stage was no longer current. The
	// transaction rolls back before any history or event insert.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyTeacherDecision(context.Background(), teacherTransition("perm-1"))
	require.ErrorIs(t, err, ErrStaleTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryApplyHODDecision(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	approved := models.StageApproved
	transition := StageTransition{
		PermissionID: "perm-1",
		HODStatus:    &approved,
		FinalStatus:  models.StageApproved,
		HOD: &ApprovalRecord{
			ActorID:   "hod-1",
			ActorName: "Prasad",
			Decision:  models.DecisionApproved,
			DecidedAt: time.Now().UTC(),
		},
		History: models.HistoryEntry{Step: models.StepApproved, Actor: "Prasad", Role: "HOD", Note: "Final Approval Granted"},
		Event:   models.PermissionEvent{Type: models.EventHODApproved, ActorRole: "HOD"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("approval_type = 'TEACHER_HOD' AND teacher_status = 'approved' AND hod_status = 'pending'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyHODDecision(context.Background(), transition))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryBlockStudent(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	transition := StageTransition{
		PermissionID: "perm-1",
		History:      models.HistoryEntry{Step: models.StepBlocked, Actor: "Ravi", Role: "TEACHER", Note: "USER BLOCKED: fake request"},
		Event:        models.PermissionEvent{Type: models.EventBlocked, ActorRole: "TEACHER"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permissions SET final_status = 'rejected'")).
		WithArgs("perm-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET blocked = TRUE")).
		WithArgs("student-1", sqlmock.AnyArg(), "teacher-1", "fake request", models.DisciplinaryBlocked).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.BlockStudent(context.Background(), transition, "student-1", "teacher-1", "fake request"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryBlockStudentResolvedRollsBack(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permissions SET final_status = 'rejected'")).
		WithArgs("perm-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.BlockStudent(context.Background(), StageTransition{PermissionID: "perm-1"}, "student-1", "teacher-1", "fake request")
	require.ErrorIs(t, err, ErrStaleTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryMarkPDFGenerated(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permissions SET pdf_generated = TRUE")).
		WithArgs("perm-1", sqlmock.AnyArg(), "2026/03/perm-1.pdf", "token-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permission_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event := models.PermissionEvent{Type: models.EventPDFGenerated, ActorRole: "SYSTEM"}
	require.NoError(t, repo.MarkPDFGenerated(context.Background(), "perm-1", "2026/03/perm-1.pdf", "token-1", event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryListHistory(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "permission_id", "seq", "step", "actor", "role", "note", "created_at"}).
		AddRow("h-1", "perm-1", 1, models.StepRequested, "Asha", "STUDENT", "Requested leave: Medical", time.Now()).
		AddRow("h-2", "perm-1", 2, models.StepEscalated, "Ravi", "TEACHER", "Escalated: Sensitive Category (Medical)", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, permission_id, seq, step")).
		WithArgs("perm-1").
		WillReturnRows(rows)

	entries, err := repo.ListHistory(context.Background(), "perm-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 1, entries[0].Seq)
	require.Equal(t, models.StepEscalated, entries[1].Step)
	require.NoError(t, mock.ExpectationsWereMet())
}
