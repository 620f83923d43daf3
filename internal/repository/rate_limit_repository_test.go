package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func rateLimitRows(count int, windowStart time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"key", "count", "window_start", "updated_at"}).
		AddRow("student-1_create_permission", count, windowStart, windowStart)
}

func TestRateLimitRepositoryFirstCallStartsWindow(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewRateLimitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, count, window_start")).
		WithArgs("student-1_create_permission").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rate_limits")).
		WithArgs("student-1_create_permission", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ok, err := repo.Take(context.Background(), "student-1", "create_permission", time.Minute, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitRepositoryIncrementsWithinWindow(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewRateLimitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, count, window_start")).
		WithArgs("student-1_create_permission").
		WillReturnRows(rateLimitRows(3, time.Now().UTC()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rate_limits SET count = count + 1")).
		WithArgs("student-1_create_permission", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Take(context.Background(), "student-1", "create_permission", time.Minute, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitRepositoryDeniesAtCeiling(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewRateLimitRepository(db)

	// At the ceiling the counter stays put: a denied call does not
	// consume capacity.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, count, window_start")).
		WithArgs("student-1_create_permission").
		WillReturnRows(rateLimitRows(10, time.Now().UTC()))

	ok, err := repo.Take(context.Background(), "student-1", "create_permission", time.Minute, 10)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitRepositoryExpiredWindowResets(t *testing.T) {
	db, mock, cleanup := newPermissionRepoMock(t)
	defer cleanup()
	repo := NewRateLimitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, count, window_start")).
		WithArgs("student-1_create_permission").
		WillReturnRows(rateLimitRows(10, time.Now().UTC().Add(-2*time.Minute)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rate_limits")).
		WithArgs("student-1_create_permission", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ok, err := repo.Take(context.Background(), "student-1", "create_permission", time.Minute, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
