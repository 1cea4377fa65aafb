package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func expectBalanceLock(mock sqlmock.Sqlmock, studentID string, current int) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_balances")).
		WithArgs(studentID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT lessons_available FROM lesson_balances WHERE student_id = $1 FOR UPDATE")).
		WithArgs(studentID).
		WillReturnRows(sqlmock.NewRows([]string{"lessons_available"}).AddRow(current))
}

func TestBalanceRepositoryAdjustDeltaClampsToZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectBegin()
	expectBalanceLock(mock, "student-1", 2)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(0, sqlmock.AnyArg(), "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, err := repo.Adjust(context.Background(), BalanceAdjustment{StudentID: "student-1", Delta: -5})
	require.NoError(t, err)
	assert.Equal(t, 0, balance.LessonsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryAdjustAbsoluteSet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectBegin()
	expectBalanceLock(mock, "student-1", 0)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(7, sqlmock.AnyArg(), "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $1")).
		WithArgs(models.RoleStudent, "student-1", models.RoleApplicant).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	target := 7
	balance, err := repo.Adjust(context.Background(), BalanceAdjustment{StudentID: "student-1", Absolute: &target})
	require.NoError(t, err)
	assert.Equal(t, 7, balance.LessonsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryAdjustZeroSkipsPromotion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectBegin()
	expectBalanceLock(mock, "student-1", 3)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(0, sqlmock.AnyArg(), "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	target := 0
	balance, err := repo.Adjust(context.Background(), BalanceAdjustment{StudentID: "student-1", Absolute: &target})
	require.NoError(t, err)
	assert.Equal(t, 0, balance.LessonsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryGetOrCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_balances")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, lessons_available, updated_at FROM lesson_balances")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "lessons_available", "updated_at"}).
			AddRow("student-1", 0, time.Now().UTC()))

	balance, err := repo.GetOrCreate(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.LessonsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
