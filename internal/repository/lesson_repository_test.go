package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
)

var lessonRowColumns = []string{
	"id", "student_id", "parent_full_name", "teacher_id", "course_id", "link", "scheduled_at",
	"status", "comment", "cancellation_reason", "feedback", "debited_from_balance", "is_trial", "created_at",
}

func lessonRow(id string, status models.LessonStatus, debited, trial bool) *sqlmock.Rows {
	return sqlmock.NewRows(lessonRowColumns).AddRow(
		id, "student-1", "Anna Petrova", "teacher-1", nil, "https://meet.example/abc",
		time.Now().UTC(), string(status), "", "", "", debited, trial, time.Now().UTC(),
	)
}

func expectLessonLock(mock sqlmock.Sqlmock, id string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM lessons WHERE id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(rows)
}

func TestLessonRepositoryApplyUpdateDoneDebitsBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, false))
	expectBalanceLock(mock, "student-1", 3)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(2, "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lessons SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	done := models.LessonDone
	feedback := "Covered unit 3, homework assigned"
	lesson, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &done, Feedback: &feedback})
	require.NoError(t, err)
	assert.Equal(t, models.LessonDone, lesson.Status)
	assert.True(t, lesson.DebitedFromBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdateDoneRequiresFeedback(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, false))
	mock.ExpectRollback()

	done := models.LessonDone
	_, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &done})
	assert.ErrorIs(t, err, ErrFeedbackRequired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdateDoneInsufficientBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, false))
	expectBalanceLock(mock, "student-1", 0)
	mock.ExpectRollback()

	done := models.LessonDone
	feedback := "Great progress"
	_, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &done, Feedback: &feedback})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdateTrialDoneSkipsDebit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lessons SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	done := models.LessonDone
	feedback := "Trial went well"
	lesson, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &done, Feedback: &feedback})
	require.NoError(t, err)
	assert.False(t, lesson.DebitedFromBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdateCancelRefundsDebit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonDone, true, false))
	expectBalanceLock(mock, "student-1", 1)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(2, "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lessons SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cancelled := models.LessonCancelled
	reason := "Student is sick"
	lesson, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &cancelled, CancellationReason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.LessonCancelled, lesson.Status)
	assert.False(t, lesson.DebitedFromBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdateCancelledIsTerminal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonCancelled, false, false))
	mock.ExpectRollback()

	planned := models.LessonPlanned
	_, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &planned})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdateRejectsDoubleCancel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonCancelled, false, false))
	mock.ExpectRollback()

	cancelled := models.LessonCancelled
	reason := "cancel again"
	_, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Status: &cancelled, CancellationReason: &reason})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryApplyUpdatePropagatesComment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, false))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lessons SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lessons SET comment = $1 WHERE student_id = $2 AND id <> $3")).
		WithArgs("Needs more grammar drills", "student-1", "lesson-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	comment := "Needs more grammar drills"
	lesson, err := repo.ApplyUpdate(context.Background(), "lesson-1", LessonPatch{Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, comment, lesson.Comment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDebitRejectsTrial(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, true))
	mock.ExpectRollback()

	_, err := repo.Debit(context.Background(), "lesson-1", false, AuditActor{})
	assert.ErrorIs(t, err, ErrTrialLesson)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDebitRejectsSecondDebit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonDone, true, false))
	mock.ExpectRollback()

	_, err := repo.Debit(context.Background(), "lesson-1", true, AuditActor{})
	assert.ErrorIs(t, err, ErrAlreadyDebited)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDebitMarksDone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	expectLessonLock(mock, "lesson-1", lessonRow("lesson-1", models.LessonPlanned, false, false))
	expectBalanceLock(mock, "student-1", 5)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(4, "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lessons SET status = $1, debited_from_balance = TRUE WHERE id = $2")).
		WithArgs(models.LessonDone, "lesson-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	lesson, err := repo.Debit(context.Background(), "lesson-1", true, AuditActor{})
	require.NoError(t, err)
	assert.Equal(t, models.LessonDone, lesson.Status)
	assert.True(t, lesson.DebitedFromBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}
