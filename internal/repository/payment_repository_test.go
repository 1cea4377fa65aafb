package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
)

// metaContains matches a JSON audit meta argument containing every substring.
type metaContains []string

func (m metaContains) Match(v driver.Value) bool {
	var data string
	switch t := v.(type) {
	case []byte:
		data = string(t)
	case string:
		data = t
	default:
		return false
	}
	for _, s := range m {
		if !strings.Contains(data, s) {
			return false
		}
	}
	return true
}

func TestPaymentRepositoryConfirmCreditsAndPromotes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paidAt := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, amount, package_name, confirmed, paid_at FROM payments WHERE id = $1 FOR UPDATE")).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "amount", "package_name", "confirmed", "paid_at"}).
			AddRow("pay-1", "student-1", "20000.00", "Starter 4", false, paidAt))
	expectBalanceLock(mock, "student-1", 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users WHERE id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(string(models.RoleApplicant)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(4, "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $1")).
		WithArgs(models.RoleStudent, "student-1", models.RoleApplicant).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET confirmed = TRUE WHERE id = $1")).
		WithArgs("pay-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), nil, models.AuditActionConfirmPayment,
			metaContains{`"old_role":"APPLICANT"`, `"new_role":"STUDENT"`, `"lessons_added":4`},
			"10.0.0.1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Confirm(context.Background(), "pay-1", 4, AuditActor{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.NewBalance)
	assert.Equal(t, models.RoleApplicant, result.OldRole)
	assert.Equal(t, models.RoleStudent, result.NewRole)
	assert.True(t, result.RoleChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryConfirmTwiceFails(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "amount", "package_name", "confirmed", "paid_at"}).
			AddRow("pay-1", "student-1", "20000.00", "Starter 4", true, time.Now().UTC()))
	mock.ExpectRollback()

	_, err := repo.Confirm(context.Background(), "pay-1", 4, AuditActor{})
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryConfirmKeepsStudentRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("pay-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "amount", "package_name", "confirmed", "paid_at"}).
			AddRow("pay-2", "student-2", "40000.00", "Standard 8", false, time.Now().UTC()))
	expectBalanceLock(mock, "student-2", 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users WHERE id = $1")).
		WithArgs("student-2").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(string(models.RoleStudent)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_balances SET lessons_available = $1")).
		WithArgs(11, "student-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET confirmed = TRUE WHERE id = $1")).
		WithArgs("pay-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Confirm(context.Background(), "pay-2", 8, AuditActor{})
	require.NoError(t, err)
	assert.Equal(t, 11, result.NewBalance)
	assert.False(t, result.RoleChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateDefaultsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{StudentID: "student-1", Amount: "20000.00", PackageName: "Starter 4"}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.NotEmpty(t, payment.ID)
	assert.False(t, payment.PaidAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
