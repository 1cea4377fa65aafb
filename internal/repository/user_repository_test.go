package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhub/backoffice-api/internal/models"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "superuser", "phone", "student_full_name", "parent_full_name", "parent_password_hash", "active", "last_login", "created_at", "updated_at"}).
		AddRow("user-1", "student@tutorhub.io", "hash", string(models.RoleStudent), false, "", "Anna Petrova", "Elena Petrova", "", true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Student@TutorHub.io").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Student@TutorHub.io")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "Anna Petrova", user.StudentFullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListByRoles(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "superuser", "phone", "student_full_name", "parent_full_name", "parent_password_hash", "active", "last_login", "created_at", "updated_at"}).
		AddRow("student-1", "student@tutorhub.io", "hash", string(models.RoleStudent), false, "", "Anna Petrova", "", "", true, nil, now, now).
		AddRow("applicant-1", "applicant@tutorhub.io", "hash", string(models.RoleApplicant), false, "", "Oleg Ivanov", "", "", true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND role IN ($1, $2)")).
		WithArgs(models.RoleStudent, models.RoleApplicant).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role IN ($1, $2)")).
		WithArgs(models.RoleStudent, models.RoleApplicant).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Roles: []models.UserRole{models.RoleStudent, models.RoleApplicant},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 2)
	assert.Equal(t, models.RoleApplicant, users[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCountSuperusersEmptyWhitelist(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	count, err := repo.CountSuperusers(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUserRepositoryCountSuperusers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE superuser = TRUE")).
		WithArgs("a@tutorhub.io", "b@tutorhub.io").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountSuperusers(context.Background(), []string{"a@tutorhub.io", "b@tutorhub.io"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryPromote(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $2, superuser = TRUE")).
		WithArgs("user-1", models.RoleAdmin, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Promote(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetOrCreateProfile(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_profiles")).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, level, xp, season_currency FROM student_profiles")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "level", "xp", "season_currency"}).
			AddRow("user-1", 1, 0, 0))

	profile, err := repo.GetOrCreateProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}
