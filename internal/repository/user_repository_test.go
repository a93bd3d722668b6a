package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "full_name", "role", "department_id", "active"})
}

func TestUserRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 AND active = TRUE AND department_id = $2")).
		WithArgs(models.RoleHOD, "cse").
		WillReturnRows(userRows().AddRow("hod-1", "hod@example.edu", "Head CSE", "HOD", "cse", true))

	users, err := repo.ListByRole(context.Background(), models.RoleHOD, "cse")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "hod-1", users[0].ID)
	assert.Equal(t, models.RoleHOD, users[0].Role)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 AND active = TRUE ORDER BY full_name ASC")).
		WithArgs(models.RoleAdmin).
		WillReturnRows(userRows().AddRow("admin-1", "admin@example.edu", "Admin", "ADMIN", "", true))

	admins, err := repo.ListByRole(context.Background(), models.RoleAdmin, "")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
