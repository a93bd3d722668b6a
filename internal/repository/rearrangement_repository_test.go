package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestRearrangementRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRearrangementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rearrangements")).WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.RearrangementRequest{Date: "2026-10-14", SlotID: "P3", RequesterFacultyID: "f1", SubstituteFacultyID: "f2"}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.RearrangementStatusPending, req.Status)
	assert.False(t, req.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRearrangementRepositoryListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRearrangementRepository(db)

	rows := sqlmock.NewRows([]string{"id", "date", "day_of_week", "slot_id", "department_id", "requester_faculty_id", "requester_faculty_name",
		"substitute_faculty_id", "substitute_faculty_name", "subject_name", "class_label", "source_timetable_id", "status", "created_at", "responded_at"}).
		AddRow("r1", "2026-10-14", "Wednesday", "P3", "cse", "f1", "Ravi", "f2", "Sunita", "Networks", "2 Year cse - Section A", nil, "pending", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM rearrangements WHERE status IN ($1) AND department_id = $2 AND substitute_faculty_id = $3 ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs(models.RearrangementStatusPending, "cse", "f2").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.RearrangementFilter{
		DepartmentID: "cse",
		SubstituteID: "f2",
		Status:       []models.RearrangementStatus{models.RearrangementStatusPending},
		Limit:        500,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Networks", items[0].SubjectName)
	assert.Nil(t, items[0].RespondedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRearrangementRepositoryListAcceptedSubstitutes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRearrangementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT substitute_faculty_id FROM rearrangements WHERE date = $1 AND slot_id = $2 AND status = $3")).
		WithArgs("2026-10-14", "P3", models.RearrangementStatusAccepted).
		WillReturnRows(sqlmock.NewRows([]string{"substitute_faculty_id"}).AddRow("f4"))

	ids, err := repo.ListAcceptedSubstitutes(context.Background(), "2026-10-14", "P3")
	require.NoError(t, err)
	assert.Equal(t, []string{"f4"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRearrangementRepositoryUpdateStatusAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRearrangementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rearrangements SET status = $1, responded_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs(models.RearrangementStatusAccepted, sqlmock.AnyArg(), "r1", models.RearrangementStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "r1", models.RearrangementStatusAccepted, time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
