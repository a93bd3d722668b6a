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

func TestNotificationRepositoryListUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "recipient_id", "title", "message", "type", "link", "related_id", "read", "action_taken", "created_at"}).
		AddRow("n1", "f2", "Substitution request", "Ravi asked you to cover P3", "request", "/rearrangements", "r1", false, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE recipient_id = $1 AND read = FALSE ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("f2").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.NotificationFilter{RecipientID: "f2", UnreadOnly: true, Limit: 20})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.NotificationTypeRequest, items[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadForeignRecipient(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2")).
		WithArgs("n1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.MarkRead(context.Background(), "n1", "intruder"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCreateAndCloseRequest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET action_taken = TRUE")).
		WithArgs("f2", "r1", models.NotificationTypeRequest).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n := &models.Notification{RecipientID: "f2", Title: "Substitution request", Type: models.NotificationTypeRequest, RelatedID: "r1"}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID)
	require.NoError(t, repo.MarkActionTaken(context.Background(), "f2", "r1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
