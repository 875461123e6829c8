package notification

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-notifications/internal/models"
)

var columns = []string{
	"id", "title", "body", "type", "send_to_all", "selected_users", "source", "sent_at",
	"status", "error", "recipient_count", "success_count", "failure_count", "failed_tokens",
	"processed_at", "delivered_at",
}

const (
	idA = "0190a6d2-7c3e-7b1a-9f00-000000000001"
	idB = "0190a6d2-7c3e-7b1a-9f00-000000000002"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func pendingRow(rows *sqlmock.Rows, id string, sentAt time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "Exam", "Tomorrow at 9", "", true, nil, "dashboard", sentAt,
		"pending", nil, nil, nil, nil, nil, nil, nil)
}

func TestStore_Create(t *testing.T) {
	store, mock := newMockStore(t)
	sentAt := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(sqlmock.AnyArg(), "Exam", "Tomorrow at 9", models.TypeCourseAssignment, false,
			sqlmock.AnyArg(), models.SourceDashboard, sentAt, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Create(context.Background(), models.NotificationRequest{
		Title:           "Exam",
		Body:            "Tomorrow at 9",
		Type:            models.TypeCourseAssignment,
		SelectedUserIDs: []string{"u1", "u2"},
		Source:          models.SourceDashboard,
		SentAt:          sentAt,
	})
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_DatabaseError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO notifications").WillReturnError(errors.New("connection refused"))

	_, err := store.Create(context.Background(), models.NotificationRequest{Title: "t", Body: "b", SendToAll: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	sentAt := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	processedAt := sentAt.Add(3 * time.Second)

	rows := sqlmock.NewRows(columns).AddRow(
		idA, "Exam", "Tomorrow at 9", "course_assignment", false, "{u1,u2}", "dashboard", sentAt,
		"sent", nil, int64(2), int64(1), int64(1),
		[]byte(`[{"userId":"u2","token":"tok-2","errorReason":"token-unregistered"}]`),
		processedAt, processedAt,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE id = $1")).WithArgs(idA).WillReturnRows(rows)

	rec, err := store.Get(context.Background(), idA)
	require.NoError(t, err)

	assert.Equal(t, idA, rec.ID)
	assert.Equal(t, models.StatusSent, rec.Status)
	assert.Equal(t, []string{"u1", "u2"}, rec.SelectedUserIDs)
	assert.Equal(t, 2, rec.RecipientCount)
	assert.Equal(t, 1, rec.SuccessCount)
	assert.Equal(t, 1, rec.FailureCount)
	require.Len(t, rec.FailedTokens, 1)
	assert.Equal(t, "tok-2", rec.FailedTokens[0].Token)
	require.NotNil(t, rec.ProcessedAt)
	assert.True(t, processedAt.Equal(*rec.ProcessedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM notifications").WithArgs(idA).WillReturnRows(sqlmock.NewRows(columns))

	_, err := store.Get(context.Background(), idA)
	assert.True(t, errors.Is(err, models.ErrNotificationNotFound))

	_, err = store.Get(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, models.ErrNotificationNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_MergesOnlySetFields(t *testing.T) {
	store, mock := newMockStore(t)
	status := models.StatusSent
	success := 3

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE notifications SET status = $1, success_count = $2, failed_tokens = $3 WHERE id = $4")).
		WithArgs("sent", 3, sqlmock.AnyArg(), idA).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), idA, models.RecordPatch{
		Status:       &status,
		SuccessCount: &success,
		FailedTokens: []models.FailedToken{},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_EmptyPatchIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	require.NoError(t, store.Update(context.Background(), idA, models.RecordPatch{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_MissingRecord(t *testing.T) {
	store, mock := newMockStore(t)
	status := models.StatusFailed
	mock.ExpectExec("UPDATE notifications").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), idA, models.RecordPatch{Status: &status})
	assert.True(t, errors.Is(err, models.ErrNotificationNotFound))
}

func TestStore_QueryByTimeWindow(t *testing.T) {
	cutoff := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)

	t.Run("older than cutoff", func(t *testing.T) {
		store, mock := newMockStore(t)
		rows := pendingRow(sqlmock.NewRows(columns), idA, cutoff.Add(-48*time.Hour))
		rows = pendingRow(rows, idB, cutoff.Add(-time.Hour))
		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE sent_at IS NOT NULL AND sent_at < $1 ORDER BY sent_at ASC, id ASC")).
			WithArgs(cutoff).WillReturnRows(rows)

		recs, err := store.QueryByTimeWindow(context.Background(), models.FieldSentAt, Window{End: cutoff})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, idA, recs[0].ID)
		assert.Equal(t, idB, recs[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("newer than cutoff", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(
			"WHERE processed_at IS NOT NULL AND processed_at >= $1 ORDER BY processed_at ASC, id ASC")).
			WithArgs(cutoff).WillReturnRows(sqlmock.NewRows(columns))

		recs, err := store.QueryByTimeWindow(context.Background(), models.FieldProcessedAt, Window{Start: cutoff})
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown field", func(t *testing.T) {
		store, _ := newMockStore(t)
		_, err := store.QueryByTimeWindow(context.Background(), models.TimeField("createdAt"), Window{})
		assert.Error(t, err)
	})
}

func TestStore_ListStale(t *testing.T) {
	store, mock := newMockStore(t)
	olderThan := time.Date(2026, 5, 4, 9, 15, 0, 0, time.UTC)
	rows := pendingRow(sqlmock.NewRows(columns), idA, olderThan.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND sent_at < $2")).
		WithArgs("pending", olderThan).WillReturnRows(rows)

	recs, err := store.ListStale(context.Background(), olderThan)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusPending, recs[0].Status)
	assert.Nil(t, recs[0].ProcessedAt)
}

func TestStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE id = ANY($1::uuid[])")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.Delete(context.Background(), []string{idA, "bogus", idB})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Delete(context.Background(), []string{"bogus"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_QuotesChannel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("PERFORM pg_notify('notifications_created', NEW.id::text)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db, "notifications_created"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, EnsureSchema(context.Background(), db, "ch"), sql.ErrConnDone)
}
