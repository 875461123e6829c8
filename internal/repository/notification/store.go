package notification

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"academy-notifications/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const recordColumns = `id, title, body, type, send_to_all, selected_users, source, sent_at,
		status, error, recipient_count, success_count, failure_count, failed_tokens,
		processed_at, delivered_at`

var fieldColumns = map[models.TimeField]string{
	models.FieldSentAt:      "sent_at",
	models.FieldProcessedAt: "processed_at",
}

// Window bounds a time query. Start is inclusive, End exclusive; a zero
// bound is open.
type Window struct {
	Start time.Time
	End   time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables and the insert trigger that announces new
// records on channel.
func EnsureSchema(ctx context.Context, db *sql.DB, channel string) error {
	stmt := strings.ReplaceAll(schemaSQL, "{{channel}}", pq.QuoteLiteral(channel))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Create persists a pending record and returns its id. Ids are UUIDv7 so
// they sort in creation order.
func (s *Store) Create(ctx context.Context, req models.NotificationRequest) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	sentAt := req.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, title, body, type, send_to_all, selected_users, source, sent_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id.String(), req.Title, req.Body, req.Type, req.SendToAll,
		pq.Array(req.SelectedUserIDs), req.Source, sentAt, string(models.StatusPending),
	)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return id.String(), nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrNotificationNotFound, id)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM notifications WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return rec, nil
}

// Update merges the non-nil patch fields into the record.
func (s *Store) Update(ctx context.Context, id string, patch models.RecordPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", models.ErrNotificationNotFound, id)
	}

	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.Error != nil {
		set("error", *patch.Error)
	}
	if patch.RecipientCount != nil {
		set("recipient_count", *patch.RecipientCount)
	}
	if patch.SuccessCount != nil {
		set("success_count", *patch.SuccessCount)
	}
	if patch.FailureCount != nil {
		set("failure_count", *patch.FailureCount)
	}
	if patch.FailedTokens != nil {
		raw, err := json.Marshal(patch.FailedTokens)
		if err != nil {
			return fmt.Errorf("encode failed tokens: %w", err)
		}
		set("failed_tokens", raw)
	}
	if patch.ProcessedAt != nil {
		set("processed_at", *patch.ProcessedAt)
	}
	if patch.DeliveredAt != nil {
		set("delivered_at", *patch.DeliveredAt)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE notifications SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrNotificationNotFound, id)
	}
	return nil
}

// QueryByTimeWindow returns records whose field lies in w, ordered by that
// field ascending with id as tie-breaker. Records where field is unset never
// match.
func (s *Store) QueryByTimeWindow(ctx context.Context, field models.TimeField, w Window) ([]models.NotificationRecord, error) {
	column, ok := fieldColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown time field %q", field)
	}

	where := []string{column + " IS NOT NULL"}
	var args []interface{}
	if !w.Start.IsZero() {
		args = append(args, w.Start)
		where = append(where, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if !w.End.IsZero() {
		args = append(args, w.End)
		where = append(where, fmt.Sprintf("%s < $%d", column, len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY %s ASC, id ASC`,
		recordColumns, strings.Join(where, " AND "), column)
	return s.list(ctx, query, args...)
}

// ListStale returns records still pending whose sentAt is before olderThan.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time) ([]models.NotificationRecord, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM notifications
		WHERE status = $1 AND sent_at < $2
		ORDER BY sent_at ASC, id ASC`, string(models.StatusPending), olderThan)
}

// Delete removes the given records and reports how many existed. Ids that
// are not valid UUIDs cannot exist and are skipped.
func (s *Store) Delete(ctx context.Context, ids []string) (int64, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.NotificationRecord, error) {
	var (
		rec          models.NotificationRecord
		status       string
		errText      sql.NullString
		recipients   sql.NullInt64
		successes    sql.NullInt64
		failures     sql.NullInt64
		failedTokens []byte
		processedAt  sql.NullTime
		deliveredAt  sql.NullTime
	)

	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Body, &rec.Type, &rec.SendToAll,
		pq.Array(&rec.SelectedUserIDs), &rec.Source, &rec.SentAt,
		&status, &errText, &recipients, &successes, &failures, &failedTokens,
		&processedAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.Status(status)
	rec.Error = errText.String
	rec.RecipientCount = int(recipients.Int64)
	rec.SuccessCount = int(successes.Int64)
	rec.FailureCount = int(failures.Int64)
	if len(failedTokens) > 0 {
		if err := json.Unmarshal(failedTokens, &rec.FailedTokens); err != nil {
			return nil, fmt.Errorf("decode failed tokens: %w", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		rec.DeliveredAt = &t
	}
	return &rec, nil
}
