package stats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
	"academy-notifications/internal/repository/notification"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fakeQuerier struct {
	records []models.NotificationRecord
	err     error
	calls   int
	field   models.TimeField
	window  notification.Window
}

func (f *fakeQuerier) QueryByTimeWindow(_ context.Context, field models.TimeField, w notification.Window) ([]models.NotificationRecord, error) {
	f.calls++
	f.field = field
	f.window = w
	return f.records, f.err
}

func newService(t *testing.T, q RecordQuerier, cache redis.Cmdable, ttl time.Duration) *Service {
	svc := NewService(q, cache, 30*24*time.Hour, ttl, logger.NewTestLogger(t))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestService_Compute_UsesTrailingWindow(t *testing.T) {
	q := &fakeQuerier{records: []models.NotificationRecord{record(models.StatusSent, "", 3, 3, 0)}}
	svc := newService(t, q, nil, 0)

	got, err := svc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, got.Sent)
	assert.Equal(t, models.FieldSentAt, q.field)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), q.window.Start)
	assert.True(t, q.window.End.IsZero())
}

func TestService_Compute_CachesResult(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	q := &fakeQuerier{records: []models.NotificationRecord{record(models.StatusFailed, models.TypeCourseAssignment, 1, 0, 1)}}
	svc := newService(t, q, rdb, time.Minute)

	first, err := svc.Compute(context.Background())
	require.NoError(t, err)
	second, err := svc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, q.calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(svc.cacheKey()))
	assert.Equal(t, time.Minute, mr.TTL(svc.cacheKey()))

	mr.FastForward(2 * time.Minute)
	_, err = svc.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, q.calls)

	svc.Invalidate(context.Background())
	assert.False(t, mr.Exists(svc.cacheKey()))
}

func TestService_Compute_CacheFaultFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := &fakeQuerier{records: []models.NotificationRecord{record(models.StatusPending, "", 0, 0, 0)}}
	svc := newService(t, q, rdb, time.Minute)

	expected := Aggregate(q.records)
	raw, err := json.Marshal(&expected)
	require.NoError(t, err)

	mock.ExpectGet(svc.cacheKey()).SetErr(errors.New("connection reset"))
	mock.ExpectSet(svc.cacheKey(), raw, time.Minute).SetErr(errors.New("connection reset"))

	got, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Compute_StoreError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("relation does not exist")}
	svc := newService(t, q, nil, 0)

	_, err := svc.Compute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}
