package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-notifications/internal/common/logger"
)

type fakePQListener struct {
	mu         sync.Mutex
	ch         chan *pq.Notification
	listenErr  error
	listened   []string
	unlistened []string
	pings      int
}

func newFakePQListener() *fakePQListener {
	return &fakePQListener{ch: make(chan *pq.Notification, 8)}
}

func (f *fakePQListener) Listen(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listenErr != nil {
		return f.listenErr
	}
	f.listened = append(f.listened, channel)
	return nil
}

func (f *fakePQListener) Unlisten(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlistened = append(f.unlistened, channel)
	return nil
}

func (f *fakePQListener) NotificationChannel() <-chan *pq.Notification { return f.ch }

func (f *fakePQListener) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

type received struct {
	mu  sync.Mutex
	ids []string
}

func (r *received) handle(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *received) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestListener_DeliversAnnouncements(t *testing.T) {
	fake := newFakePQListener()
	l := NewListener(fake, logger.NewTestLogger(t))
	got := &received{}

	unsubscribe, err := l.Subscribe(context.Background(), "notifications_created", got.handle)
	require.NoError(t, err)

	fake.ch <- &pq.Notification{Channel: "notifications_created", Extra: idA}
	fake.ch <- &pq.Notification{Channel: "other_channel", Extra: "ignored"}
	fake.ch <- nil
	fake.ch <- &pq.Notification{Channel: "notifications_created", Extra: idB}

	require.Eventually(t, func() bool { return len(got.snapshot()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{idA, "", idB}, got.snapshot())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, []string{"notifications_created"}, fake.listened)
	assert.Equal(t, []string{"notifications_created"}, fake.unlistened)
}

func TestListener_StopsWithContext(t *testing.T) {
	fake := newFakePQListener()
	l := NewListener(fake, logger.NewNoOpLogger())
	got := &received{}

	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe, err := l.Subscribe(ctx, "notifications_created", got.handle)
	require.NoError(t, err)

	cancel()
	unsubscribe()

	fake.ch <- &pq.Notification{Channel: "notifications_created", Extra: idA}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, got.snapshot())
}

func TestListener_PingsIdleConnection(t *testing.T) {
	fake := newFakePQListener()
	l := NewListener(fake, logger.NewNoOpLogger())
	l.pingInterval = 5 * time.Millisecond

	unsubscribe, err := l.Subscribe(context.Background(), "notifications_created", func(context.Context, string) {})
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.pings > 0
	}, time.Second, 5*time.Millisecond)
}

func TestListener_ListenError(t *testing.T) {
	fake := newFakePQListener()
	fake.listenErr = errors.New("connection closed")
	l := NewListener(fake, logger.NewNoOpLogger())

	_, err := l.Subscribe(context.Background(), "notifications_created", func(context.Context, string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
}
