package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"academy-notifications/internal/models"
	"academy-notifications/internal/push"
	"academy-notifications/internal/repository/notification"
)

type fakeRecords struct {
	records   []models.NotificationRecord
	queryErr  error
	deleteErr error
	deleted   [][]string
	window    notification.Window
}

func (f *fakeRecords) QueryByTimeWindow(_ context.Context, field models.TimeField, w notification.Window) ([]models.NotificationRecord, error) {
	f.window = w
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []models.NotificationRecord
	for _, r := range f.records {
		if !w.End.IsZero() && !r.SentAt.Before(w.End) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecords) Delete(_ context.Context, ids []string) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, ids)
	return int64(len(ids)), nil
}

type fakeHistory struct {
	ids []string
	err error
}

func (f *fakeHistory) Delete(_ context.Context, ids []string) (int, error) {
	f.ids = append(f.ids, ids...)
	return len(ids), f.err
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) { f.calls++ }

type fakeUsers struct {
	users   []models.UserProfile
	listErr error
	cleared map[string]string
}

func (f *fakeUsers) ListWithTokens(context.Context) ([]models.UserProfile, error) {
	return f.users, f.listErr
}

func (f *fakeUsers) ClearPushToken(_ context.Context, userID, token string) (bool, error) {
	for i, u := range f.users {
		if u.ID == userID && u.PushToken == token {
			f.users[i].PushToken = ""
			if f.cleared == nil {
				f.cleared = map[string]string{}
			}
			f.cleared[userID] = token
			return true, nil
		}
	}
	return false, nil
}

type fakeGateway struct {
	reasons  map[string]push.ErrorReason
	failCall map[int]error
	batches  [][]string
}

func (f *fakeGateway) SendMulticast(context.Context, []string, push.Message) ([]push.Outcome, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) DryRun(_ context.Context, tokens []string) ([]push.Outcome, error) {
	call := len(f.batches)
	f.batches = append(f.batches, tokens)
	if err := f.failCall[call]; err != nil {
		return nil, err
	}
	out := make([]push.Outcome, len(tokens))
	for i, tok := range tokens {
		if reason, ok := f.reasons[tok]; ok {
			out[i] = push.Outcome{Token: tok, Reason: reason}
			continue
		}
		out[i] = push.Outcome{Token: tok, Success: true}
	}
	return out, nil
}

func recordAt(id string, status models.Status, sentAt time.Time) models.NotificationRecord {
	return models.NotificationRecord{
		ID:                  id,
		NotificationRequest: models.NotificationRequest{Title: "t", Body: "b", SendToAll: true, SentAt: sentAt},
		Status:              status,
	}
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
