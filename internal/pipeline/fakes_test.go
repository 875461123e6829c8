package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"academy-notifications/internal/models"
	"academy-notifications/internal/push"
)

func boolPtr(v bool) *bool { return &v }

// fakeUsers is an in-memory user store that keeps insertion order.
type fakeUsers struct {
	mu      sync.Mutex
	order   []string
	byID    map[string]models.UserProfile
	listErr error
	cleared []string
}

func newFakeUsers(users ...models.UserProfile) *fakeUsers {
	f := &fakeUsers{byID: make(map[string]models.UserProfile)}
	for _, u := range users {
		f.order = append(f.order, u.ID)
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) ListAll(_ context.Context) ([]models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.UserProfile, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.byID[id])
	}
	return out, nil
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []string) (map[string]models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]models.UserProfile)
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeUsers) ClearPushToken(_ context.Context, userID, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok || u.PushToken != token {
		return false, nil
	}
	u.PushToken = ""
	f.byID[userID] = u
	f.cleared = append(f.cleared, userID)
	return true, nil
}

func (f *fakeUsers) token(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[userID].PushToken
}

// fakeGateway reports failures for listed tokens and records each call.
// With ctxAware set it rejects calls on a done context like a real client.
type fakeGateway struct {
	failures  map[string]push.ErrorReason
	callErrs  []error // consumed per call, nil entries mean success
	calls     [][]string
	messages  []push.Message
	dropLast  bool
	dryRunned [][]string
	ctxAware  bool
	afterSend func(call int)
}

func (g *fakeGateway) SendMulticast(ctx context.Context, tokens []string, msg push.Message) ([]push.Outcome, error) {
	if g.ctxAware && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	g.calls = append(g.calls, append([]string(nil), tokens...))
	g.messages = append(g.messages, msg)
	if g.afterSend != nil {
		defer g.afterSend(len(g.calls))
	}
	if len(g.callErrs) > 0 {
		err := g.callErrs[0]
		g.callErrs = g.callErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	outcomes := g.outcomes(tokens)
	if g.dropLast && len(outcomes) > 0 {
		outcomes = outcomes[:len(outcomes)-1]
	}
	return outcomes, nil
}

func (g *fakeGateway) DryRun(_ context.Context, tokens []string) ([]push.Outcome, error) {
	g.dryRunned = append(g.dryRunned, append([]string(nil), tokens...))
	return g.outcomes(tokens), nil
}

func (g *fakeGateway) outcomes(tokens []string) []push.Outcome {
	out := make([]push.Outcome, len(tokens))
	for i, tok := range tokens {
		if reason, bad := g.failures[tok]; bad {
			out[i] = push.Outcome{Token: tok, Reason: reason, Detail: string(reason)}
			continue
		}
		out[i] = push.Outcome{Token: tok, Success: true, MessageID: "m-" + tok}
	}
	return out
}

func (g *fakeGateway) sentTokens() []string {
	var all []string
	for _, c := range g.calls {
		all = append(all, c...)
	}
	return all
}

// fakeRecords is an in-memory record store. With ctxAware set, reads and
// writes fail on a done context the way database/sql does.
type fakeRecords struct {
	mu        sync.Mutex
	records   map[string]*models.NotificationRecord
	nextID    int
	getErr    error
	updateErr error
	createErr error
	updates   int
	ctxAware  bool
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]*models.NotificationRecord)}
}

func (f *fakeRecords) put(id string, req models.NotificationRequest) {
	f.records[id] = &models.NotificationRecord{ID: id, NotificationRequest: req, Status: models.StatusPending}
}

func (f *fakeRecords) Create(ctx context.Context, req models.NotificationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctxAware && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("n-%d", f.nextID)
	f.records[id] = &models.NotificationRecord{ID: id, NotificationRequest: req, Status: models.StatusPending}
	return id, nil
}

func (f *fakeRecords) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctxAware && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, models.ErrNotificationNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) Update(ctx context.Context, id string, patch models.RecordPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	rec, ok := f.records[id]
	if !ok {
		return models.ErrNotificationNotFound
	}
	f.updates++
	applyPatch(rec, patch)
	return nil
}

func (f *fakeRecords) get(id string) *models.NotificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

type fakeHistory struct {
	put []string
	err error
}

func (h *fakeHistory) Put(_ context.Context, rec *models.NotificationRecord) error {
	h.put = append(h.put, rec.ID)
	return h.err
}

type fakeAlerter struct {
	alerted []string
}

func (a *fakeAlerter) NotifyFailed(_ context.Context, rec *models.NotificationRecord) error {
	a.alerted = append(a.alerted, rec.ID)
	return errors.New("smtp unavailable")
}

type fakeStatsCache struct {
	mu          sync.Mutex
	invalidated int
}

func (c *fakeStatsCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	c.invalidated++
	c.mu.Unlock()
}
