package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
)

func TestResolver_Eligibility(t *testing.T) {
	users := newFakeUsers(
		models.UserProfile{ID: "u1", Name: "Asha", PushToken: "tok-1"},
		models.UserProfile{ID: "u2", PushToken: "tok-2", NotificationsEnabled: boolPtr(true)},
		models.UserProfile{ID: "u3", PushToken: "tok-3", NotificationsEnabled: boolPtr(false)},
		models.UserProfile{ID: "u4", PushToken: "   "},
		models.UserProfile{ID: "u5"},
	)
	r := NewResolver(users, logger.NewTestLogger(t))

	got, err := r.Resolve(context.Background(), models.NotificationRequest{SendToAll: true})
	require.NoError(t, err)
	assert.Equal(t, []models.Recipient{
		{UserID: "u1", Token: "tok-1", Name: "Asha"},
		{UserID: "u2", Token: "tok-2", Name: "User"},
	}, got)
}

func TestResolver_SelectedDeduplicates(t *testing.T) {
	users := newFakeUsers(
		models.UserProfile{ID: "u1", Name: "Asha", PushToken: "tok-1"},
		models.UserProfile{ID: "u2", Name: "Ravi"},
	)
	r := NewResolver(users, logger.NewTestLogger(t))

	got, err := r.Resolve(context.Background(), models.NotificationRequest{
		SelectedUserIDs: []string{"u1", "u1", "u2", "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Recipient{{UserID: "u1", Token: "tok-1", Name: "Asha"}}, got)
}

func TestResolver_SelectionOrderPreserved(t *testing.T) {
	users := newFakeUsers(
		models.UserProfile{ID: "a", PushToken: "ta"},
		models.UserProfile{ID: "b", PushToken: "tb"},
		models.UserProfile{ID: "c", PushToken: "tc"},
	)
	r := NewResolver(users, logger.NewNoOpLogger())

	got, err := r.Resolve(context.Background(), models.NotificationRequest{SelectedUserIDs: []string{"c", "a", "c", "b"}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].UserID)
	assert.Equal(t, "a", got[1].UserID)
	assert.Equal(t, "b", got[2].UserID)
}

func TestResolver_NoEligibleRecipients(t *testing.T) {
	users := newFakeUsers(models.UserProfile{ID: "u1", PushToken: "t", NotificationsEnabled: boolPtr(false)})
	r := NewResolver(users, logger.NewNoOpLogger())

	_, err := r.Resolve(context.Background(), models.NotificationRequest{SendToAll: true})
	assert.ErrorIs(t, err, ErrNoEligibleRecipients)

	_, err = r.Resolve(context.Background(), models.NotificationRequest{SelectedUserIDs: []string{"nobody"}})
	assert.ErrorIs(t, err, ErrNoEligibleRecipients)
}

func TestResolver_StoreError(t *testing.T) {
	users := newFakeUsers()
	users.listErr = errors.New("connection refused")
	r := NewResolver(users, logger.NewNoOpLogger())

	_, err := r.Resolve(context.Background(), models.NotificationRequest{SendToAll: true})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoEligibleRecipients)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"u1", "u2"}, Dedupe([]string{"u1", " ", "u1", "u2", "u2"}))
	assert.Empty(t, Dedupe(nil))
}
