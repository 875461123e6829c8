package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestNotificationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     NotificationRequest
		wantErr bool
	}{
		{"send to all", NotificationRequest{Title: "Exam", Body: "Starts Monday", SendToAll: true}, false},
		{"selected users", NotificationRequest{Title: "Exam", Body: "Starts Monday", SelectedUserIDs: []string{"u1"}}, false},
		{"missing title", NotificationRequest{Body: "Starts Monday", SendToAll: true}, true},
		{"blank body", NotificationRequest{Title: "Exam", Body: "   ", SendToAll: true}, true},
		{"no audience", NotificationRequest{Title: "Exam", Body: "Starts Monday"}, true},
		{"both audiences", NotificationRequest{Title: "Exam", Body: "Starts Monday", SendToAll: true, SelectedUserIDs: []string{"u1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidRequest))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotificationRequest_TypeOrDefault(t *testing.T) {
	assert.Equal(t, TypeGeneralAnnouncement, NotificationRequest{}.TypeOrDefault())
	assert.Equal(t, TypeCourseAssignment, NotificationRequest{Type: TypeCourseAssignment}.TypeOrDefault())
}

func TestUserProfile_Eligible(t *testing.T) {
	tests := []struct {
		name string
		user UserProfile
		want bool
	}{
		{"token and setting absent", UserProfile{PushToken: "tok"}, true},
		{"token and enabled", UserProfile{PushToken: "tok", NotificationsEnabled: boolPtr(true)}, true},
		{"token but disabled", UserProfile{PushToken: "tok", NotificationsEnabled: boolPtr(false)}, false},
		{"blank token", UserProfile{PushToken: "  "}, false},
		{"no token", UserProfile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.Eligible())
		})
	}
}

func TestUserProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "User", UserProfile{}.DisplayName())
	assert.Equal(t, "Asha", UserProfile{Name: "Asha"}.DisplayName())
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
