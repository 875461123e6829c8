package models

import "strings"

const defaultDisplayName = "User"

// UserProfile is owned by user management; this service only reads it and
// clears stale push tokens.
type UserProfile struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	PushToken            string `json:"pushToken"`
	NotificationsEnabled *bool  `json:"notificationsEnabled,omitempty"`
}

// HasToken reports whether the stored token is non-blank.
func (u UserProfile) HasToken() bool {
	return strings.TrimSpace(u.PushToken) != ""
}

// Eligible: a usable token and notifications not explicitly disabled.
// An absent setting counts as enabled.
func (u UserProfile) Eligible() bool {
	return u.HasToken() && (u.NotificationsEnabled == nil || *u.NotificationsEnabled)
}

func (u UserProfile) DisplayName() string {
	if strings.TrimSpace(u.Name) == "" {
		return defaultDisplayName
	}
	return u.Name
}

type Recipient struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
	Name   string `json:"name"`
}
