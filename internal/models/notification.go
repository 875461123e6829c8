package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// IsTerminal reports whether no further automatic transition happens from s.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Notification types
const (
	TypeGeneralAnnouncement = "general_announcement"
	TypeCourseAssignment    = "course_assignment"
)

// Request sources
const (
	SourceImmediate = "immediate"
	SourceScheduled = "scheduled"
	SourceDashboard = "dashboard"
)

var (
	ErrInvalidRequest       = errors.New("invalid notification request")
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRequest is what an administrator authors.
type NotificationRequest struct {
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Type            string    `json:"type"`
	SendToAll       bool      `json:"sendToAll"`
	SelectedUserIDs []string  `json:"selectedUsers,omitempty"`
	Source          string    `json:"source,omitempty"`
	SentAt          time.Time `json:"sentAt"`
}

// TypeOrDefault returns the request type, falling back to general_announcement.
func (r NotificationRequest) TypeOrDefault() string {
	if strings.TrimSpace(r.Type) == "" {
		return TypeGeneralAnnouncement
	}
	return r.Type
}

// Validate checks the invariants that must hold before any send attempt:
// non-empty title and body, and exactly one of sendToAll or a non-empty
// selection.
func (r NotificationRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: title and body are required", ErrInvalidRequest)
	}
	if r.SendToAll && len(r.SelectedUserIDs) > 0 {
		return fmt.Errorf("%w: sendToAll cannot be combined with selected users", ErrInvalidRequest)
	}
	if !r.SendToAll && len(r.SelectedUserIDs) == 0 {
		return fmt.Errorf("%w: no recipients selected", ErrInvalidRequest)
	}
	return nil
}

type FailedToken struct {
	UserID      string `json:"userId"`
	Token       string `json:"token"`
	ErrorReason string `json:"errorReason"`
	Detail      string `json:"detail,omitempty"`
}

// NotificationRecord is the persisted lifecycle of one request.
type NotificationRecord struct {
	ID string `json:"id"`
	NotificationRequest
	Status         Status        `json:"status"`
	Error          string        `json:"error,omitempty"`
	RecipientCount int           `json:"recipientCount"`
	SuccessCount   int           `json:"successCount"`
	FailureCount   int           `json:"failureCount"`
	FailedTokens   []FailedToken `json:"failedTokens,omitempty"`
	ProcessedAt    *time.Time    `json:"processedAt,omitempty"`
	DeliveredAt    *time.Time    `json:"deliveredAt,omitempty"`
}

// RecordPatch is a partial update; nil fields are left untouched.
type RecordPatch struct {
	Status         *Status
	Error          *string
	RecipientCount *int
	SuccessCount   *int
	FailureCount   *int
	FailedTokens   []FailedToken
	ProcessedAt    *time.Time
	DeliveredAt    *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (p RecordPatch) IsEmpty() bool {
	return p.Status == nil && p.Error == nil && p.RecipientCount == nil &&
		p.SuccessCount == nil && p.FailureCount == nil && p.FailedTokens == nil &&
		p.ProcessedAt == nil && p.DeliveredAt == nil
}

// TimeField names a record timestamp usable in windowed queries.
type TimeField string

const (
	FieldSentAt      TimeField = "sentAt"
	FieldProcessedAt TimeField = "processedAt"
)
