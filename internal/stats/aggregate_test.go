package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"academy-notifications/internal/models"
)

func record(status models.Status, typ string, recipients, success, failure int) models.NotificationRecord {
	return models.NotificationRecord{
		NotificationRequest: models.NotificationRequest{Title: "t", Body: "b", Type: typ, SendToAll: true},
		Status:              status,
		RecipientCount:      recipients,
		SuccessCount:        success,
		FailureCount:        failure,
	}
}

func TestAggregate(t *testing.T) {
	records := []models.NotificationRecord{
		record(models.StatusSent, models.TypeCourseAssignment, 10, 9, 1),
		record(models.StatusSent, models.TypeGeneralAnnouncement, 4, 4, 0),
		record(models.StatusFailed, models.TypeCourseAssignment, 2, 0, 2),
		record(models.StatusFailed, "", 0, 0, 0),
		record(models.StatusPending, "", 0, 0, 0),
	}

	got := Aggregate(records)

	assert.Equal(t, Stats{
		Total:           5,
		Sent:            2,
		Failed:          2,
		Pending:         1,
		TotalRecipients: 16,
		TotalSuccessful: 13,
		TotalFailed:     3,
		ByType: map[string]int{
			models.TypeCourseAssignment:    2,
			models.TypeGeneralAnnouncement: 3,
		},
	}, got)
}

func TestAggregate_OmitsUnseenTypes(t *testing.T) {
	got := Aggregate([]models.NotificationRecord{record(models.StatusSent, "reminder", 1, 1, 0)})

	assert.Equal(t, map[string]int{"reminder": 1}, got.ByType)
	assert.NotContains(t, got.ByType, models.TypeGeneralAnnouncement)
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil)

	assert.Zero(t, got.Total)
	assert.NotNil(t, got.ByType)
	assert.Empty(t, got.ByType)
}
