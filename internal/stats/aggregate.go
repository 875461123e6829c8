package stats

import (
	"strings"

	"academy-notifications/internal/models"
)

// Stats summarizes a window of notification records.
type Stats struct {
	Total           int            `json:"total"`
	Sent            int            `json:"sent"`
	Failed          int            `json:"failed"`
	Pending         int            `json:"pending"`
	TotalRecipients int            `json:"totalRecipients"`
	TotalSuccessful int            `json:"totalSuccessful"`
	TotalFailed     int            `json:"totalFailed"`
	ByType          map[string]int `json:"byType"`
}

// Aggregate reduces records to Stats. Types never observed are absent from
// ByType; a blank type counts as general_announcement.
func Aggregate(records []models.NotificationRecord) Stats {
	s := Stats{ByType: make(map[string]int)}
	for _, rec := range records {
		s.Total++
		switch rec.Status {
		case models.StatusSent:
			s.Sent++
		case models.StatusFailed:
			s.Failed++
		case models.StatusPending:
			s.Pending++
		}
		s.TotalRecipients += rec.RecipientCount
		s.TotalSuccessful += rec.SuccessCount
		s.TotalFailed += rec.FailureCount

		typ := rec.Type
		if strings.TrimSpace(typ) == "" {
			typ = models.TypeGeneralAnnouncement
		}
		s.ByType[typ]++
	}
	return s
}
