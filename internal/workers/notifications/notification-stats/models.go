package notificationstats

import "academy-notifications/internal/stats"

type Input struct{}

type Output struct {
	Stats *stats.Stats `json:"stats"`
}
