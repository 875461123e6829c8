package cleanupoldnotifications

// Input optionally overrides the configured retention period.
type Input struct {
	RetentionDays int `json:"retentionDays,omitempty"`
}

type Output struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deletedCount"`
	Cutoff       string `json:"cutoff,omitempty"`
	Message      string `json:"message,omitempty"`
}
