package sendpushnotification

type Input struct {
	NotificationID string `json:"notificationId"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	RecipientCount int    `json:"recipientCount"`
	SuccessCount   int    `json:"successCount"`
	FailureCount   int    `json:"failureCount"`
	RemovedTokens  int    `json:"removedTokens"`
	Error          string `json:"error,omitempty"`
	Skipped        bool   `json:"skipped"`
}
