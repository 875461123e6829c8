package enqueuenotification

// Input mirrors a direct invocation. An empty userIds list targets every
// user with a push token.
type Input struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Type    string   `json:"type,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
	Source  string   `json:"source,omitempty"`
}

type Output struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notificationId"`
	Message        string `json:"message"`
}
