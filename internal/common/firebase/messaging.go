package firebase

import (
	"context"
	"fmt"
	"os"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"academy-notifications/internal/common/config"
)

// NewMessagingClient initializes the Firebase app and returns its FCM client.
// Without a credentials file the SDK falls back to application default
// credentials.
func NewMessagingClient(ctx context.Context, cfg config.FirebaseConfig) (*messaging.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file not found: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return client, nil
}
