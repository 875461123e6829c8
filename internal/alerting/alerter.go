package alerting

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

var bodyTemplate = template.Must(template.New("failed").Parse(`A push notification could not be delivered.

Notification: {{.ID}}
Title:        {{.Title}}
Type:         {{.Type}}
Requested:    {{.SentAt}}
Reason:       {{.Error}}
Recipients:   {{.RecipientCount}} ({{.SuccessCount}} delivered, {{.FailureCount}} failed)
{{- if .FailedTokens}}

Failed tokens:
{{- range .FailedTokens}}
  - user {{.UserID}}: {{.ErrorReason}}
{{- end}}
{{- end}}
`))

type Alerter struct {
	ses    SESService
	from   string
	to     []string
	logger logger.Logger
}

func NewAlerter(svc SESService, from string, to []string, log logger.Logger) *Alerter {
	return &Alerter{
		ses:    svc,
		from:   from,
		to:     to,
		logger: log.WithFields(map[string]interface{}{"component": "alerter"}),
	}
}

// NotifyFailed emails the administrators about a record that ended failed.
// Records in any other state are ignored.
func (a *Alerter) NotifyFailed(ctx context.Context, rec *models.NotificationRecord) error {
	if rec == nil || rec.Status != models.StatusFailed || len(a.to) == 0 {
		return nil
	}

	var body bytes.Buffer
	err := bodyTemplate.Execute(&body, map[string]interface{}{
		"ID":             rec.ID,
		"Title":          rec.Title,
		"Type":           rec.TypeOrDefault(),
		"SentAt":         rec.SentAt.UTC().Format(time.RFC3339),
		"Error":          rec.Error,
		"RecipientCount": rec.RecipientCount,
		"SuccessCount":   rec.SuccessCount,
		"FailureCount":   rec.FailureCount,
		"FailedTokens":   rec.FailedTokens,
	})
	if err != nil {
		return apperrors.NewAlertSendError(fmt.Errorf("render alert: %w", err))
	}

	subject := fmt.Sprintf("Notification failed: %s", rec.Title)
	_, err = a.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: a.to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body.String())},
			},
		},
		Source: aws.String(a.from),
	})
	if err != nil {
		return apperrors.NewAlertSendError(err)
	}

	a.logger.Info("failure alert sent", map[string]interface{}{
		"notificationId": rec.ID,
		"recipients":     len(a.to),
	})
	return nil
}
