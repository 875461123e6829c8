package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

// SNSAPI is the subset of the SNS client used by SNSGateway.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetEndpointAttributes(ctx context.Context, input *sns.GetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.GetEndpointAttributesOutput, error)
}

// SNSGateway delivers through SNS mobile push. Tokens are platform endpoint
// ARNs; a multicast is one Publish per endpoint in submission order.
type SNSGateway struct {
	client SNSAPI
	hints  Hints
}

func NewSNSGateway(client SNSAPI, hints Hints) *SNSGateway {
	return &SNSGateway{client: client, hints: hints}
}

func (g *SNSGateway) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]Outcome, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > MaxMulticastTokens {
		return nil, fmt.Errorf("multicast of %d tokens exceeds limit of %d", len(tokens), MaxMulticastTokens)
	}

	payload, err := g.buildPayload(msg)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(tokens))
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := g.client.Publish(ctx, &sns.PublishInput{
			TargetArn:        aws.String(token),
			Message:          aws.String(payload),
			MessageStructure: aws.String("json"),
		})
		o := Outcome{Token: token}
		if err != nil {
			o.Reason = classifySNSError(err)
			o.Detail = err.Error()
		} else {
			o.Success = true
			o.MessageID = aws.ToString(out.MessageId)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// DryRun checks each endpoint's Enabled attribute; SNS disables endpoints
// the platform has reported as unregistered.
func (g *SNSGateway) DryRun(ctx context.Context, tokens []string) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(tokens))
	for _, token := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := g.client.GetEndpointAttributes(ctx, &sns.GetEndpointAttributesInput{
			EndpointArn: aws.String(token),
		})
		o := Outcome{Token: token}
		switch {
		case err != nil:
			o.Reason = classifySNSError(err)
			o.Detail = err.Error()
		case strings.EqualFold(out.Attributes["Enabled"], "false"):
			o.Reason = ReasonTokenUnregistered
			o.Detail = "endpoint disabled"
		default:
			o.Success = true
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apnsAps struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound,omitempty"`
	Badge int       `json:"badge,omitempty"`
}

type gcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
	Sound string `json:"sound,omitempty"`
}

// buildPayload renders the per-platform JSON message structure SNS expects.
func (g *SNSGateway) buildPayload(msg Message) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": gcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Icon:  g.hints.AndroidIcon,
			Color: g.hints.AndroidColor,
			Sound: g.hints.AndroidSound,
		},
		"data": msg.Data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode gcm payload: %w", err)
	}

	apnsBody := map[string]interface{}{
		"aps": apnsAps{
			Alert: apnsAlert{Title: msg.Title, Body: msg.Body},
			Sound: g.hints.APNSSound,
			Badge: g.hints.APNSBadge,
		},
	}
	for k, v := range msg.Data {
		if k != "aps" {
			apnsBody[k] = v
		}
	}
	apns, err := json.Marshal(apnsBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode apns payload: %w", err)
	}

	structure, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode sns message: %w", err)
	}
	return string(structure), nil
}

func classifySNSError(err error) ErrorReason {
	var (
		disabled  *types.EndpointDisabledException
		notFound  *types.NotFoundException
		invalid   *types.InvalidParameterException
		invalidV  *types.InvalidParameterValueException
		throttled *types.ThrottledException
		internal  *types.InternalErrorException
	)
	switch {
	case errors.As(err, &disabled), errors.As(err, &notFound):
		return ReasonTokenUnregistered
	case errors.As(err, &invalid), errors.As(err, &invalidV):
		// Only a rejected endpoint ARN is a token fault; the message body
		// is shared by every endpoint.
		if strings.Contains(err.Error(), "Arn") {
			return ReasonTokenInvalid
		}
		return ReasonOther
	case errors.As(err, &throttled), errors.As(err, &internal):
		return ReasonTransient
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return NormalizeCode(apiErr.ErrorCode())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTransient
	}
	return ReasonOther
}
