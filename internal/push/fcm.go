package push

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
)

// FCMClient is the subset of *messaging.Client used by FCMGateway.
type FCMClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SendEachForMulticastDryRun(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type FCMGateway struct {
	client FCMClient
	hints  Hints
}

func NewFCMGateway(client FCMClient, hints Hints) *FCMGateway {
	return &FCMGateway{client: client, hints: hints}
}

func (g *FCMGateway) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]Outcome, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > MaxMulticastTokens {
		return nil, fmt.Errorf("multicast of %d tokens exceeds limit of %d", len(tokens), MaxMulticastTokens)
	}

	resp, err := g.client.SendEachForMulticast(ctx, g.buildMessage(tokens, msg))
	if err != nil {
		return nil, err
	}
	return collectOutcomes(tokens, resp), nil
}

func (g *FCMGateway) DryRun(ctx context.Context, tokens []string) ([]Outcome, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > MaxMulticastTokens {
		return nil, fmt.Errorf("dry run of %d tokens exceeds limit of %d", len(tokens), MaxMulticastTokens)
	}

	resp, err := g.client.SendEachForMulticastDryRun(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   map[string]string{"test": "true"},
	})
	if err != nil {
		return nil, err
	}
	return collectOutcomes(tokens, resp), nil
}

func (g *FCMGateway) buildMessage(tokens []string, msg Message) *messaging.MulticastMessage {
	badge := g.hints.APNSBadge
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Icon:  g.hints.AndroidIcon,
				Color: g.hints.AndroidColor,
				Sound: g.hints.AndroidSound,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: g.hints.APNSSound,
					Badge: &badge,
				},
			},
		},
	}
}

// collectOutcomes pairs responses with tokens by index. A short response
// leaves the remaining tokens to be reconciled by the caller.
func collectOutcomes(tokens []string, resp *messaging.BatchResponse) []Outcome {
	if resp == nil {
		return nil
	}
	outcomes := make([]Outcome, 0, len(resp.Responses))
	for i, r := range resp.Responses {
		if i >= len(tokens) {
			break
		}
		o := Outcome{Token: tokens[i]}
		switch {
		case r == nil:
			o.Reason = ReasonOther
			o.Detail = "missing response"
		case r.Success:
			o.Success = true
			o.MessageID = r.MessageID
		default:
			o.Reason = classifyFCMError(r.Error)
			if r.Error != nil {
				o.Detail = r.Error.Error()
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func classifyFCMError(err error) ErrorReason {
	if err == nil {
		return ReasonOther
	}
	switch {
	case messaging.IsUnregistered(err):
		return ReasonTokenUnregistered
	case messaging.IsSenderIDMismatch(err):
		return ReasonOther
	case errorutils.IsInvalidArgument(err):
		// The payload is shared by the batch, so only a token-specific
		// INVALID_ARGUMENT is a token fault.
		if strings.Contains(strings.ToLower(err.Error()), "registration token") {
			return ReasonTokenInvalid
		}
		return ReasonOther
	case messaging.IsQuotaExceeded(err),
		errorutils.IsUnavailable(err),
		errorutils.IsInternal(err),
		errorutils.IsDeadlineExceeded(err):
		return ReasonTransient
	}
	return ReasonOther
}
