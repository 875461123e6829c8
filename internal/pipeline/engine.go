package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
	"academy-notifications/internal/models"
	"academy-notifications/internal/push"
)

var tracer = otel.Tracer("academy-notifications/pipeline")

// DeliveryFailure is one token that did not receive the notification.
// Reason is the normalized class; Message is what gets recorded, which for
// a failed batch call is the call's error text.
type DeliveryFailure struct {
	UserID  string
	Token   string
	Reason  push.ErrorReason
	Message string
	Detail  string
}

type DeliveryResult struct {
	SuccessCount int
	FailureCount int
	Failures     []DeliveryFailure
	Batches      int
	FailedCalls  int
}

// FailedTokens converts failures into their persisted form.
func (r DeliveryResult) FailedTokens() []models.FailedToken {
	if len(r.Failures) == 0 {
		return nil
	}
	out := make([]models.FailedToken, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, models.FailedToken{
			UserID:      f.UserID,
			Token:       f.Token,
			ErrorReason: f.Message,
			Detail:      f.Detail,
		})
	}
	return out
}

type Engine struct {
	gateway push.Gateway
	logger  logger.Logger
}

func NewEngine(gateway push.Gateway, log logger.Logger) *Engine {
	return &Engine{
		gateway: gateway,
		logger:  log.WithFields(map[string]interface{}{"component": "delivery-engine"}),
	}
}

// NewMessage builds the shared payload for a record. The data block carries
// the type, the record key and the delivery timestamp.
func NewMessage(rec *models.NotificationRecord, now time.Time) push.Message {
	return push.Message{
		Title: rec.Title,
		Body:  rec.Body,
		Data: map[string]string{
			"type":           rec.TypeOrDefault(),
			"notificationId": rec.ID,
			"timestamp":      now.UTC().Format(time.RFC3339),
		},
	}
}

// Deliver sends batches sequentially, in order. A batch whose call fails
// counts every token in it as failed and delivery moves on to the next batch.
// Nothing is retried.
func (e *Engine) Deliver(ctx context.Context, batches [][]models.Recipient, msg push.Message) DeliveryResult {
	ctx, span := tracer.Start(ctx, "pipeline.deliver")
	defer span.End()

	var result DeliveryResult
	for i, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		result.Batches++
		e.deliverBatch(ctx, i, batch, msg, &result)
	}

	span.SetAttributes(
		attribute.Int("batches", result.Batches),
		attribute.Int("success", result.SuccessCount),
		attribute.Int("failure", result.FailureCount),
	)
	if result.SuccessCount == 0 && result.FailureCount > 0 {
		span.SetStatus(codes.Error, "no successful deliveries")
	}
	return result
}

func (e *Engine) deliverBatch(ctx context.Context, index int, batch []models.Recipient, msg push.Message, result *DeliveryResult) {
	tokens := make([]string, len(batch))
	for i, r := range batch {
		tokens[i] = r.Token
	}

	outcomes, err := e.gateway.SendMulticast(ctx, tokens, msg)
	if err != nil {
		metrics.BatchCalls.WithLabelValues("error").Inc()
		result.FailedCalls++
		e.logger.Error("batch send failed", map[string]interface{}{
			"batch": index,
			"size":  len(batch),
			"error": err,
		})
		for _, r := range batch {
			result.fail(r, push.ReasonTransient, err.Error(), "")
		}
		return
	}
	metrics.BatchCalls.WithLabelValues("ok").Inc()

	if len(outcomes) != len(batch) {
		e.logger.Warn("gateway returned a mismatched outcome count", map[string]interface{}{
			"batch":    index,
			"expected": len(batch),
			"got":      len(outcomes),
		})
	}

	for i, r := range batch {
		if i >= len(outcomes) {
			result.fail(r, push.ReasonOther, string(push.ReasonOther), "no outcome reported")
			continue
		}
		o := outcomes[i]
		if o.Success {
			result.SuccessCount++
			metrics.DeliveryOutcomes.WithLabelValues("success", "").Inc()
			continue
		}
		reason := o.Reason
		if reason == "" {
			reason = push.ReasonOther
		}
		result.fail(r, reason, string(reason), o.Detail)
	}

	e.logger.Debug("batch delivered", map[string]interface{}{
		"batch":   index,
		"size":    len(batch),
		"success": result.SuccessCount,
		"failure": result.FailureCount,
	})
}

func (r *DeliveryResult) fail(rcpt models.Recipient, reason push.ErrorReason, message, detail string) {
	r.FailureCount++
	r.Failures = append(r.Failures, DeliveryFailure{
		UserID:  rcpt.UserID,
		Token:   rcpt.Token,
		Reason:  reason,
		Message: message,
		Detail:  detail,
	})
	metrics.DeliveryOutcomes.WithLabelValues("failure", string(reason)).Inc()
}

// DetermineStatus: sent when anyone received it, failed otherwise.
func DetermineStatus(successCount, failureCount int) models.Status {
	if successCount > 0 {
		return models.StatusSent
	}
	return models.StatusFailed
}
