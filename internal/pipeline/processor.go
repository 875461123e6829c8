package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
	"academy-notifications/internal/models"
)

const (
	reasonNoRecipients      = "No valid recipients found"
	reasonAllFailed         = "Delivery failed for every recipient"
	reasonTitleBodyRequired = "Title and body are required"
	queuedMessage           = "Notification queued for sending"
)

// RecordStore is the part of the notification record store the pipeline needs.
type RecordStore interface {
	Create(ctx context.Context, req models.NotificationRequest) (string, error)
	Get(ctx context.Context, id string) (*models.NotificationRecord, error)
	Update(ctx context.Context, id string, patch models.RecordPatch) error
}

// HistoryIndexer receives terminal records for search.
type HistoryIndexer interface {
	Put(ctx context.Context, rec *models.NotificationRecord) error
}

// StatsInvalidator drops cached statistics once a record changes state.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

// FailureAlerter tells administrators about records that ended failed.
type FailureAlerter interface {
	NotifyFailed(ctx context.Context, rec *models.NotificationRecord) error
}

type Processor struct {
	records   RecordStore
	resolver  *Resolver
	engine    *Engine
	sanitizer *Sanitizer
	claims    *Claims
	history   HistoryIndexer
	alerter   FailureAlerter
	stats     StatsInvalidator
	batchSize int
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Processor)

func WithClaims(c *Claims) Option { return func(p *Processor) { p.claims = c } }

func WithHistory(h HistoryIndexer) Option { return func(p *Processor) { p.history = h } }

func WithAlerter(a FailureAlerter) Option { return func(p *Processor) { p.alerter = a } }

func WithStatsCache(s StatsInvalidator) Option { return func(p *Processor) { p.stats = s } }

// WithBatchSize overrides the delivery batch size; it is capped at the
// gateway limit.
func WithBatchSize(n int) Option { return func(p *Processor) { p.batchSize = n } }

func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

func NewProcessor(records RecordStore, resolver *Resolver, engine *Engine, sanitizer *Sanitizer, log logger.Logger, opts ...Option) *Processor {
	p := &Processor{
		records:   records,
		resolver:  resolver,
		engine:    engine,
		sanitizer: sanitizer,
		batchSize: SendBatchSize,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "processor"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.batchSize <= 0 || p.batchSize > SendBatchSize {
		p.batchSize = SendBatchSize
	}
	return p
}

// Result summarizes one Process call.
type Result struct {
	NotificationID string        `json:"notificationId"`
	Status         models.Status `json:"status"`
	RecipientCount int           `json:"recipientCount"`
	SuccessCount   int           `json:"successCount"`
	FailureCount   int           `json:"failureCount"`
	RemovedTokens  int           `json:"removedTokens"`
	Error          string        `json:"error,omitempty"`
	Skipped        bool          `json:"skipped"`
}

// Process runs one pending record end to end: resolve, batch, deliver,
// sanitize, then a single terminal update. Business failures (invalid
// request, nobody to send to, nobody reached) are recorded on the record and
// are not errors. A returned error means the record store could not be read
// or written.
//
// Cancellation and deadlines on ctx are ignored: once claimed, a record runs
// to a terminal state so no user is sent to without it being recorded.
func (p *Processor) Process(ctx context.Context, id string) (*Result, error) {
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "pipeline.process", traceAttr(id))
	defer span.End()

	start := p.now()
	log := p.logger.WithFields(map[string]interface{}{"notificationId": id})

	if p.claims != nil {
		if err := p.claims.Acquire(ctx, id); err != nil {
			if errors.Is(err, ErrAlreadyClaimed) {
				log.Info("notification already claimed, skipping", nil)
				return &Result{NotificationID: id, Status: models.StatusPending, Skipped: true}, nil
			}
			return nil, err
		}
	}

	metrics.InFlightNotifications.Inc()
	defer metrics.InFlightNotifications.Dec()

	rec, err := p.records.Get(ctx, id)
	if err != nil {
		p.release(ctx, id)
		if errors.Is(err, models.ErrNotificationNotFound) {
			return nil, apperrors.NewNotificationNotFoundError(id)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewRecordStoreError("read", err)
	}
	if rec.Status.IsTerminal() {
		log.Info("notification already processed", map[string]interface{}{"status": string(rec.Status)})
		return resultFromRecord(rec, true), nil
	}

	if err := rec.Validate(); err != nil {
		reason := reasonTitleBodyRequired
		if !strings.Contains(err.Error(), "title and body") {
			reason = err.Error()
		}
		log.Warn("rejecting invalid notification", map[string]interface{}{"error": err})
		return p.finishFailed(ctx, rec, reason, 0, start)
	}

	recipients, err := p.resolver.Resolve(ctx, rec.NotificationRequest)
	if err != nil {
		if errors.Is(err, ErrNoEligibleRecipients) {
			log.Warn("no eligible recipients", nil)
			return p.finishFailed(ctx, rec, reasonNoRecipients, 0, start)
		}
		log.Error("recipient resolution failed", map[string]interface{}{"error": err})
		res, ferr := p.finishFailed(ctx, rec, err.Error(), 0, start)
		if ferr != nil {
			return nil, ferr
		}
		span.SetStatus(codes.Error, err.Error())
		return res, apperrors.NewUserStoreError("read", err)
	}

	batches := Chunk(recipients, p.batchSize)
	delivery := p.engine.Deliver(ctx, batches, NewMessage(rec, p.now()))

	removed, serr := p.sanitizer.Sanitize(ctx, delivery.Failures)
	if serr != nil {
		log.Warn("token cleanup incomplete", map[string]interface{}{"error": serr})
	}

	status := DetermineStatus(delivery.SuccessCount, delivery.FailureCount)
	now := p.now().UTC()
	patch := models.RecordPatch{
		Status:         &status,
		RecipientCount: intPtr(len(recipients)),
		SuccessCount:   intPtr(delivery.SuccessCount),
		FailureCount:   intPtr(delivery.FailureCount),
		FailedTokens:   delivery.FailedTokens(),
		ProcessedAt:    &now,
	}
	if status == models.StatusSent {
		patch.DeliveredAt = &now
	} else {
		patch.Error = strPtr(reasonAllFailed)
	}

	if err := p.records.Update(ctx, id, patch); err != nil {
		// Tokens were already sent to; keep the claim so no trigger re-sends.
		log.Error("failed to record delivery result", map[string]interface{}{"error": err})
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewRecordStoreError("update", err)
	}

	applyPatch(rec, patch)
	p.afterTerminal(ctx, rec, start)

	log.Info("notification processed", map[string]interface{}{
		"status":         string(status),
		"recipientCount": len(recipients),
		"successCount":   delivery.SuccessCount,
		"failureCount":   delivery.FailureCount,
		"batches":        delivery.Batches,
		"removedTokens":  removed,
	})
	span.SetAttributes(attribute.String("status", string(status)))

	res := resultFromRecord(rec, false)
	res.RemovedTokens = removed
	return res, nil
}

// finishFailed marks rec failed without any delivery attempt.
func (p *Processor) finishFailed(ctx context.Context, rec *models.NotificationRecord, reason string, recipients int, start time.Time) (*Result, error) {
	status := models.StatusFailed
	now := p.now().UTC()
	patch := models.RecordPatch{
		Status:         &status,
		Error:          strPtr(reason),
		RecipientCount: intPtr(recipients),
		SuccessCount:   intPtr(0),
		FailureCount:   intPtr(0),
		ProcessedAt:    &now,
	}
	if err := p.records.Update(ctx, rec.ID, patch); err != nil {
		p.logger.Error("failed to mark notification failed", map[string]interface{}{
			"notificationId": rec.ID,
			"reason":         reason,
			"error":          err,
		})
		p.release(ctx, rec.ID)
		return nil, apperrors.NewRecordStoreError("update", err)
	}

	applyPatch(rec, patch)
	p.afterTerminal(ctx, rec, start)
	return resultFromRecord(rec, false), nil
}

// afterTerminal runs the best-effort side effects of a terminal record.
func (p *Processor) afterTerminal(ctx context.Context, rec *models.NotificationRecord, start time.Time) {
	metrics.NotificationsProcessed.WithLabelValues(string(rec.Status), rec.TypeOrDefault()).Inc()
	metrics.NotificationProcessingDuration.WithLabelValues(string(rec.Status)).Observe(p.now().Sub(start).Seconds())

	if p.stats != nil {
		p.stats.Invalidate(ctx)
	}

	if p.history != nil {
		if err := p.history.Put(ctx, rec); err != nil {
			p.logger.Warn("failed to index notification history", map[string]interface{}{
				"notificationId": rec.ID,
				"error":          err,
			})
		}
	}
	if p.alerter != nil && rec.Status == models.StatusFailed {
		if err := p.alerter.NotifyFailed(ctx, rec); err != nil {
			p.logger.Warn("failed to alert administrators", map[string]interface{}{
				"notificationId": rec.ID,
				"error":          err,
			})
		}
	}
}

func (p *Processor) release(ctx context.Context, id string) {
	if p.claims != nil {
		p.claims.Release(ctx, id)
	}
}

// EnqueueInput is a direct invocation. No user ids means everyone.
type EnqueueInput struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Type    string   `json:"type,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
	Source  string   `json:"source,omitempty"`
}

type EnqueueResult struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notificationId"`
	Message        string `json:"message"`
}

// Enqueue validates a direct invocation and creates a pending record.
// Delivery happens when the record-created trigger picks it up.
func (p *Processor) Enqueue(ctx context.Context, in EnqueueInput) (*EnqueueResult, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Body) == "" {
		return nil, apperrors.NewInvalidRequestError("title or body missing")
	}

	// Only an absent or empty list is a broadcast. Ids that dedupe away to
	// nothing leave a targeted request with no recipients.
	userIDs := Dedupe(in.UserIDs)
	if len(in.UserIDs) > 0 && len(userIDs) == 0 {
		return nil, apperrors.NewNoEligibleRecipientsError("userIds contained only blank ids")
	}
	req := models.NotificationRequest{
		Title:           in.Title,
		Body:            in.Body,
		Type:            in.Type,
		SendToAll:       len(in.UserIDs) == 0,
		SelectedUserIDs: userIDs,
		Source:          in.Source,
		SentAt:          p.now().UTC(),
	}
	req.Type = req.TypeOrDefault()
	if req.Source == "" {
		req.Source = models.SourceImmediate
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}

	id, err := p.records.Create(ctx, req)
	if err != nil {
		return nil, apperrors.NewRecordStoreError("create", err)
	}

	if p.stats != nil {
		p.stats.Invalidate(ctx)
	}

	p.logger.Info("notification enqueued", map[string]interface{}{
		"notificationId": id,
		"sendToAll":      req.SendToAll,
		"selected":       len(userIDs),
	})
	return &EnqueueResult{Success: true, NotificationID: id, Message: queuedMessage}, nil
}

func applyPatch(rec *models.NotificationRecord, patch models.RecordPatch) {
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Error != nil {
		rec.Error = *patch.Error
	}
	if patch.RecipientCount != nil {
		rec.RecipientCount = *patch.RecipientCount
	}
	if patch.SuccessCount != nil {
		rec.SuccessCount = *patch.SuccessCount
	}
	if patch.FailureCount != nil {
		rec.FailureCount = *patch.FailureCount
	}
	if patch.FailedTokens != nil {
		rec.FailedTokens = patch.FailedTokens
	}
	if patch.ProcessedAt != nil {
		rec.ProcessedAt = patch.ProcessedAt
	}
	if patch.DeliveredAt != nil {
		rec.DeliveredAt = patch.DeliveredAt
	}
}

func resultFromRecord(rec *models.NotificationRecord, skipped bool) *Result {
	return &Result{
		NotificationID: rec.ID,
		Status:         rec.Status,
		RecipientCount: rec.RecipientCount,
		SuccessCount:   rec.SuccessCount,
		FailureCount:   rec.FailureCount,
		Error:          rec.Error,
		Skipped:        skipped,
	}
}

func traceAttr(id string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("notificationId", id))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
