package sendpushnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
	"academy-notifications/internal/common/validation"
	"academy-notifications/internal/pipeline"
)

const (
	TaskType = "send-push-notification"
)

// NotificationProcessor runs one pending record through delivery.
type NotificationProcessor interface {
	Process(ctx context.Context, id string) (*pipeline.Result, error)
}

type Handler struct {
	config    *Config
	processor NotificationProcessor
	logger    logger.Logger
}

func NewHandler(config *Config, processor NotificationProcessor, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		processor: processor,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	result, err := validation.ValidateJSON(job.Variables, h.config.InputSchema)
	if err != nil {
		return nil, apperrors.NewInputValidationError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInputValidationError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute processes the referenced record. Delivery outcomes, including a
// failed record, complete the job; only store faults are returned as errors.
// The job timeout does not cut a delivery short.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.NotificationID == "" {
		return nil, apperrors.NewInputValidationError("notificationId is required")
	}

	res, err := h.processor.Process(context.WithoutCancel(ctx), input.NotificationID)
	if err != nil {
		return nil, err
	}

	return &Output{
		NotificationID: res.NotificationID,
		Status:         string(res.Status),
		RecipientCount: res.RecipientCount,
		SuccessCount:   res.SuccessCount,
		FailureCount:   res.FailureCount,
		RemovedTokens:  res.RemovedTokens,
		Error:          res.Error,
		Skipped:        res.Skipped,
	}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, apperrors.CodeOf(err)).Inc()
	apperrors.NewErrorHandler(h.logger).HandleJobError(ctx, client, job, err)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}
