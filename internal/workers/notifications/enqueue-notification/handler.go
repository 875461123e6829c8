package enqueuenotification

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
	TaskType = "enqueue-notification"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, in pipeline.EnqueueInput) (*pipeline.EnqueueResult, error)
}

type Handler struct {
	config   *Config
	enqueuer Enqueuer
	logger   logger.Logger
}

func NewHandler(config *Config, enqueuer Enqueuer, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		enqueuer: enqueuer,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	output, err := h.handle(ctx, job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}
	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) handle(ctx context.Context, job entities.Job) (*Output, error) {
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
	return h.Execute(ctx, &input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInputValidationError("input cannot be nil")
	}

	res, err := h.enqueuer.Enqueue(ctx, pipeline.EnqueueInput{
		Title:   input.Title,
		Body:    input.Body,
		Type:    input.Type,
		UserIDs: input.UserIDs,
		Source:  input.Source,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		Success:        res.Success,
		NotificationID: res.NotificationID,
		Message:        res.Message,
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
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}
