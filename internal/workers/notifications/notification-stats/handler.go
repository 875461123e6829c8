package notificationstats

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
	"academy-notifications/internal/common/validation"
	"academy-notifications/internal/stats"
)

const (
	TaskType = "notification-stats"
)

type StatsComputer interface {
	Compute(ctx context.Context) (*stats.Stats, error)
}

type Handler struct {
	config *Config
	stats  StatsComputer
	logger logger.Logger
}

func NewHandler(config *Config, computer StatsComputer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		stats:  computer,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	if err := h.validate(job); err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &Input{})
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}
	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) validate(job entities.Job) error {
	result, err := validation.ValidateJSON(job.Variables, h.config.InputSchema)
	if err != nil {
		return apperrors.NewInputValidationError(err.Error())
	}
	if !result.Valid {
		return apperrors.NewInputValidationError(result.Error())
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, _ *Input) (*Output, error) {
	result, err := h.stats.Compute(ctx)
	if err != nil {
		return nil, apperrors.NewStatsQueryError(err)
	}
	h.logger.Info("statistics computed", map[string]interface{}{
		"total":  result.Total,
		"sent":   result.Sent,
		"failed": result.Failed,
	})
	return &Output{Stats: result}, nil
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
