package cleanupinvalidtokens

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
	"academy-notifications/internal/common/validation"
	"academy-notifications/internal/maintenance"
)

const (
	TaskType = "cleanup-invalid-tokens"
)

type TokenSweeper interface {
	Sweep(ctx context.Context) (*maintenance.TokenSweepResult, error)
}

type Handler struct {
	config  *Config
	sweeper TokenSweeper
	logger  logger.Logger
}

func NewHandler(config *Config, sweeper TokenSweeper, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		sweeper: sweeper,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	if result, err := validation.ValidateJSON(job.Variables, h.config.InputSchema); err != nil {
		h.failJob(ctx, client, job, apperrors.NewInputValidationError(err.Error()))
		return
	} else if !result.Valid {
		h.failJob(ctx, client, job, apperrors.NewInputValidationError(result.Error()))
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

func (h *Handler) Execute(ctx context.Context, _ *Input) (*Output, error) {
	res, err := h.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	if res.FailedBatches > 0 {
		h.logger.Warn("some token batches could not be checked", map[string]interface{}{
			"failedBatches": res.FailedBatches,
		})
	}
	return &Output{
		Success:       true,
		CheckedTokens: res.CheckedTokens,
		RemovedTokens: res.RemovedTokens,
		FailedBatches: res.FailedBatches,
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
