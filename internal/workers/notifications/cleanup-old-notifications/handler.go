package cleanupoldnotifications

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
)

const (
	TaskType = "cleanup-old-notifications"

	noOldNotificationsMessage = "No old notifications to clean up"
)

type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	SweepExpired(ctx context.Context) (int, error)
}

type Handler struct {
	config  *Config
	sweeper Sweeper
	now     func() time.Time
	logger  logger.Logger
}

func NewHandler(config *Config, sweeper Sweeper, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		sweeper: sweeper,
		now:     time.Now,
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

// Execute deletes records older than the requested retention, or the
// configured one when the input leaves it unset.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		deleted int
		err     error
		cutoff  string
	)
	if input != nil && input.RetentionDays > 0 {
		at := h.now().Add(-time.Duration(input.RetentionDays) * 24 * time.Hour)
		cutoff = at.UTC().Format(time.RFC3339)
		deleted, err = h.sweeper.Sweep(ctx, at)
	} else {
		deleted, err = h.sweeper.SweepExpired(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := &Output{Success: true, DeletedCount: deleted, Cutoff: cutoff}
	if deleted == 0 {
		out.Message = noOldNotificationsMessage
	}
	return out, nil
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
