package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"

	"academy-notifications/internal/common/config"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/observability"
)

const (
	defaultMaxJobsActive = 5
	defaultJobTimeout    = 30 * time.Second
)

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Zero values in cfg fall back to
// five active jobs and a 30s timeout.
func NewWorker(client zbc.Client, taskType string, cfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) *CamundaWorker {
	maxJobs := cfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobsActive
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(maxJobs).
		Timeout(timeout).
		Name(taskType + "-worker").
		Open()

	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": maxJobs,
		"timeout":       timeout.String(),
	})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for active jobs, bounded by ctx.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", nil)
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker did not stop in time", nil)
	}
}

// Instrument wraps handler in a span and records its duration with obs.
func Instrument(taskType string, obs *observability.Observability, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		ctx, span := obs.StartSpan(context.Background(), "job."+taskType,
			attribute.String("taskType", taskType),
			attribute.Int64("jobKey", job.Key),
		)
		defer span.End()

		start := time.Now()
		handler(client, job)
		obs.RecordJobDuration(ctx, taskType, time.Since(start), "handled")
		obs.RecordJobProcessed(ctx, taskType, "handled")
	}
}
