package main

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"academy-notifications/internal/common/camunda"
	"academy-notifications/internal/common/config"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/observability"
	"academy-notifications/internal/maintenance"
	"academy-notifications/internal/pipeline"
	"academy-notifications/internal/stats"
	"academy-notifications/pkg/registry"

	cin "academy-notifications/internal/workers/notifications/cleanup-invalid-tokens"
	con "academy-notifications/internal/workers/notifications/cleanup-old-notifications"
	enq "academy-notifications/internal/workers/notifications/enqueue-notification"
	nst "academy-notifications/internal/workers/notifications/notification-stats"
	spn "academy-notifications/internal/workers/notifications/send-push-notification"
)

type workerDeps struct {
	processor *pipeline.Processor
	stats     *stats.Service
	retention *maintenance.RetentionSweeper
	tokens    *maintenance.TokenSweeper
}

type workerSet struct {
	client  *camunda.Client
	workers []*camunda.CamundaWorker
}

// startWorkers connects to the broker and opens one job worker per enabled
// task type.
func startWorkers(cfg *config.Config, reg *registry.ActivityRegistry, deps workerDeps, obs *observability.Observability, log logger.Logger) (*workerSet, error) {
	client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return nil, err
	}
	log.Info("Zeebe client connected successfully", map[string]interface{}{"broker": cfg.Camunda.BrokerAddress})

	set := &workerSet{client: client}
	open := func(taskType string, handler worker.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		set.workers = append(set.workers, camunda.NewWorker(
			client.GetClient(), taskType, wcfg, camunda.Instrument(taskType, obs, handler), log,
		))
	}

	if taskType := spn.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wc := spn.LoadConfig(reg.InputSchema(taskType))
		wc.Timeout = jobTimeout(cfg, taskType, wc.Timeout)
		open(taskType, spn.NewHandler(wc, deps.processor, log).Handle)
	}

	if taskType := enq.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wc := enq.LoadConfig(reg.InputSchema(taskType))
		wc.Timeout = jobTimeout(cfg, taskType, wc.Timeout)
		open(taskType, enq.NewHandler(wc, deps.processor, log).Handle)
	}

	if taskType := nst.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wc := nst.LoadConfig(reg.InputSchema(taskType))
		wc.Timeout = jobTimeout(cfg, taskType, wc.Timeout)
		open(taskType, nst.NewHandler(wc, deps.stats, log).Handle)
	}

	if taskType := con.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wc := con.LoadConfig(reg.InputSchema(taskType))
		wc.Timeout = jobTimeout(cfg, taskType, wc.Timeout)
		open(taskType, con.NewHandler(wc, deps.retention, log).Handle)
	}

	if taskType := cin.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wc := cin.LoadConfig(reg.InputSchema(taskType))
		wc.Timeout = jobTimeout(cfg, taskType, wc.Timeout)
		open(taskType, cin.NewHandler(wc, deps.tokens, log).Handle)
	}

	log.Info("workers registered", map[string]interface{}{"count": len(set.workers)})
	return set, nil
}

// jobTimeout bounds a handler by the job timeout configured for its task
// type, falling back to the handler default.
func jobTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if wc, ok := cfg.Workers[taskType]; ok && wc.Timeout > 0 {
		return config.GetDuration(wc.Timeout)
	}
	return fallback
}

func (s *workerSet) stop(ctx context.Context, log logger.Logger) {
	for _, w := range s.workers {
		w.Stop(ctx)
	}
	if err := s.client.Close(); err != nil {
		log.Error("error closing Zeebe client", map[string]interface{}{"error": err})
	}
}
