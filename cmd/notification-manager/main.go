// cmd/notification-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"academy-notifications/internal/alerting"
	"academy-notifications/internal/common/aws"
	"academy-notifications/internal/common/config"
	"academy-notifications/internal/common/database"
	"academy-notifications/internal/common/firebase"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/observability"
	"academy-notifications/internal/dispatcher"
	"academy-notifications/internal/history"
	"academy-notifications/internal/maintenance"
	"academy-notifications/internal/pipeline"
	"academy-notifications/internal/push"
	"academy-notifications/internal/repository/notification"
	"academy-notifications/internal/repository/user"
	"academy-notifications/internal/server"
	"academy-notifications/internal/stats"
	"academy-notifications/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, logger.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	log.Info("starting notification manager", map[string]interface{}{"version": cfg.App.Version})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	n := cfg.Notifications

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := notification.EnsureSchema(ctx, pg.DB, n.NotifyChannel); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("Redis connected successfully", nil)

	// --- Elasticsearch (optional) ---
	var historyIndex *history.Index
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		historyIndex = history.NewIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		if err := historyIndex.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("history index setup failed", zap.Error(err))
		}
		log.Info("Elasticsearch connected successfully", nil)
	}

	// --- Push gateway ---
	gateway, err := newGateway(ctx, cfg)
	if err != nil {
		zapLog.Fatal("push gateway setup failed", zap.Error(err))
	}
	log.Info("push gateway ready", map[string]interface{}{"provider": cfg.Push.Provider})

	// --- Stores and pipeline ---
	records := notification.NewStore(pg.DB)
	users := user.NewStore(pg.DB)

	statsService := stats.NewService(
		records,
		rdb.Client,
		time.Duration(n.StatsWindowDays)*24*time.Hour,
		config.GetDuration(n.StatsCacheTTL),
		log,
	)

	opts := []pipeline.Option{
		pipeline.WithClaims(pipeline.NewClaims(rdb.Client, config.GetDuration(n.ClaimTTL), log)),
		pipeline.WithBatchSize(n.SendBatchSize),
		pipeline.WithStatsCache(statsService),
	}
	if historyIndex != nil {
		opts = append(opts, pipeline.WithHistory(historyIndex))
	}
	if ses := cfg.Integrations.AWS.SES; ses.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client setup failed", zap.Error(err))
		}
		opts = append(opts, pipeline.WithAlerter(alerting.NewAlerter(sesClient, ses.FromEmail, ses.AdminEmails, log)))
	}

	processor := pipeline.NewProcessor(
		records,
		pipeline.NewResolver(users, log),
		pipeline.NewEngine(gateway, log),
		pipeline.NewSanitizer(users, "delivery", log),
		log,
		opts...,
	)

	var historyPurger maintenance.HistoryPurger
	if historyIndex != nil {
		historyPurger = historyIndex
	}
	retention := maintenance.NewRetentionSweeper(
		records,
		historyPurger,
		statsService,
		time.Duration(n.RetentionDays)*24*time.Hour,
		log,
	)
	tokenSweeper := maintenance.NewTokenSweeper(
		users,
		gateway,
		pipeline.NewSanitizer(users, "sweep", log),
		n.ValidationBatchSize,
		log,
	)

	// --- Scheduled sweeps ---
	if n.RetentionInterval > 0 {
		go maintenance.RunEvery(ctx, config.GetDuration(n.RetentionInterval), "retention-sweep", func(ctx context.Context) error {
			_, err := retention.SweepExpired(ctx)
			return err
		}, log)
	}
	if n.TokenSweepInterval > 0 {
		go maintenance.RunEvery(ctx, config.GetDuration(n.TokenSweepInterval), "token-sweep", func(ctx context.Context) error {
			_, err := tokenSweeper.Sweep(ctx)
			return err
		}, log)
	}

	// --- Record-created trigger ---
	var disp *dispatcher.Dispatcher
	if n.ListenerEnabled {
		pqListener := pg.NewListener(
			config.GetDuration(n.ListenerMinReconnect),
			config.GetDuration(n.ListenerMaxReconnect),
			func(ev pq.ListenerEventType, err error) {
				if err != nil {
					log.Warn("record listener connection event", map[string]interface{}{"event": int(ev), "error": err})
				}
			},
		)
		defer pqListener.Close()

		disp = dispatcher.New(notification.NewListener(pqListener, log), processor, n.NotifyChannel, n.MaxConcurrent, log)
		if err := disp.Initialize(ctx); err != nil {
			zapLog.Fatal("record listener setup failed", zap.Error(err))
		}
	}

	// --- Zeebe workers ---
	checks := []server.Check{
		{Name: "postgres", Probe: pg.Ping},
		{Name: "redis", Probe: rdb.Ping},
	}
	if esClient != nil {
		checks = append(checks, server.Check{Name: "elasticsearch", Probe: esClient.Ping})
	}

	var workers *workerSet
	if cfg.Camunda.Enabled {
		reg, err := registry.Load(cfg.Registry.Path)
		if err == nil {
			err = reg.Validate()
		}
		if err != nil {
			zapLog.Fatal("activity registry invalid", zap.Error(err))
		}
		workers, err = startWorkers(cfg, reg, workerDeps{
			processor: processor,
			stats:     statsService,
			retention: retention,
			tokens:    tokenSweeper,
		}, obs, log)
		if err != nil {
			zapLog.Fatal("zeebe workers failed to start", zap.Error(err))
		}
		checks = append(checks, server.Check{Name: "zeebe", Probe: workers.client.HealthCheck})
	}

	// --- HTTP surface ---
	deps := server.Deps{
		Retention:    retention,
		Tokens:       tokenSweeper,
		Stale:        records,
		Stats:        statsService,
		Checks:       checks,
		StaleMinutes: n.StaleAfterMinutes,
	}
	if historyIndex != nil {
		deps.History = historyIndex
	}
	srv := server.New(cfg.Server.Address, deps, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server failed", map[string]interface{}{"error": err})
			stop()
		}
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, stopping", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err})
	}
	if workers != nil {
		workers.stop(shutdownCtx, log)
	}
	if disp != nil {
		disp.Cleanup()
	}
	stop()

	log.Info("notification manager stopped", nil)
}

// newGateway builds the push gateway for the configured provider.
func newGateway(ctx context.Context, cfg *config.Config) (push.Gateway, error) {
	hints := push.Hints{
		AndroidIcon:  cfg.Push.Android.Icon,
		AndroidColor: cfg.Push.Android.Color,
		AndroidSound: cfg.Push.Android.Sound,
		APNSSound:    cfg.Push.APNS.Sound,
		APNSBadge:    cfg.Push.APNS.Badge,
	}

	switch cfg.Push.Provider {
	case "sns":
		client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, err
		}
		return push.NewSNSGateway(client, hints), nil
	case "fcm":
		client, err := firebase.NewMessagingClient(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		return push.NewFCMGateway(client, hints), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Push.Provider)
	}
}
