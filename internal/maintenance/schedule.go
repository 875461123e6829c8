package maintenance

import (
	"context"
	"fmt"
	"time"

	"academy-notifications/internal/common/logger"
)

// RunEvery calls task on every tick of interval until ctx is done. A failing
// or panicking run is logged and the next tick proceeds normally.
func RunEvery(ctx context.Context, interval time.Duration, name string, task func(context.Context) error, log logger.Logger) {
	if interval <= 0 {
		return
	}
	log = log.WithFields(map[string]interface{}{"task": name, "interval": interval.String()})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("scheduled task started", nil)
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduled task stopped", nil)
			return
		case <-ticker.C:
			if err := runOnce(ctx, task); err != nil {
				log.Error("scheduled task failed", map[string]interface{}{"error": err})
			}
		}
	}
}

func runOnce(ctx context.Context, task func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}
