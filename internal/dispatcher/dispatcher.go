package dispatcher

import (
	"context"
	"errors"
	"sync"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/pipeline"
	"academy-notifications/internal/repository/notification"
)

var ErrAlreadyInitialized = errors.New("dispatcher already initialized")

// Subscriber delivers record-created announcements.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, onChange notification.ChangeHandler) (func(), error)
}

// Processor runs the delivery pipeline for one record.
type Processor interface {
	Process(ctx context.Context, id string) (*pipeline.Result, error)
}

// Dispatcher owns the record-created subscription and runs one pipeline per
// announced record, at most maxConcurrent at a time.
type Dispatcher struct {
	subscriber Subscriber
	processor  Processor
	channel    string
	slots      chan struct{}
	logger     logger.Logger

	mu          sync.Mutex
	wg          sync.WaitGroup
	unsubscribe func()
	cancel      context.CancelFunc
}

func New(subscriber Subscriber, processor Processor, channel string, maxConcurrent int, log logger.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		subscriber: subscriber,
		processor:  processor,
		channel:    channel,
		slots:      make(chan struct{}, maxConcurrent),
		logger:     log.WithFields(map[string]interface{}{"component": "dispatcher", "channel": channel}),
	}
}

// Initialize subscribes to the record-created channel. Call Cleanup to stop.
func (d *Dispatcher) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsubscribe != nil {
		return ErrAlreadyInitialized
	}

	runCtx, cancel := context.WithCancel(ctx)
	unsubscribe, err := d.subscriber.Subscribe(runCtx, d.channel, d.dispatch)
	if err != nil {
		cancel()
		return err
	}
	d.unsubscribe = unsubscribe
	d.cancel = cancel
	d.logger.Info("dispatcher initialized", map[string]interface{}{"maxConcurrent": cap(d.slots)})
	return nil
}

// Cleanup ends the subscription and waits for in-flight deliveries to finish.
// It is safe to call more than once.
func (d *Dispatcher) Cleanup() {
	d.mu.Lock()
	unsubscribe, cancel := d.unsubscribe, d.cancel
	d.unsubscribe, d.cancel = nil, nil
	d.mu.Unlock()

	if unsubscribe == nil {
		return
	}
	unsubscribe()
	d.wg.Wait()
	cancel()
	d.logger.Info("dispatcher stopped", nil)
}

func (d *Dispatcher) dispatch(ctx context.Context, id string) {
	if id == "" {
		d.logger.Warn("record announcements may have been missed while reconnecting", nil)
		return
	}

	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		d.logger.Warn("dropping announcement during shutdown", map[string]interface{}{"notificationId": id})
		return
	}

	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.slots
			d.wg.Done()
		}()
		// A started delivery runs to completion even if the subscription ends.
		d.run(context.WithoutCancel(ctx), id)
	}()
}

func (d *Dispatcher) run(ctx context.Context, id string) {
	res, err := d.processor.Process(ctx, id)
	if err != nil {
		d.logger.Error("notification processing failed", map[string]interface{}{
			"notificationId": id,
			"error":          err,
		})
		return
	}
	if res.Skipped {
		return
	}
	d.logger.Info("notification processed", map[string]interface{}{
		"notificationId": id,
		"status":         string(res.Status),
		"success":        res.SuccessCount,
		"failure":        res.FailureCount,
	})
}
