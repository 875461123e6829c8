package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"academy-notifications/internal/common/logger"
)

const defaultPingInterval = 90 * time.Second

// PQListener is the subset of *pq.Listener the subscription uses.
type PQListener interface {
	Listen(channel string) error
	Unlisten(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
}

// ChangeHandler is called once per announced record id. An empty id means
// the connection was re-established and announcements may have been missed.
type ChangeHandler func(ctx context.Context, id string)

type Listener struct {
	pq           PQListener
	logger       logger.Logger
	pingInterval time.Duration
}

func NewListener(l PQListener, log logger.Logger) *Listener {
	return &Listener{
		pq:           l,
		logger:       log.WithFields(map[string]interface{}{"component": "record_listener"}),
		pingInterval: defaultPingInterval,
	}
}

// Subscribe starts delivering record-created announcements on channel to
// onChange until ctx ends or the returned unsubscribe func is called.
func (l *Listener) Subscribe(ctx context.Context, channel string, onChange ChangeHandler) (func(), error) {
	if err := l.pq.Listen(channel); err != nil {
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.loop(subCtx, channel, onChange)
	}()

	l.logger.Info("subscribed to record announcements", map[string]interface{}{"channel": channel})

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			if err := l.pq.Unlisten(channel); err != nil {
				l.logger.Warn("unlisten failed", map[string]interface{}{"channel": channel, "error": err})
			}
			l.logger.Info("unsubscribed from record announcements", map[string]interface{}{"channel": channel})
		})
	}, nil
}

func (l *Listener) loop(ctx context.Context, channel string, onChange ChangeHandler) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	notifications := l.pq.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				l.logger.Warn("notification channel closed", map[string]interface{}{"channel": channel})
				return
			}
			if n == nil {
				l.logger.Warn("listener reconnected", map[string]interface{}{"channel": channel})
				onChange(ctx, "")
				continue
			}
			if n.Channel != channel {
				continue
			}
			onChange(ctx, n.Extra)
		case <-ticker.C:
			if err := l.pq.Ping(); err != nil {
				l.logger.Warn("listener ping failed", map[string]interface{}{"error": err})
			}
		}
	}
}
