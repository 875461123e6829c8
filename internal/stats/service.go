package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
	"academy-notifications/internal/repository/notification"
)

const cacheKeyPrefix = "notification:stats:"

// RecordQuerier is the windowed read of the record store.
type RecordQuerier interface {
	QueryByTimeWindow(ctx context.Context, field models.TimeField, w notification.Window) ([]models.NotificationRecord, error)
}

type Service struct {
	records RecordQuerier
	cache   redis.Cmdable
	window  time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  logger.Logger
}

// NewService computes statistics over the trailing window of request
// timestamps. A nil cache or zero ttl disables caching.
func NewService(records RecordQuerier, cache redis.Cmdable, window, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		records: records,
		cache:   cache,
		window:  window,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.WithFields(map[string]interface{}{"component": "stats"}),
	}
}

func (s *Service) cacheKey() string {
	return fmt.Sprintf("%s%dh", cacheKeyPrefix, int(s.window.Hours()))
}

func (s *Service) caching() bool {
	return s.cache != nil && s.ttl > 0
}

// Compute returns statistics for records with sentAt inside the trailing
// window. Cache faults are logged and fall through to the store.
func (s *Service) Compute(ctx context.Context) (*Stats, error) {
	if s.caching() {
		if cached, ok := s.fromCache(ctx); ok {
			return cached, nil
		}
	}

	start := s.now().Add(-s.window)
	records, err := s.records.QueryByTimeWindow(ctx, models.FieldSentAt, notification.Window{Start: start})
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}

	result := Aggregate(records)
	s.logger.Debug("statistics computed", map[string]interface{}{
		"records": result.Total,
		"since":   start.Format(time.RFC3339),
	})

	if s.caching() {
		s.store(ctx, &result)
	}
	return &result, nil
}

// Invalidate drops the cached statistics so the next Compute reads the store.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey()).Err(); err != nil {
		s.logger.Warn("stats cache invalidate failed", map[string]interface{}{"error": err})
	}
}

func (s *Service) fromCache(ctx context.Context) (*Stats, bool) {
	raw, err := s.cache.Get(ctx, s.cacheKey()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("stats cache read failed", map[string]interface{}{"error": err})
		}
		return nil, false
	}

	var cached Stats
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.logger.Warn("stats cache entry corrupt", map[string]interface{}{"error": err})
		return nil, false
	}
	if cached.ByType == nil {
		cached.ByType = make(map[string]int)
	}
	return &cached, true
}

func (s *Service) store(ctx context.Context, result *Stats) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("stats cache encode failed", map[string]interface{}{"error": err})
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("stats cache write failed", map[string]interface{}{"error": err})
	}
}
