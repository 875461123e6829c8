package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"academy-notifications/internal/common/logger"
)

var ErrAlreadyClaimed = errors.New("notification already claimed")

const claimKeyPrefix = "notification:claim:"

// Claims keeps two triggers for the same record (the insert notification
// and a workflow job) from delivering it twice. Redis errors fail open.
type Claims struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewClaims(rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Claims {
	return &Claims{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "claims"}),
	}
}

func (c *Claims) Acquire(ctx context.Context, notificationID string) error {
	ok, err := c.rdb.SetNX(ctx, claimKeyPrefix+notificationID, time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		c.logger.Warn("claim unavailable, processing without it", map[string]interface{}{
			"notificationId": notificationID,
			"error":          err,
		})
		return nil
	}
	if !ok {
		return ErrAlreadyClaimed
	}
	return nil
}

func (c *Claims) Release(ctx context.Context, notificationID string) {
	if err := c.rdb.Del(ctx, claimKeyPrefix+notificationID).Err(); err != nil {
		c.logger.Warn("failed to release claim", map[string]interface{}{
			"notificationId": notificationID,
			"error":          err,
		})
	}
}
