package maintenance

import (
	"context"
	"time"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
	"academy-notifications/internal/models"
	"academy-notifications/internal/pipeline"
	"academy-notifications/internal/repository/notification"
)

const deleteChunkSize = 500

// RecordPurger is the slice of the record store the retention sweep needs.
type RecordPurger interface {
	QueryByTimeWindow(ctx context.Context, field models.TimeField, w notification.Window) ([]models.NotificationRecord, error)
	Delete(ctx context.Context, ids []string) (int64, error)
}

// HistoryPurger removes swept ids from the search index.
type HistoryPurger interface {
	Delete(ctx context.Context, ids []string) (int, error)
}

// CacheInvalidator drops derived data that a sweep makes stale.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type RetentionSweeper struct {
	records RecordPurger
	history HistoryPurger
	stats   CacheInvalidator
	maxAge  time.Duration
	now     func() time.Time
	logger  logger.Logger
}

// NewRetentionSweeper builds a sweeper for records older than maxAge.
// history and stats may be nil.
func NewRetentionSweeper(records RecordPurger, history HistoryPurger, stats CacheInvalidator, maxAge time.Duration, log logger.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		records: records,
		history: history,
		stats:   stats,
		maxAge:  maxAge,
		now:     time.Now,
		logger:  log.WithFields(map[string]interface{}{"component": "retention-sweeper"}),
	}
}

// SweepExpired deletes everything requested more than maxAge ago.
func (s *RetentionSweeper) SweepExpired(ctx context.Context) (int, error) {
	return s.Sweep(ctx, s.now().Add(-s.maxAge))
}

// Sweep deletes every record whose sentAt is strictly before cutoff,
// whatever its status, and returns how many were deleted.
func (s *RetentionSweeper) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	recs, err := s.records.QueryByTimeWindow(ctx, models.FieldSentAt, notification.Window{End: cutoff})
	if err != nil {
		return 0, apperrors.NewRetentionSweepError(err)
	}
	if len(recs) == 0 {
		s.logger.Info("no old notifications to clean up", map[string]interface{}{"cutoff": cutoff.Format(time.RFC3339)})
		return 0, nil
	}

	ids := make([]string, len(recs))
	pending := 0
	for i, rec := range recs {
		ids[i] = rec.ID
		if rec.Status == models.StatusPending {
			pending++
		}
	}
	if pending > 0 {
		s.logger.Warn("deleting records that never reached a terminal state", map[string]interface{}{"count": pending})
	}

	var deleted int64
	for _, chunk := range pipeline.Chunk(ids, deleteChunkSize) {
		n, err := s.records.Delete(ctx, chunk)
		deleted += n
		if err != nil {
			metrics.RecordsDeleted.Add(float64(deleted))
			return int(deleted), apperrors.NewRetentionSweepError(err)
		}
	}
	metrics.RecordsDeleted.Add(float64(deleted))

	if s.history != nil {
		if _, err := s.history.Delete(ctx, ids); err != nil {
			s.logger.Warn("history purge failed", map[string]interface{}{"error": err, "count": len(ids)})
		}
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}

	s.logger.Info("old notifications cleaned up", map[string]interface{}{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	return int(deleted), nil
}
