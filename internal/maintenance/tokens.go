package maintenance

import (
	"context"

	apperrors "academy-notifications/internal/common/errors"
	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
	"academy-notifications/internal/pipeline"
	"academy-notifications/internal/push"
)

// TokenSource lists users currently holding a push token.
type TokenSource interface {
	ListWithTokens(ctx context.Context) ([]models.UserProfile, error)
}

type TokenSweepResult struct {
	CheckedTokens int `json:"checkedTokens"`
	RemovedTokens int `json:"removedTokens"`
	FailedBatches int `json:"failedBatches,omitempty"`
}

// TokenSweeper dry-runs every stored token and clears the ones the gateway
// rejects as unregistered or invalid.
type TokenSweeper struct {
	users     TokenSource
	gateway   push.Gateway
	sanitizer *pipeline.Sanitizer
	batchSize int
	logger    logger.Logger
}

func NewTokenSweeper(users TokenSource, gateway push.Gateway, sanitizer *pipeline.Sanitizer, batchSize int, log logger.Logger) *TokenSweeper {
	if batchSize <= 0 {
		batchSize = pipeline.ValidationBatchSize
	}
	return &TokenSweeper{
		users:     users,
		gateway:   gateway,
		sanitizer: sanitizer,
		batchSize: batchSize,
		logger:    log.WithFields(map[string]interface{}{"component": "token-sweeper"}),
	}
}

// Sweep checks tokens batch by batch. A batch whose dry-run call fails is
// logged and skipped; its tokens are still counted as checked.
func (s *TokenSweeper) Sweep(ctx context.Context) (*TokenSweepResult, error) {
	users, err := s.users.ListWithTokens(ctx)
	if err != nil {
		return nil, apperrors.NewTokenSweepError(err)
	}

	holders := make([]models.Recipient, 0, len(users))
	for _, u := range users {
		if !u.HasToken() {
			continue
		}
		holders = append(holders, models.Recipient{UserID: u.ID, Token: u.PushToken, Name: u.DisplayName()})
	}

	result := &TokenSweepResult{CheckedTokens: len(holders)}
	s.logger.Info("checking push tokens", map[string]interface{}{"tokens": len(holders)})

	for i, batch := range pipeline.Chunk(holders, s.batchSize) {
		tokens := make([]string, len(batch))
		for j, r := range batch {
			tokens[j] = r.Token
		}

		outcomes, err := s.gateway.DryRun(ctx, tokens)
		if err != nil {
			result.FailedBatches++
			s.logger.Warn("token batch check failed", map[string]interface{}{
				"batch": i,
				"size":  len(batch),
				"error": err,
			})
			continue
		}

		var failures []pipeline.DeliveryFailure
		for j, o := range outcomes {
			if j >= len(batch) || o.Success || !o.Reason.RemovesToken() {
				continue
			}
			failures = append(failures, pipeline.DeliveryFailure{
				UserID:  batch[j].UserID,
				Token:   batch[j].Token,
				Reason:  o.Reason,
				Message: string(o.Reason),
				Detail:  o.Detail,
			})
		}

		removed, err := s.sanitizer.Sanitize(ctx, failures)
		result.RemovedTokens += removed
		if err != nil {
			s.logger.Warn("some invalid tokens could not be cleared", map[string]interface{}{"batch": i, "error": err})
		}
	}

	s.logger.Info("token sweep finished", map[string]interface{}{
		"checked": result.CheckedTokens,
		"removed": result.RemovedTokens,
		"skipped": result.FailedBatches,
	})
	return result, nil
}
