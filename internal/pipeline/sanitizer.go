package pipeline

import (
	"context"
	"errors"
	"fmt"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/common/metrics"
)

// TokenClearer clears a user's stored token if it still equals token.
// It reports whether a token was actually removed.
type TokenClearer interface {
	ClearPushToken(ctx context.Context, userID, token string) (bool, error)
}

type Sanitizer struct {
	users  TokenClearer
	source string
	logger logger.Logger
}

// NewSanitizer builds a sanitizer; source labels the removal metric
// (delivery or sweep).
func NewSanitizer(users TokenClearer, source string, log logger.Logger) *Sanitizer {
	return &Sanitizer{
		users:  users,
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "token-sanitizer"}),
	}
}

// Sanitize clears the stored token of every failure classified as
// unregistered or invalid and returns how many were removed. Other failures
// keep their token. Clearing an already absent token is not an error.
func (s *Sanitizer) Sanitize(ctx context.Context, failures []DeliveryFailure) (int, error) {
	type key struct{ userID, token string }
	seen := make(map[key]struct{}, len(failures))

	var (
		removed int
		errs    []error
	)
	for _, f := range failures {
		if !f.Reason.RemovesToken() {
			if f.UserID != "" {
				s.logger.Debug("keeping token after non-permanent failure", map[string]interface{}{
					"userId": f.UserID,
					"reason": string(f.Reason),
				})
			}
			continue
		}
		if f.UserID == "" || f.Token == "" {
			continue
		}
		k := key{f.UserID, f.Token}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		cleared, err := s.users.ClearPushToken(ctx, f.UserID, f.Token)
		if err != nil {
			s.logger.Error("failed to clear push token", map[string]interface{}{
				"userId": f.UserID,
				"error":  err,
			})
			errs = append(errs, fmt.Errorf("clear token for %s: %w", f.UserID, err))
			continue
		}
		if cleared {
			removed++
			metrics.TokensRemoved.WithLabelValues(s.source).Inc()
			s.logger.Info("removed invalid push token", map[string]interface{}{
				"userId": f.UserID,
				"reason": string(f.Reason),
			})
		}
	}
	return removed, errors.Join(errs...)
}
