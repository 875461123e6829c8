package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/models"
)

var ErrNoEligibleRecipients = errors.New("no eligible recipients")

// UserReader is the read side of the user profile store.
type UserReader interface {
	ListAll(ctx context.Context) ([]models.UserProfile, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.UserProfile, error)
}

type Resolver struct {
	users  UserReader
	logger logger.Logger
}

func NewResolver(users UserReader, log logger.Logger) *Resolver {
	return &Resolver{
		users:  users,
		logger: log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

// Resolve returns the eligible recipients for req in a deterministic order:
// store order for broadcasts, first-occurrence selection order otherwise.
// Ineligible and unknown users are dropped silently.
func (r *Resolver) Resolve(ctx context.Context, req models.NotificationRequest) ([]models.Recipient, error) {
	var (
		recipients []models.Recipient
		err        error
	)
	if req.SendToAll {
		recipients, err = r.resolveAll(ctx)
	} else {
		recipients, err = r.resolveSelected(ctx, req.SelectedUserIDs)
	}
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoEligibleRecipients
	}
	return recipients, nil
}

func (r *Resolver) resolveAll(ctx context.Context) ([]models.Recipient, error) {
	users, err := r.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	recipients := make([]models.Recipient, 0, len(users))
	for _, u := range users {
		if u.Eligible() {
			recipients = append(recipients, toRecipient(u))
		}
	}

	r.logger.Debug("resolved broadcast recipients", map[string]interface{}{
		"scanned":  len(users),
		"eligible": len(recipients),
	})
	return recipients, nil
}

func (r *Resolver) resolveSelected(ctx context.Context, selected []string) ([]models.Recipient, error) {
	ids := Dedupe(selected)
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := r.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	recipients := make([]models.Recipient, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok || !u.Eligible() {
			continue
		}
		recipients = append(recipients, toRecipient(u))
	}

	r.logger.Debug("resolved selected recipients", map[string]interface{}{
		"selected": len(selected),
		"unique":   len(ids),
		"eligible": len(recipients),
	})
	return recipients, nil
}

// Dedupe drops blank and repeated ids, keeping the first occurrence.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toRecipient(u models.UserProfile) models.Recipient {
	return models.Recipient{
		UserID: u.ID,
		Token:  u.PushToken,
		Name:   u.DisplayName(),
	}
}
