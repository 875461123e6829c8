package user

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"academy-notifications/internal/models"
)

const profileColumns = `id, name, email, push_token, notifications_enabled`

// Store reads user profiles. Clearing a stale push token is its only write.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListAll(ctx context.Context) ([]models.UserProfile, error) {
	return s.list(ctx, `SELECT `+profileColumns+` FROM users ORDER BY created_at ASC, id ASC`)
}

// ListWithTokens returns only users holding a non-blank push token.
func (s *Store) ListWithTokens(ctx context.Context) ([]models.UserProfile, error) {
	return s.list(ctx, `SELECT `+profileColumns+` FROM users
		WHERE push_token IS NOT NULL AND btrim(push_token) <> ''
		ORDER BY created_at ASC, id ASC`)
}

// GetByIDs returns the profiles that exist, keyed by id. Unknown ids are
// simply absent from the map.
func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]models.UserProfile, error) {
	profiles := make(map[string]models.UserProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	users, err := s.list(ctx, `SELECT `+profileColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		profiles[u.ID] = u
	}
	return profiles, nil
}

// ClearPushToken removes the user's token only while it still equals token,
// so a token re-registered in the meantime survives. It reports whether a
// token was cleared.
func (s *Store) ClearPushToken(ctx context.Context, userID, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET push_token = NULL WHERE id = $1 AND push_token = $2`, userID, token)
	if err != nil {
		return false, fmt.Errorf("clear push token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear push token: %w", err)
	}
	return n > 0, nil
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.UserProfile
	for rows.Next() {
		var (
			u       models.UserProfile
			token   sql.NullString
			enabled sql.NullBool
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &token, &enabled); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.PushToken = token.String
		if enabled.Valid {
			v := enabled.Bool
			u.NotificationsEnabled = &v
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
