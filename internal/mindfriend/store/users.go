package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is a messaging-platform user as first observed. Display attributes
// are optional and are never updated after the first insert.
type User struct {
	ID        string
	Username  sql.NullString
	FirstName sql.NullString
	LastName  sql.NullString
	CreatedAt time.Time
}

// SaveUser inserts a user record if one does not already exist.
// Re-insertion with the same id is a no-op: first-write wins, display
// attributes are not updated on conflict.
func (s *Store) SaveUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		return fmt.Errorf("save user: empty user id")
	}

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, username, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.FirstName, user.LastName, createdAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}

	return nil
}

// GetUser retrieves a user by id. Returns sql.ErrNoRows wrapped when the
// user has never been seen.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	user := &User{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, first_name, last_name, created_at
		FROM users
		WHERE user_id = ?
	`, id).Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("malformed created_at for user %s: %w", id, err)
	}
	user.CreatedAt = t

	return user, nil
}
