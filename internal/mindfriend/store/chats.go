package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultHistoryLimit is the number of chat turns returned when the caller
// does not ask for a specific window size.
const DefaultHistoryLimit = 5

// ChatTurn is one user message paired with the generated response.
type ChatTurn struct {
	ID        int64
	UserID    string
	Message   string
	Response  string
	Timestamp time.Time
}

// ActivityStats summarizes a user's chat cadence.
type ActivityStats struct {
	TotalMessages int
	// DaysActive is the whole-day span between the first and last turn,
	// inclusive. Any non-empty history counts as at least one day, even
	// when every message landed within a single minute.
	DaysActive    int
	AveragePerDay float64
}

// SaveChatTurn appends a (message, response) pair for the given user.
func (s *Store) SaveChatTurn(ctx context.Context, userID, message, response string, ts time.Time) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (user_id, message, response, timestamp)
		VALUES (?, ?, ?, ?)
	`, userID, message, response, ts.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save chat turn for %s: %w", userID, err)
	}
	return nil
}

// LastChatTurns returns the most recent limit turns for the user, oldest
// first. A limit of zero or less falls back to DefaultHistoryLimit. An
// empty history yields an empty slice, not an error.
func (s *Store) LastChatTurns(ctx context.Context, userID string, limit int) ([]ChatTurn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, response, timestamp
		FROM chat_turns
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat turns for %s: %w", userID, err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var turn ChatTurn
		var ts string
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.Message, &turn.Response, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("malformed chat turn timestamp %q: %w", ts, err)
		}
		turn.Timestamp = t
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat turns: %w", err)
	}

	// The query returns newest first; reverse for presentation.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// ActivityStats computes total message count, active-day span, and average
// messages per day for the user. A user with no turns gets all zeroes.
func (s *Store) ActivityStats(ctx context.Context, userID string) (ActivityStats, error) {
	var stats ActivityStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_turns WHERE user_id = ?
	`, userID).Scan(&stats.TotalMessages)
	if err != nil {
		return ActivityStats{}, fmt.Errorf("failed to count chat turns for %s: %w", userID, err)
	}

	if stats.TotalMessages == 0 {
		return stats, nil
	}

	var minTS, maxTS string
	err = s.db.QueryRowContext(ctx, `
		SELECT MIN(timestamp), MAX(timestamp) FROM chat_turns WHERE user_id = ?
	`, userID).Scan(&minTS, &maxTS)
	if err != nil {
		return ActivityStats{}, fmt.Errorf("failed to get timestamp range for %s: %w", userID, err)
	}

	first, err := time.Parse(timeLayout, minTS)
	if err != nil {
		return ActivityStats{}, fmt.Errorf("malformed earliest timestamp %q: %w", minTS, err)
	}
	last, err := time.Parse(timeLayout, maxTS)
	if err != nil {
		return ActivityStats{}, fmt.Errorf("malformed latest timestamp %q: %w", maxTS, err)
	}

	// Whole-day span, floored, inclusive of the first day. Any history at
	// all counts as one active day.
	days := int(last.Sub(first).Hours()/24) + 1
	if days < 1 {
		days = 1
	}

	stats.DaysActive = days
	stats.AveragePerDay = float64(stats.TotalMessages) / float64(days)

	return stats, nil
}
