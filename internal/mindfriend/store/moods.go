package store

import (
	"context"
	"fmt"
	"time"
)

// MoodEntry is a free-text mood label reported by a user.
type MoodEntry struct {
	ID        int64
	UserID    string
	Mood      string
	Timestamp time.Time
}

// MoodCount pairs a mood label with the number of times it was reported.
type MoodCount struct {
	Mood  string
	Count int
}

// MoodStats holds mood frequency and the most recent entries for a user.
type MoodStats struct {
	// Frequency is grouped by the exact label string: "Happy" and "happy"
	// are distinct entries.
	Frequency []MoodCount
	// Recent holds the last DefaultHistoryLimit entries, oldest first.
	Recent []MoodEntry
}

// SaveMood appends a mood entry for the given user. The label is stored
// verbatim; validation (non-empty after trimming) is the caller's concern.
func (s *Store) SaveMood(ctx context.Context, userID, mood string, ts time.Time) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moods (user_id, mood, timestamp)
		VALUES (?, ?, ?)
	`, userID, mood, ts.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save mood for %s: %w", userID, err)
	}
	return nil
}

// MoodStats returns mood frequency counts and the last five entries
// (oldest first) for the user. No entries yields empty slices.
func (s *Store) MoodStats(ctx context.Context, userID string) (MoodStats, error) {
	var stats MoodStats

	rows, err := s.db.QueryContext(ctx, `
		SELECT mood, COUNT(*)
		FROM moods
		WHERE user_id = ?
		GROUP BY mood
		ORDER BY mood
	`, userID)
	if err != nil {
		return MoodStats{}, fmt.Errorf("failed to query mood frequency for %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var mc MoodCount
		if err := rows.Scan(&mc.Mood, &mc.Count); err != nil {
			return MoodStats{}, fmt.Errorf("failed to scan mood count: %w", err)
		}
		stats.Frequency = append(stats.Frequency, mc)
	}
	if err := rows.Err(); err != nil {
		return MoodStats{}, fmt.Errorf("error iterating mood counts: %w", err)
	}

	recent, err := s.recentMoods(ctx, userID, DefaultHistoryLimit)
	if err != nil {
		return MoodStats{}, err
	}
	stats.Recent = recent

	return stats, nil
}

// recentMoods returns the last limit mood entries, reversed to oldest first.
func (s *Store) recentMoods(ctx context.Context, userID string, limit int) ([]MoodEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, mood, timestamp
		FROM moods
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent moods for %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []MoodEntry
	for rows.Next() {
		var entry MoodEntry
		var ts string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Mood, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan mood entry: %w", err)
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("malformed mood timestamp %q: %w", ts, err)
		}
		entry.Timestamp = t
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moods: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}
