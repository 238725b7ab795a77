package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/mindfriend/mindfriend/internal/mindfriend/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "mindfriend-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func saveTestUser(t *testing.T, s *store.Store, id string) {
	t.Helper()
	if err := s.SaveUser(context.Background(), &store.User{ID: id}); err != nil {
		t.Fatalf("SaveUser(%s): %v", id, err)
	}
}

// --- Users ---

func TestSaveUser_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &store.User{
		ID:        "u1",
		Username:  sql.NullString{String: "alice", Valid: true},
		FirstName: sql.NullString{String: "Alice", Valid: true},
	}
	if err := s.SaveUser(ctx, first); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	// A second insert with different attributes must not overwrite.
	second := &store.User{
		ID:       "u1",
		Username: sql.NullString{String: "someone-else", Valid: true},
	}
	if err := s.SaveUser(ctx, second); err != nil {
		t.Fatalf("SaveUser (again): %v", err)
	}

	got, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username.String != "alice" {
		t.Errorf("Username: got %q, want %q (first write wins)", got.Username.String, "alice")
	}
	if got.FirstName.String != "Alice" {
		t.Errorf("FirstName: got %q, want %q", got.FirstName.String, "Alice")
	}
}

func TestSaveUser_EmptyID(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveUser(context.Background(), &store.User{}); err == nil {
		t.Fatal("expected error for empty user id, got nil")
	}
}

// --- Chat turns ---

func TestLastChatTurns_WindowAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	for i := 1; i <= 7; i++ {
		msg := fmt.Sprintf("msg-%d", i)
		resp := fmt.Sprintf("resp-%d", i)
		if err := s.SaveChatTurn(ctx, "u1", msg, resp, time.Now()); err != nil {
			t.Fatalf("SaveChatTurn(%d): %v", i, err)
		}
	}

	turns, err := s.LastChatTurns(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("LastChatTurns: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}

	// The window is T3..T7, oldest first.
	for i, turn := range turns {
		want := fmt.Sprintf("msg-%d", i+3)
		if turn.Message != want {
			t.Errorf("turn[%d].Message: got %q, want %q", i, turn.Message, want)
		}
	}
}

func TestLastChatTurns_Empty(t *testing.T) {
	s := newTestStore(t)

	turns, err := s.LastChatTurns(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("LastChatTurns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
}

func TestLastChatTurns_DefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	for i := 1; i <= 8; i++ {
		if err := s.SaveChatTurn(ctx, "u1", fmt.Sprintf("m%d", i), "r", time.Now()); err != nil {
			t.Fatalf("SaveChatTurn: %v", err)
		}
	}

	turns, err := s.LastChatTurns(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("LastChatTurns: %v", err)
	}
	if len(turns) != store.DefaultHistoryLimit {
		t.Errorf("expected default limit %d, got %d", store.DefaultHistoryLimit, len(turns))
	}
}

func TestChatTurn_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := s.SaveChatTurn(ctx, "u1", "how are you?", "doing great!", ts); err != nil {
		t.Fatalf("SaveChatTurn: %v", err)
	}

	turns, err := s.LastChatTurns(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("LastChatTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Message != "how are you?" {
		t.Errorf("Message: got %q", turns[0].Message)
	}
	if turns[0].Response != "doing great!" {
		t.Errorf("Response: got %q", turns[0].Response)
	}
	if !turns[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", turns[0].Timestamp, ts)
	}
}

// --- Activity stats ---

func TestActivityStats_NoTurns(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.ActivityStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ActivityStats: %v", err)
	}
	if stats.TotalMessages != 0 || stats.DaysActive != 0 || stats.AveragePerDay != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
}

func TestActivityStats_SingleTurn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	if err := s.SaveChatTurn(ctx, "u1", "hi", "hello", time.Now()); err != nil {
		t.Fatalf("SaveChatTurn: %v", err)
	}

	stats, err := s.ActivityStats(ctx, "u1")
	if err != nil {
		t.Fatalf("ActivityStats: %v", err)
	}
	if stats.TotalMessages != 1 {
		t.Errorf("TotalMessages: got %d, want 1", stats.TotalMessages)
	}
	if stats.DaysActive != 1 {
		t.Errorf("DaysActive: got %d, want 1", stats.DaysActive)
	}
	if stats.AveragePerDay != 1.0 {
		t.Errorf("AveragePerDay: got %f, want 1.0", stats.AveragePerDay)
	}
}

func TestActivityStats_TwoDaySpan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	timestamps := []time.Time{
		base,
		base.Add(2 * time.Hour),
		base.Add(25 * time.Hour),
		base.Add(26 * time.Hour),
	}
	for i, ts := range timestamps {
		if err := s.SaveChatTurn(ctx, "u1", fmt.Sprintf("m%d", i), "r", ts); err != nil {
			t.Fatalf("SaveChatTurn(%d): %v", i, err)
		}
	}

	stats, err := s.ActivityStats(ctx, "u1")
	if err != nil {
		t.Fatalf("ActivityStats: %v", err)
	}
	if stats.TotalMessages != 4 {
		t.Errorf("TotalMessages: got %d, want 4", stats.TotalMessages)
	}
	if stats.DaysActive != 2 {
		t.Errorf("DaysActive: got %d, want 2", stats.DaysActive)
	}
	if math.Abs(stats.AveragePerDay-2.0) > 1e-9 {
		t.Errorf("AveragePerDay: got %f, want 2.0", stats.AveragePerDay)
	}
}

func TestActivityStats_SameMinuteIsOneDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := s.SaveChatTurn(ctx, "u1", "m", "r", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("SaveChatTurn: %v", err)
		}
	}

	stats, err := s.ActivityStats(ctx, "u1")
	if err != nil {
		t.Fatalf("ActivityStats: %v", err)
	}
	if stats.DaysActive != 1 {
		t.Errorf("DaysActive: got %d, want 1", stats.DaysActive)
	}
	if math.Abs(stats.AveragePerDay-3.0) > 1e-9 {
		t.Errorf("AveragePerDay: got %f, want 3.0", stats.AveragePerDay)
	}
}

// --- Moods ---

func TestMoodStats_CaseSensitiveGrouping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	if err := s.SaveMood(ctx, "u1", "Happy", time.Now()); err != nil {
		t.Fatalf("SaveMood: %v", err)
	}
	if err := s.SaveMood(ctx, "u1", "happy", time.Now()); err != nil {
		t.Fatalf("SaveMood: %v", err)
	}

	stats, err := s.MoodStats(ctx, "u1")
	if err != nil {
		t.Fatalf("MoodStats: %v", err)
	}
	if len(stats.Frequency) != 2 {
		t.Fatalf("expected 2 distinct labels, got %d (%+v)", len(stats.Frequency), stats.Frequency)
	}
	for _, mc := range stats.Frequency {
		if mc.Count != 1 {
			t.Errorf("count for %q: got %d, want 1", mc.Mood, mc.Count)
		}
	}
}

func TestMoodStats_RecentWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestUser(t, s, "u1")

	for i := 1; i <= 7; i++ {
		if err := s.SaveMood(ctx, "u1", fmt.Sprintf("mood-%d", i), time.Now()); err != nil {
			t.Fatalf("SaveMood(%d): %v", i, err)
		}
	}

	stats, err := s.MoodStats(ctx, "u1")
	if err != nil {
		t.Fatalf("MoodStats: %v", err)
	}
	if len(stats.Recent) != 5 {
		t.Fatalf("expected 5 recent entries, got %d", len(stats.Recent))
	}
	for i, entry := range stats.Recent {
		want := fmt.Sprintf("mood-%d", i+3)
		if entry.Mood != want {
			t.Errorf("recent[%d]: got %q, want %q", i, entry.Mood, want)
		}
	}
}

func TestMoodStats_Empty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.MoodStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("MoodStats: %v", err)
	}
	if len(stats.Frequency) != 0 || len(stats.Recent) != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}
