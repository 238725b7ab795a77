package commands_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mindfriend/mindfriend/internal/mindfriend/commands"
	"github.com/mindfriend/mindfriend/internal/mindfriend/config"
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

func newTestHandlers(t *testing.T) (*commands.Handlers, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	return commands.NewHandlers(s, config.Default()), s
}

func inbound(userID string) *commands.Inbound {
	return &commands.Inbound{UserID: userID, RoomID: "!room:example.org"}
}

func TestHandleStart(t *testing.T) {
	h, _ := newTestHandlers(t)

	reply, err := h.HandleStart(context.Background(), &commands.Command{Name: "start"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleStart: %v", err)
	}
	if reply != config.Default().Greeting {
		t.Errorf("greeting mismatch: %q", reply)
	}
}

func TestHandleHistory_Empty(t *testing.T) {
	h, _ := newTestHandlers(t)

	reply, err := h.HandleHistory(context.Background(), &commands.Command{Name: "history"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleHistory: %v", err)
	}
	if reply != "No conversation history found." {
		t.Errorf("reply: got %q", reply)
	}
}

func TestHandleHistory_FormatsTurns(t *testing.T) {
	h, s := newTestHandlers(t)
	ctx := context.Background()

	if err := s.SaveUser(ctx, &store.User{ID: "u1"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	for i := 1; i <= 6; i++ {
		if err := s.SaveChatTurn(ctx, "u1", "question "+string(rune('0'+i)), "answer "+string(rune('0'+i)), time.Now()); err != nil {
			t.Fatalf("SaveChatTurn: %v", err)
		}
	}

	reply, err := h.HandleHistory(ctx, &commands.Command{Name: "history"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleHistory: %v", err)
	}

	if !strings.HasPrefix(reply, "Here are your last 5 conversations:") {
		t.Errorf("unexpected header: %q", reply)
	}
	if strings.Contains(reply, "question 1") {
		t.Error("oldest turn should have fallen out of the window")
	}
	// Oldest of the window comes first.
	if strings.Index(reply, "question 2") > strings.Index(reply, "question 6") {
		t.Error("turns not in chronological order")
	}
	if !strings.Contains(reply, "MindFriend: answer 6") {
		t.Errorf("missing response line: %q", reply)
	}
}

func TestHandleStats_Empty(t *testing.T) {
	h, _ := newTestHandlers(t)

	reply, err := h.HandleStats(context.Background(), &commands.Command{Name: "stats"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleStats: %v", err)
	}
	if !strings.Contains(reply, "Total messages: 0") {
		t.Errorf("reply: %q", reply)
	}
	if !strings.Contains(reply, "Average messages per day: 0.00") {
		t.Errorf("reply: %q", reply)
	}
}

func TestHandleStats_WithTurns(t *testing.T) {
	h, s := newTestHandlers(t)
	ctx := context.Background()

	if err := s.SaveUser(ctx, &store.User{ID: "u1"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{base, base.Add(time.Hour), base.Add(25 * time.Hour), base.Add(26 * time.Hour)} {
		if err := s.SaveChatTurn(ctx, "u1", "m", "r", ts); err != nil {
			t.Fatalf("SaveChatTurn: %v", err)
		}
	}

	reply, err := h.HandleStats(ctx, &commands.Command{Name: "stats"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleStats: %v", err)
	}
	if !strings.Contains(reply, "Total messages: 4") {
		t.Errorf("reply: %q", reply)
	}
	if !strings.Contains(reply, "Days active: 2") {
		t.Errorf("reply: %q", reply)
	}
	if !strings.Contains(reply, "Average messages per day: 2.00") {
		t.Errorf("reply: %q", reply)
	}
}

func TestHandleMood_RecordsAndConfirms(t *testing.T) {
	h, s := newTestHandlers(t)
	ctx := context.Background()

	if err := s.SaveUser(ctx, &store.User{ID: "u1"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	reply, err := h.HandleMood(ctx, &commands.Command{Name: "mood", Args: []string{"quietly", "hopeful"}}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleMood: %v", err)
	}
	if reply != "Mood 'quietly hopeful' recorded. Thank you for sharing!" {
		t.Errorf("reply: %q", reply)
	}

	stats, err := s.MoodStats(ctx, "u1")
	if err != nil {
		t.Fatalf("MoodStats: %v", err)
	}
	if len(stats.Recent) != 1 || stats.Recent[0].Mood != "quietly hopeful" {
		t.Errorf("mood not persisted: %+v", stats.Recent)
	}
}

func TestHandleMood_EmptyInputGetsGuidance(t *testing.T) {
	h, s := newTestHandlers(t)
	ctx := context.Background()

	for _, args := range [][]string{nil, {}, {"   "}} {
		reply, err := h.HandleMood(ctx, &commands.Command{Name: "mood", Args: args}, inbound("u1"))
		if err != nil {
			t.Fatalf("HandleMood(%v): %v", args, err)
		}
		if !strings.Contains(reply, "Please provide your mood") {
			t.Errorf("expected guidance for args %v, got %q", args, reply)
		}
	}

	stats, err := s.MoodStats(ctx, "u1")
	if err != nil {
		t.Fatalf("MoodStats: %v", err)
	}
	if len(stats.Recent) != 0 {
		t.Errorf("empty mood must not be persisted: %+v", stats.Recent)
	}
}

func TestHandleMoodStats_Empty(t *testing.T) {
	h, _ := newTestHandlers(t)

	reply, err := h.HandleMoodStats(context.Background(), &commands.Command{Name: "moodstats"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleMoodStats: %v", err)
	}
	if !strings.Contains(reply, "No mood records found") {
		t.Errorf("reply: %q", reply)
	}
}

func TestHandleMoodStats_FrequencyAndRecent(t *testing.T) {
	h, s := newTestHandlers(t)
	ctx := context.Background()

	if err := s.SaveUser(ctx, &store.User{ID: "u1"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	for _, mood := range []string{"calm", "calm", "anxious"} {
		if err := s.SaveMood(ctx, "u1", mood, time.Now()); err != nil {
			t.Fatalf("SaveMood: %v", err)
		}
	}

	reply, err := h.HandleMoodStats(ctx, &commands.Command{Name: "moodstats"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleMoodStats: %v", err)
	}
	if !strings.Contains(reply, "- calm: 2") {
		t.Errorf("missing frequency line: %q", reply)
	}
	if !strings.Contains(reply, "- anxious: 1") {
		t.Errorf("missing frequency line: %q", reply)
	}
	if !strings.Contains(reply, "Recent moods:") {
		t.Errorf("missing recent section: %q", reply)
	}
}

// failingStore simulates storage trouble on every operation.
type failingStore struct{}

var errStorage = errors.New("database is locked")

func (failingStore) LastChatTurns(ctx context.Context, userID string, limit int) ([]store.ChatTurn, error) {
	return nil, errStorage
}
func (failingStore) ActivityStats(ctx context.Context, userID string) (store.ActivityStats, error) {
	return store.ActivityStats{}, errStorage
}
func (failingStore) SaveMood(ctx context.Context, userID, mood string, ts time.Time) error {
	return errStorage
}
func (failingStore) MoodStats(ctx context.Context, userID string) (store.MoodStats, error) {
	return store.MoodStats{}, errStorage
}

func TestHandlers_StorageFailureReadsAsNoData(t *testing.T) {
	h := commands.NewHandlers(failingStore{}, config.Default())
	ctx := context.Background()

	reply, err := h.HandleHistory(ctx, &commands.Command{Name: "history"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleHistory: %v", err)
	}
	if reply != "No conversation history found." {
		t.Errorf("history under failure: %q", reply)
	}

	reply, err = h.HandleStats(ctx, &commands.Command{Name: "stats"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleStats: %v", err)
	}
	if !strings.Contains(reply, "Total messages: 0") {
		t.Errorf("stats under failure: %q", reply)
	}

	reply, err = h.HandleMoodStats(ctx, &commands.Command{Name: "moodstats"}, inbound("u1"))
	if err != nil {
		t.Fatalf("HandleMoodStats: %v", err)
	}
	if !strings.Contains(reply, "No mood records found") {
		t.Errorf("moodstats under failure: %q", reply)
	}
}
