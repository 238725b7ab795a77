package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mindfriend/mindfriend/common/version"
	"github.com/mindfriend/mindfriend/internal/mindfriend/config"
	"github.com/mindfriend/mindfriend/internal/mindfriend/observability"
	"github.com/mindfriend/mindfriend/internal/mindfriend/store"
)

// displayTime renders a stored timestamp the way replies show it.
const displayTime = "2006-01-02 15:04:05"

// Store is the slice of the persistent store the handlers need.
type Store interface {
	LastChatTurns(ctx context.Context, userID string, limit int) ([]store.ChatTurn, error)
	ActivityStats(ctx context.Context, userID string) (store.ActivityStats, error)
	SaveMood(ctx context.Context, userID, mood string, ts time.Time) error
	MoodStats(ctx context.Context, userID string) (store.MoodStats, error)
}

// Handlers holds all command handlers and their dependencies.
//
// Storage failures are logged with the trace context and rendered to the
// user as the corresponding "no data" reply; the conversational surface
// never exposes storage trouble. The distinguishable signal lives in the
// log, not in the reply text.
type Handlers struct {
	store   Store
	persona config.Persona
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(s Store, persona config.Persona) *Handlers {
	return &Handlers{store: s, persona: persona}
}

// HandleStart greets the user.
func (h *Handlers) HandleStart(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	return h.persona.Greeting, nil
}

// HandleHelp shows available commands.
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	return `MindFriend commands:
• /start - Introduction
• /history - Show your last conversations
• /stats - Show your chat activity statistics
• /mood <your mood> - Record how you're feeling
• /moodstats - Show your mood frequency and recent entries
• /version - Show version information

Anything else you send me, I'll just chat with you 💬`, nil
}

// HandleVersion shows version information.
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	return "MindFriend " + version.Info(), nil
}

// HandleHistory shows the user's most recent conversations, oldest first.
func (h *Handlers) HandleHistory(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	turns, err := h.store.LastChatTurns(ctx, in.UserID, h.persona.HistoryLimit)
	if err != nil {
		observability.WithTrace(ctx).Error("failed to fetch chat history", "user_id", in.UserID, "err", err)
		turns = nil
	}
	if len(turns) == 0 {
		return "No conversation history found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your last %d conversations:\n", len(turns))
	for i, turn := range turns {
		fmt.Fprintf(&b, "\n%d. You: %s\n  MindFriend: %s\n  Time: %s",
			i+1, turn.Message, turn.Response, turn.Timestamp.Format(displayTime))
	}
	return b.String(), nil
}

// HandleStats shows chat activity statistics.
func (h *Handlers) HandleStats(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	stats, err := h.store.ActivityStats(ctx, in.UserID)
	if err != nil {
		observability.WithTrace(ctx).Error("failed to compute activity stats", "user_id", in.UserID, "err", err)
		stats = store.ActivityStats{}
	}

	return fmt.Sprintf("📊 Your Stats:\n\n"+
		"Total messages: %d\n"+
		"Days active: %d\n"+
		"Average messages per day: %.2f",
		stats.TotalMessages, stats.DaysActive, stats.AveragePerDay), nil
}

// HandleMood records a mood entry. Empty or whitespace-only input gets a
// guidance reply, not an error.
func (h *Handlers) HandleMood(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	mood := strings.TrimSpace(cmd.ArgsText())
	if mood == "" {
		return "Please provide your mood after the command, e.g., /mood happy", nil
	}

	if err := h.store.SaveMood(ctx, in.UserID, mood, time.Now()); err != nil {
		observability.WithTrace(ctx).Error("failed to save mood", "user_id", in.UserID, "err", err)
		// The write was lost; still acknowledge so the conversational
		// surface stays calm. The log carries the real signal.
	}

	return fmt.Sprintf("Mood '%s' recorded. Thank you for sharing!", mood), nil
}

// HandleMoodStats shows mood frequency and the most recent entries.
func (h *Handlers) HandleMoodStats(ctx context.Context, cmd *Command, in *Inbound) (string, error) {
	stats, err := h.store.MoodStats(ctx, in.UserID)
	if err != nil {
		observability.WithTrace(ctx).Error("failed to compute mood stats", "user_id", in.UserID, "err", err)
		stats = store.MoodStats{}
	}

	if len(stats.Frequency) == 0 && len(stats.Recent) == 0 {
		return "No mood records found. Use /mood <your mood> to log one!", nil
	}

	var b strings.Builder
	b.WriteString("📝 Your Mood Stats:\n\n")

	if len(stats.Recent) > 0 {
		b.WriteString("Recent moods:\n")
		for _, entry := range stats.Recent {
			fmt.Fprintf(&b, "- %s at %s\n", entry.Mood, entry.Timestamp.Format(displayTime))
		}
	}

	if len(stats.Frequency) > 0 {
		b.WriteString("\nMood frequency:\n")
		for _, mc := range stats.Frequency {
			fmt.Fprintf(&b, "- %s: %d\n", mc.Mood, mc.Count)
		}
	}

	return b.String(), nil
}
