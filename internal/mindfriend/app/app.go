// Package app wires the MindFriend components together: persistent store,
// session registry, generation provider, command router, and the Matrix
// transport, plus the inbound dispatch loop connecting them.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/mindfriend/mindfriend/common/trace"
	"github.com/mindfriend/mindfriend/internal/mindfriend/chat"
	"github.com/mindfriend/mindfriend/internal/mindfriend/commands"
	"github.com/mindfriend/mindfriend/internal/mindfriend/config"
	"github.com/mindfriend/mindfriend/internal/mindfriend/llm"
	"github.com/mindfriend/mindfriend/internal/mindfriend/matrix"
	"github.com/mindfriend/mindfriend/internal/mindfriend/observability"
	"github.com/mindfriend/mindfriend/internal/mindfriend/session"
	"github.com/mindfriend/mindfriend/internal/mindfriend/store"
)

// typingTimeout is how long a single typing indicator stays visible while
// a reply is being generated.
const typingTimeout = 30 * time.Second

// Config holds application configuration
type Config struct {
	DatabasePath string
	Matrix       matrix.Config

	// OpenAIAPIKey authenticates against the generation backend.
	OpenAIAPIKey string
	// OpenAIBaseURL overrides the backend endpoint (e.g. a local model).
	OpenAIBaseURL string
	// OpenAIModel is the chat model used for replies.
	OpenAIModel string
	// GenerationTimeout bounds a single generation call. Zero uses
	// llm.DefaultTimeout.
	GenerationTimeout time.Duration

	// PersonaPath points at an optional persona profile YAML. Empty uses
	// the built-in persona.
	PersonaPath string

	// MaxSessions bounds the in-memory session registry. Zero uses
	// session.DefaultMaxSessions.
	MaxSessions int

	// Provider is an optional pre-constructed generation provider, used by
	// tests. When nil an OpenAI-compatible provider is built from the
	// fields above.
	Provider llm.Provider
}

// App is the assembled MindFriend application.
type App struct {
	config    *Config
	store     *store.Store
	registry  *session.Registry
	responder *chat.Responder
	router    *commands.Router
	matrix    *matrix.Client
	persona   config.Persona
}

// New creates the application from configuration. It opens the database,
// loads the persona profile, and wires every component; Run starts the
// transport.
func New(cfg *Config) (*App, error) {
	persona, err := config.Load(cfg.PersonaPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	provider := cfg.Provider
	if provider == nil {
		provider = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: 0.7,
			Timeout:     cfg.GenerationTimeout,
		})
	}

	registry := session.NewRegistry(cfg.MaxSessions)
	responder := chat.NewResponder(registry, provider, st, persona, cfg.GenerationTimeout, nil)

	router := commands.NewRouter("/")
	handlers := commands.NewHandlers(st, persona)
	router.Register("start", handlers.HandleStart)
	router.Register("help", handlers.HandleHelp)
	router.Register("version", handlers.HandleVersion)
	router.Register("history", handlers.HandleHistory)
	router.Register("stats", handlers.HandleStats)
	router.Register("mood", handlers.HandleMood)
	router.Register("moodstats", handlers.HandleMoodStats)

	matrixCfg := cfg.Matrix
	matrixCfg.DB = st.DB()
	client, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		config:    cfg,
		store:     st,
		registry:  registry,
		responder: responder,
		router:    router,
		matrix:    client,
		persona:   persona,
	}, nil
}

// Run starts the transport and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.matrix.Start(a.handleEvent); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	slog.Info("MindFriend is running", "db", a.config.DatabasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	return nil
}

// Stop closes the transport and the store.
func (a *App) Stop() {
	a.matrix.Stop()
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close store", "err", err)
	}
}

// handleEvent is the inbound dispatch path: record the user, route slash
// commands, and hand everything else to the conversational responder.
// Multiple events may be in flight concurrently; per-user ordering is the
// responder's concern.
func (a *App) handleEvent(ctx context.Context, evt *event.Event) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())
	logger := observability.WithTrace(ctx)

	text := evt.Content.AsMessage().Body
	in := &commands.Inbound{
		UserID:   evt.Sender.String(),
		Username: evt.Sender.Localpart(),
		RoomID:   evt.RoomID.String(),
	}

	if err := a.store.SaveUser(ctx, &store.User{
		ID:       in.UserID,
		Username: sql.NullString{String: in.Username, Valid: in.Username != ""},
	}); err != nil {
		logger.Error("failed to record user", "user_id", in.UserID, "err", err)
	}

	reply, err := a.router.Route(ctx, text, in)
	if errors.Is(err, commands.ErrNotACommand) {
		// Free-form text goes to the conversational path, which is total:
		// it always produces a reply.
		if terr := a.matrix.SetTyping(in.RoomID, true, typingTimeout); terr != nil {
			logger.Debug("failed to set typing indicator", "err", terr)
		}
		reply = a.responder.Respond(ctx, in.UserID, text)
		if terr := a.matrix.SetTyping(in.RoomID, false, 0); terr != nil {
			logger.Debug("failed to clear typing indicator", "err", terr)
		}
	} else if err != nil {
		logger.Warn("command failed", "user_id", in.UserID, "err", err)
		reply = "Sorry, I didn't understand that command. Try /help."
	}

	if reply == "" {
		return
	}
	if err := a.matrix.SendMessage(in.RoomID, reply); err != nil {
		logger.Error("failed to send reply", "room_id", in.RoomID, "err", err)
	}
}
