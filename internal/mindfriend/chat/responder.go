// Package chat implements the conversational path: take a user's new
// message, generate a reply from the accumulated context, extend the
// context, and persist the exchange.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mindfriend/mindfriend/common/retry"
	"github.com/mindfriend/mindfriend/internal/mindfriend/config"
	"github.com/mindfriend/mindfriend/internal/mindfriend/llm"
	"github.com/mindfriend/mindfriend/internal/mindfriend/session"
)

// TurnWriter is the slice of the store the responder needs.
type TurnWriter interface {
	SaveChatTurn(ctx context.Context, userID, message, response string, ts time.Time) error
}

// Responder produces replies for inbound text messages.
type Responder struct {
	registry *session.Registry
	provider llm.Provider
	turns    TurnWriter
	persona  config.Persona
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResponder wires a Responder. A timeout of zero or less falls back to
// llm.DefaultTimeout; a nil logger falls back to slog.Default.
func NewResponder(registry *session.Registry, provider llm.Provider, turns TurnWriter, persona config.Persona, timeout time.Duration, logger *slog.Logger) *Responder {
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		registry: registry,
		provider: provider,
		turns:    turns,
		persona:  persona,
		timeout:  timeout,
		logger:   logger,
	}
}

// Respond generates a reply for text from userID. It is total: every call
// returns a non-empty reply and appends exactly one (input, reply) pair to
// the user's context and to durable storage. A generation failure is
// absorbed into the configured fallback reply; a storage failure is logged
// and otherwise invisible to the user. The conversational path never
// surfaces an error to the transport.
func (r *Responder) Respond(ctx context.Context, userID, text string) string {
	conv := r.registry.Get(userID)

	// Hold the per-user lock across generate-append-persist so two messages
	// from the same user cannot interleave their appends. Different users
	// proceed in parallel on their own contexts.
	conv.Lock()
	defer conv.Unlock()

	reply, err := r.generate(ctx, conv, text)
	if err != nil {
		r.logger.Error("generation failed, using fallback reply",
			"user_id", userID, "context_id", conv.ID, "err", err)
		reply = r.persona.FallbackReply
	}

	now := time.Now()
	conv.AppendLocked(session.Turn{Message: text, Response: reply, Timestamp: now})

	if err := r.turns.SaveChatTurn(ctx, userID, text, reply, now); err != nil {
		// The log always reflects what was said to the user even when the
		// durable write is lost; the user still gets their reply.
		r.logger.Error("failed to persist chat turn", "user_id", userID, "err", err)
	}

	return reply
}

// generate calls the provider with the accumulated context plus the new
// input, bounded by the configured timeout and retried once on transient
// failure.
func (r *Responder) generate(ctx context.Context, conv *session.Context, text string) (string, error) {
	messages := r.buildMessages(conv, text)

	cfg := retry.Config{
		MaxAttempts:  2,
		InitialDelay: time.Second,
		ShouldRetry: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
	resp, err := retry.DoValue(ctx, cfg, func() (*llm.CompletionResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		return r.provider.Complete(callCtx, llm.CompletionRequest{
			Messages:  messages,
			SessionID: conv.UserID,
		})
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", errors.New("generation returned empty reply")
	}
	return resp.Content, nil
}

// buildMessages assembles the prompt: optional system message, prior turns
// as user/assistant pairs, then the new input with the persona framing
// prepended to the literal text. The framing is never stored; the chat
// log keeps the raw message.
func (r *Responder) buildMessages(conv *session.Context, text string) []llm.Message {
	turns := conv.TurnsLocked()

	messages := make([]llm.Message, 0, 2*len(turns)+2)
	if r.persona.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: r.persona.SystemPrompt})
	}
	for _, turn := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Message},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Response},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: r.persona.Framing + text})

	return messages
}
