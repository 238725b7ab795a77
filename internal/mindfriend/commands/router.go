// Package commands provides slash-command parsing and routing for
// MindFriend, plus the handlers behind each user-facing action.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Inbound describes who sent a message and where, independent of the
// transport. The display fields may be empty.
type Inbound struct {
	UserID    string
	Username  string
	FirstName string
	LastName  string
	RoomID    string
}

// Command represents a parsed slash command.
type Command struct {
	Name    string
	Args    []string
	RawText string
}

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers should use errors.Is to route such messages
// to the conversational path instead of treating them as errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Handler is a function that handles a command.
type Handler func(ctx context.Context, cmd *Command, in *Inbound) (string, error)

// Router routes commands to handlers.
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a new command router.
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a command handler.
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Parse parses a message into a command.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	rest := strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	if rest == "" {
		return nil, fmt.Errorf("empty command")
	}

	parts := strings.Fields(rest)
	return &Command{
		Name:    strings.ToLower(parts[0]),
		Args:    parts[1:],
		RawText: rest,
	}, nil
}

// Route parses and routes a command to its handler.
func (r *Router) Route(ctx context.Context, text string, in *Inbound) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("unknown command: %s", cmd.Name)
	}

	return handler(ctx, cmd, in)
}

// ArgsText returns the arguments joined back into a single string.
func (c *Command) ArgsText() string {
	return strings.Join(c.Args, " ")
}
