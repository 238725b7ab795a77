// Package session implements the in-memory conversation state for
// MindFriend: one Context per user, owned by a bounded Registry. Contexts
// start empty each process lifetime; the durable chat log in the store is
// the record of everything that was actually said.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one user message paired with the generated response.
type Turn struct {
	Message   string
	Response  string
	Timestamp time.Time
}

// Context is the accumulated conversation of a single user. It is
// append-only and guarded by its own mutex so that the full
// read-generate-append-persist sequence for one user can be serialized
// while other users proceed in parallel.
type Context struct {
	// ID identifies this context instance for log correlation. A user who
	// is evicted and returns gets a new ID.
	ID     string
	UserID string

	mu    sync.Mutex
	turns []Turn
}

func newContext(userID string) *Context {
	return &Context{
		ID:     uuid.New().String(),
		UserID: userID,
	}
}

// Lock acquires the per-user conversation lock. Callers hold it across the
// generate-append-persist sequence so concurrent messages from the same
// user are strictly ordered.
func (c *Context) Lock() { c.mu.Lock() }

// Unlock releases the per-user conversation lock.
func (c *Context) Unlock() { c.mu.Unlock() }

// Append records a completed exchange. Safe to call without holding Lock,
// though the responder normally already holds it.
func (c *Context) Append(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(turn)
}

// AppendLocked records a completed exchange while the caller already holds
// the context lock.
func (c *Context) AppendLocked(turn Turn) {
	c.appendLocked(turn)
}

func (c *Context) appendLocked(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	c.turns = append(c.turns, turn)
}

// Turns returns a copy of the accumulated turns, oldest first.
func (c *Context) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnsLocked()
}

// TurnsLocked returns a copy of the accumulated turns while the caller
// already holds the context lock.
func (c *Context) TurnsLocked() []Turn {
	return c.turnsLocked()
}

func (c *Context) turnsLocked() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of recorded turns.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// DefaultMaxSessions bounds the registry when no explicit limit is given.
const DefaultMaxSessions = 1024

// Registry maps user identifiers to their live conversation Context,
// creating one lazily on first contact. Repeated lookups for the same user
// return the same instance, so turns appended through one reference are
// visible through every other.
//
// The registry is bounded: beyond MaxSessions the least-recently-used
// context is evicted. An evicted user simply starts from an empty context
// on re-entry; the persisted chat log remains the durable record.
type Registry struct {
	mu      sync.Mutex
	max     int
	clock   uint64
	entries map[string]*registryEntry
}

// registryEntry pairs a context with its recency stamp. The stamp is a
// logical clock ticked under the registry mutex, never the context mutex,
// so recency bookkeeping cannot block on an in-flight generation call.
type registryEntry struct {
	ctx      *Context
	lastUsed uint64
}

// NewRegistry creates a Registry bounded to max live contexts. A max of
// zero or less falls back to DefaultMaxSessions.
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Registry{
		max:     max,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the Context for userID, creating an empty one on first
// reference. It never fails and is safe under concurrent first access.
func (r *Registry) Get(userID string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	if e, ok := r.entries[userID]; ok {
		e.lastUsed = r.clock
		return e.ctx
	}

	if len(r.entries) >= r.max {
		r.evictOldest()
	}

	c := newContext(userID)
	r.entries[userID] = &registryEntry{ctx: c, lastUsed: r.clock}
	return c
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evictOldest drops the least-recently-used context. Must be called with
// the registry lock held.
func (r *Registry) evictOldest() {
	var oldestKey string
	var oldestStamp uint64
	first := true
	for key, e := range r.entries {
		if first || e.lastUsed < oldestStamp {
			oldestKey = key
			oldestStamp = e.lastUsed
			first = false
		}
	}
	if !first {
		delete(r.entries, oldestKey)
	}
}
