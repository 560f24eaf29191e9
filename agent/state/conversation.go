package state

import (
	"fmt"
	"maps"
	"strings"
	"time"

	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

// Conversation is the state owned by one voice session. Turns of one
// conversation are processed sequentially, so it carries no lock.
//
// The qualification tier is not stored; it is recomputed from Signals.
type Conversation struct {
	ID      string      `json:"conversation_id"`
	Phase   Phase       `json:"phase"`
	Signals signalx.Set `json:"signals"`
	Turns   int         `json:"turns"`

	// FallbackCursor rotates fallback replies per failure kind.
	FallbackCursor map[string]int `json:"fallback_cursor,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		Phase:     PhaseGreeting,
		StartedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (c *Conversation) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

// Snapshot is the part of a conversation a failed capability call must leave
// untouched.
type Snapshot struct {
	Phase   Phase
	Signals signalx.Set
}

func (c *Conversation) Snapshot() Snapshot {
	return Snapshot{Phase: c.Phase, Signals: c.Signals.Clone()}
}

func (c *Conversation) Restore(s Snapshot) {
	c.Phase = s.Phase
	c.Signals = s.Signals.Clone()
}

// NextFallback returns the rotation index for kind and advances the cursor.
func (c *Conversation) NextFallback(kind string, size int) int {
	if size <= 0 {
		return 0
	}
	if c.FallbackCursor == nil {
		c.FallbackCursor = make(map[string]int, 3)
	}
	idx := c.FallbackCursor[kind] % size
	c.FallbackCursor[kind] = (idx + 1) % size
	return idx
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Signals = c.Signals.Clone()
	if c.FallbackCursor != nil {
		out.FallbackCursor = maps.Clone(c.FallbackCursor)
	}
	return &out
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidConversation
	}
	if !c.Phase.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, c.Phase)
	}
	if c.Turns < 0 {
		return fmt.Errorf("turns must be >= 0, got %d", c.Turns)
	}
	return nil
}
