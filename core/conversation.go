package core

import (
	"sync"
	"time"
)

// Conversation is the ConversationHandle of a game session: the ordered,
// append-only context the decision process sees across turns. It is safe for
// concurrent access.
//
// Contract:
//   - Append updates Updated
//   - History returns a defensive copy
//   - a Conversation is never shared between sessions
type Conversation struct {
	ID      string
	Created time.Time
	Updated time.Time

	mu       sync.RWMutex
	contents []Content
}

// NewConversation creates an empty conversation with a fresh id.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{ID: NewID(), Created: now, Updated: now}
}

// Append adds contents to the end of the history.
func (c *Conversation) Append(contents ...Content) {
	if len(contents) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contents = append(c.contents, contents...)
	c.Updated = time.Now()
}

// History returns a copy of all contents in order.
func (c *Conversation) History() []Content {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Content, len(c.contents))
	copy(out, c.contents)
	return out
}

// Len returns the number of contents.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.contents)
}

// Clear drops the history but keeps the identity.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contents = nil
	c.Updated = time.Now()
}
