package chatmemory

import (
	"context"
	"slices"
	"sync"
)

// InMemoryRepository is a volatile Repository. Each conversation has its own
// lock, so appends to different conversations run independently.
type InMemoryRepository struct {
	mu    sync.Mutex
	convs map[string]*conversation
}

type conversation struct {
	mu      sync.Mutex
	entries []Entry
	// dropped is set by Delete once the conversation left the map.
	dropped bool
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{convs: map[string]*conversation{}}
}

func (r *InMemoryRepository) get(conversationID string, create bool) *conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok && create {
		c = &conversation{}
		r.convs[conversationID] = c
	}
	return c
}

func (r *InMemoryRepository) Append(_ context.Context, conversationID string, entries []Entry, maxMessages int) error {
	for {
		c := r.get(conversationID, true)
		c.mu.Lock()
		if c.dropped {
			// Deleted between lookup and lock, append to its successor.
			c.mu.Unlock()
			continue
		}
		c.entries = append(c.entries, entries...)
		if maxMessages > 0 && len(c.entries) > maxMessages {
			c.entries = slices.Clone(c.entries[len(c.entries)-maxMessages:])
		}
		c.mu.Unlock()
		return nil
	}
}

func (r *InMemoryRepository) Load(_ context.Context, conversationID string) ([]Entry, error) {
	c := r.get(conversationID, false)
	if c == nil {
		return []Entry{}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return []Entry{}, nil
	}
	return slices.Clone(c.entries), nil
}

// Delete waits for an append in progress on the conversation, so an exchange
// either lands before the clear or starts a fresh window after it.
func (r *InMemoryRepository) Delete(_ context.Context, conversationID string) error {
	r.mu.Lock()
	c, ok := r.convs[conversationID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.convs, conversationID)
	r.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = true
	c.entries = nil
	return nil
}
