// Package chatmemory keeps a bounded, ordered history of turns per
// conversation.
//
// The window size is a property of the Window, not of the Repository it
// writes to. Several windows may share one repository, but a conversation id
// must only be written through windows with the same MaxMessages: when two
// windows with different caps append to the same id, the cap of the last
// writer decides what is kept.
package chatmemory

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultMaxMessages is the window size used when none is configured.
const DefaultMaxMessages = 20

// Entry is one timestamped turn.
type Entry struct {
	Role      string
	Content   string
	CreatedTs int64
}

// Repository is the backing store of conversation windows. Append must add
// all entries in order and evict the oldest entries until at most
// maxMessages remain, as one step per conversation id: concurrent appends
// never interleave their entries, a failed append leaves nothing behind, and
// a concurrent Load never observes more than maxMessages entries or a
// half-applied append. Appends to different conversation ids must not block
// each other.
type Repository interface {
	Append(ctx context.Context, conversationID string, entries []Entry, maxMessages int) error
	// Load returns the entries oldest first, or an empty slice for an
	// unknown id.
	Load(ctx context.Context, conversationID string) ([]Entry, error)
	Delete(ctx context.Context, conversationID string) error
}

// Window is a sliding-window view over a Repository.
type Window struct {
	repo        Repository
	maxMessages int
}

func NewWindow(repo Repository, maxMessages int) *Window {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Window{repo: repo, maxMessages: maxMessages}
}

func (w *Window) MaxMessages() int {
	return w.maxMessages
}

// Append adds entries in order as one unit: either all of them land or
// none do. A zero CreatedTs is set to now.
func (w *Window) Append(ctx context.Context, conversationID string, entries ...Entry) error {
	if conversationID == "" {
		return errors.New("chatmemory: empty conversation id")
	}
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().Unix()
	batch := make([]Entry, len(entries))
	for i, e := range entries {
		if e.CreatedTs == 0 {
			e.CreatedTs = now
		}
		batch[i] = e
	}
	if err := w.repo.Append(ctx, conversationID, batch, w.maxMessages); err != nil {
		return errors.Wrapf(err, "append to conversation %s", conversationID)
	}
	return nil
}

func (w *Window) Load(ctx context.Context, conversationID string) ([]Entry, error) {
	entries, err := w.repo.Load(ctx, conversationID)
	if err != nil {
		return nil, errors.Wrapf(err, "load conversation %s", conversationID)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Clear ends a conversation. Windows are never removed otherwise.
func (w *Window) Clear(ctx context.Context, conversationID string) error {
	return w.repo.Delete(ctx, conversationID)
}
