package chatmemory

import (
	"context"

	"github.com/usememos/supportbot/store"
)

// StoreRepository persists windows in the application database.
type StoreRepository struct {
	store *store.Store
}

func NewStoreRepository(store *store.Store) *StoreRepository {
	return &StoreRepository{store: store}
}

func (r *StoreRepository) Append(ctx context.Context, conversationID string, entries []Entry, maxMessages int) error {
	messages := make([]*store.ConversationMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, &store.ConversationMessage{
			Role:      e.Role,
			Content:   e.Content,
			CreatedTs: e.CreatedTs,
		})
	}
	_, err := r.store.AppendConversationMessages(ctx, conversationID, messages, maxMessages)
	return err
}

func (r *StoreRepository) Load(ctx context.Context, conversationID string) ([]Entry, error) {
	list, err := r.store.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: conversationID})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list))
	for _, m := range list {
		entries = append(entries, Entry{Role: m.Role, Content: m.Content, CreatedTs: m.CreatedTs})
	}
	return entries, nil
}

func (r *StoreRepository) Delete(ctx context.Context, conversationID string) error {
	return r.store.DeleteConversationMessages(ctx, conversationID)
}
