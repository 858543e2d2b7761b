package store

import (
	"context"
	"time"
)

// ConversationMessage is a single turn in a conversation window.
type ConversationMessage struct {
	ID             int32
	ConversationID string
	Role           string // "user" | "assistant" | "system"
	Content        string
	CreatedTs      int64
}

// FindConversationMessage filters for ListConversationMessages.
type FindConversationMessage struct {
	ConversationID string
}

// ConversationSession tracks one conversation identity across exchanges.
type ConversationSession struct {
	ID             int32
	ConversationID string
	CustomerID     int32
	LastSentiment  string
	MessageCount   int32
	TicketUID      string
	Ended          bool
	CreatedTs      int64
	UpdatedTs      int64
}

// UpsertConversationSession creates the session on first use. On later
// calls MessageDelta is added to the count, a non-zero CustomerID and a
// non-empty TicketUID replace the stored ones, and the session is reopened.
type UpsertConversationSession struct {
	ConversationID string
	CustomerID     int32
	LastSentiment  string
	MessageDelta   int32
	TicketUID      string
	Ts             int64
}

// FindConversationSession filters for ListConversationSessions.
type FindConversationSession struct {
	ConversationID *string
	CustomerID     *int32
}

// AppendConversationMessages adds messages to one conversation in order and
// trims it to the newest maxMessages, all in one transaction. Writers of one
// conversation are serialized; writers of different conversations are not.
func (s *Store) AppendConversationMessages(ctx context.Context, conversationID string, messages []*ConversationMessage, maxMessages int) ([]*ConversationMessage, error) {
	if len(messages) == 0 {
		return messages, nil
	}
	now := time.Now().Unix()
	for _, m := range messages {
		m.ConversationID = conversationID
		if m.CreatedTs == 0 {
			m.CreatedTs = now
		}
	}
	unlock := s.lockConversation(conversationID)
	defer unlock()
	return s.driver.CreateConversationMessages(ctx, conversationID, messages, maxMessages)
}

// ListConversationMessages returns all messages of a conversation, oldest first.
func (s *Store) ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ListConversationMessages(ctx, find)
}

func (s *Store) DeleteConversationMessages(ctx context.Context, conversationID string) error {
	unlock := s.lockConversation(conversationID)
	defer unlock()
	return s.driver.DeleteConversationMessages(ctx, conversationID)
}

func (s *Store) UpsertConversationSession(ctx context.Context, upsert *UpsertConversationSession) (*ConversationSession, error) {
	if upsert.Ts == 0 {
		upsert.Ts = time.Now().Unix()
	}
	return s.driver.UpsertConversationSession(ctx, upsert)
}

func (s *Store) ListConversationSessions(ctx context.Context, find *FindConversationSession) ([]*ConversationSession, error) {
	return s.driver.ListConversationSessions(ctx, find)
}

// GetConversationSession returns the session for find, or nil.
func (s *Store) GetConversationSession(ctx context.Context, find *FindConversationSession) (*ConversationSession, error) {
	list, err := s.driver.ListConversationSessions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) EndConversationSession(ctx context.Context, conversationID string) error {
	return s.driver.EndConversationSession(ctx, conversationID, time.Now().Unix())
}
