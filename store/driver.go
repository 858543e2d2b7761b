package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Customer model related methods.
	CreateCustomer(ctx context.Context, create *Customer) (*Customer, error)
	ListCustomers(ctx context.Context, find *FindCustomer) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, update *UpdateCustomer) (*Customer, error)

	// Ticket model related methods.
	CreateTicket(ctx context.Context, create *Ticket) (*Ticket, error)
	ListTickets(ctx context.Context, find *FindTicket) ([]*Ticket, error)
	UpdateTicket(ctx context.Context, update *UpdateTicket) (*Ticket, error)

	// ConversationMessage model related methods.
	// CreateConversationMessages inserts the messages in order and then
	// deletes the oldest messages of the conversation beyond keep, in one
	// transaction. keep <= 0 disables trimming.
	CreateConversationMessages(ctx context.Context, conversationID string, creates []*ConversationMessage, keep int) ([]*ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)
	DeleteConversationMessages(ctx context.Context, conversationID string) error

	// ConversationSession model related methods.
	UpsertConversationSession(ctx context.Context, upsert *UpsertConversationSession) (*ConversationSession, error)
	ListConversationSessions(ctx context.Context, find *FindConversationSession) ([]*ConversationSession, error)
	EndConversationSession(ctx context.Context, conversationID string, endedTs int64) error
}
