package supportbot

import (
	"context"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/usememos/supportbot/store"
)

// CreateTicket is the input of TicketDesk.Create.
type CreateTicket struct {
	CustomerID  int32
	Subject     string
	Description string
	// Priority defaults to MEDIUM when empty.
	Priority  store.TicketPriority
	Category  string
	Escalated bool
}

// TicketDesk creates and manages support tickets.
type TicketDesk struct {
	store *store.Store
}

func NewTicketDesk(store *store.Store) *TicketDesk {
	return &TicketDesk{store: store}
}

// Create validates and saves a ticket. It fails with ErrValidation on an
// empty subject and with ErrCustomerNotFound on an unknown customer.
func (d *TicketDesk) Create(ctx context.Context, create *CreateTicket) (*store.Ticket, error) {
	subject := strings.TrimSpace(create.Subject)
	if subject == "" {
		return nil, errors.Wrap(ErrValidation, "ticket subject cannot be empty")
	}
	customer, err := d.store.GetCustomer(ctx, &store.FindCustomer{ID: &create.CustomerID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to find customer")
	}
	if customer == nil {
		return nil, errors.Wrapf(ErrCustomerNotFound, "customer not found with ID %d", create.CustomerID)
	}

	priority := create.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}
	ticket, err := d.store.CreateTicket(ctx, &store.Ticket{
		UID:         shortuuid.New(),
		CustomerID:  customer.ID,
		Subject:     subject,
		Description: create.Description,
		Status:      store.TicketOpen,
		Priority:    priority,
		Category:    create.Category,
		Escalated:   create.Escalated,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ticket")
	}
	return ticket, nil
}

func (d *TicketDesk) Get(ctx context.Context, uid string) (*store.Ticket, error) {
	ticket, err := d.store.GetTicket(ctx, &store.FindTicket{UID: &uid})
	if err != nil {
		return nil, errors.Wrap(err, "failed to find ticket")
	}
	if ticket == nil {
		return nil, errors.Wrapf(ErrTicketNotFound, "ticket not found with ID %s", uid)
	}
	return ticket, nil
}

// ListForCustomer returns the customer's tickets, newest first. activeOnly
// drops closed tickets.
func (d *TicketDesk) ListForCustomer(ctx context.Context, customerID int32, activeOnly bool) ([]*store.Ticket, error) {
	find := &store.FindTicket{CustomerID: &customerID}
	if activeOnly {
		closed := store.TicketClosed
		find.ExcludeStatus = &closed
	}
	return d.store.ListTickets(ctx, find)
}

func (d *TicketDesk) ListEscalated(ctx context.Context) ([]*store.Ticket, error) {
	escalated := true
	return d.store.ListTickets(ctx, &store.FindTicket{Escalated: &escalated})
}

func (d *TicketDesk) UpdateStatus(ctx context.Context, uid string, status store.TicketStatus) (*store.Ticket, error) {
	return d.update(ctx, &store.UpdateTicket{UID: uid, Status: &status})
}

func (d *TicketDesk) UpdatePriority(ctx context.Context, uid string, priority store.TicketPriority) (*store.Ticket, error) {
	return d.update(ctx, &store.UpdateTicket{UID: uid, Priority: &priority})
}

func (d *TicketDesk) Close(ctx context.Context, uid string) (*store.Ticket, error) {
	return d.UpdateStatus(ctx, uid, store.TicketClosed)
}

func (d *TicketDesk) update(ctx context.Context, update *store.UpdateTicket) (*store.Ticket, error) {
	ticket, err := d.store.UpdateTicket(ctx, update)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update ticket")
	}
	if ticket == nil {
		return nil, errors.Wrapf(ErrTicketNotFound, "ticket not found with ID %s", update.UID)
	}
	return ticket, nil
}
