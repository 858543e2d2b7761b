package supportbot

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/usememos/supportbot/store"
	teststore "github.com/usememos/supportbot/store/test"
)

func TestTicketDesk(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	desk := NewTicketDesk(ts)
	customer, err := ts.CreateCustomer(ctx, &store.Customer{Name: "Emily Davis", Email: "emily@design.co", Plan: store.PlanPremium})
	require.NoError(t, err)

	_, err = desk.Create(ctx, &CreateTicket{CustomerID: customer.ID, Subject: "   "})
	require.True(t, errors.Is(err, ErrValidation))

	_, err = desk.Create(ctx, &CreateTicket{CustomerID: 999, Subject: "Help"})
	require.True(t, errors.Is(err, ErrCustomerNotFound))

	ticket, err := desk.Create(ctx, &CreateTicket{
		CustomerID:  customer.ID,
		Subject:     " Export question ",
		Description: "How do I export to CSV?",
		Category:    "general",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ticket.UID)
	require.Equal(t, "Export question", ticket.Subject)
	require.Equal(t, store.PriorityMedium, ticket.Priority)
	require.Equal(t, store.TicketOpen, ticket.Status)
	require.False(t, ticket.Escalated)

	escalated, err := desk.Create(ctx, &CreateTicket{
		CustomerID: customer.ID,
		Subject:    "Escalation Request: manager",
		Priority:   store.PriorityHigh,
		Category:   "support",
		Escalated:  true,
	})
	require.NoError(t, err)
	require.NotEqual(t, ticket.UID, escalated.UID)

	got, err := desk.Get(ctx, ticket.UID)
	require.NoError(t, err)
	require.Equal(t, ticket.ID, got.ID)
	_, err = desk.Get(ctx, "missing")
	require.True(t, errors.Is(err, ErrTicketNotFound))

	list, err := desk.ListEscalated(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, escalated.UID, list[0].UID)

	updated, err := desk.UpdatePriority(ctx, ticket.UID, store.PriorityCritical)
	require.NoError(t, err)
	require.Equal(t, store.PriorityCritical, updated.Priority)

	updated, err = desk.UpdateStatus(ctx, ticket.UID, store.TicketInProgress)
	require.NoError(t, err)
	require.Equal(t, store.TicketInProgress, updated.Status)

	closed, err := desk.Close(ctx, escalated.UID)
	require.NoError(t, err)
	require.Equal(t, store.TicketClosed, closed.Status)

	active, err := desk.ListForCustomer(ctx, customer.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, ticket.UID, active[0].UID)

	all, err := desk.ListForCustomer(ctx, customer.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = desk.Close(ctx, "missing")
	require.True(t, errors.Is(err, ErrTicketNotFound))
}
