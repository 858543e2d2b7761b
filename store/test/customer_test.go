package teststore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usememos/supportbot/store"
)

func TestCustomerStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateCustomer(ctx, &store.Customer{
		Name:        "Test Customer",
		Email:       "test@example.com",
		Plan:        store.PlanPremium,
		CompanyName: "Example Inc",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.NotZero(t, created.CreatedTs)

	found, err := ts.GetCustomer(ctx, &store.FindCustomer{ID: &created.ID})
	require.NoError(t, err)
	require.Equal(t, "Test Customer", found.Name)
	require.Equal(t, store.PlanPremium, found.Plan)
	require.Equal(t, "Example Inc", found.CompanyName)

	plan := store.PlanEnterprise
	updated, err := ts.UpdateCustomer(ctx, &store.UpdateCustomer{ID: created.ID, Plan: &plan})
	require.NoError(t, err)
	require.Equal(t, store.PlanEnterprise, updated.Plan)

	missingID := int32(9999)
	missing, err := ts.GetCustomer(ctx, &store.FindCustomer{ID: &missingID})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCustomerDefaultPlan(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateCustomer(ctx, &store.Customer{Name: "No Plan", Email: "noplan@example.com"})
	require.NoError(t, err)
	require.Equal(t, store.PlanFree, created.Plan)
	require.Equal(t, "Free", created.Plan.DisplayName())
}

func TestSeedSampleData(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	require.NoError(t, ts.SeedSampleData(ctx))
	// Seeding twice is a no-op.
	require.NoError(t, ts.SeedSampleData(ctx))

	customers, err := ts.ListCustomers(ctx, &store.FindCustomer{})
	require.NoError(t, err)
	require.Len(t, customers, 5)

	email := "sarah@techstart.io"
	sarah, err := ts.GetCustomer(ctx, &store.FindCustomer{Email: &email})
	require.NoError(t, err)
	require.Equal(t, store.PlanEnterprise, sarah.Plan)

	tickets, err := ts.ListTickets(ctx, &store.FindTicket{CustomerID: &sarah.ID})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Equal(t, "SSO not working", tickets[0].Subject)
	require.Equal(t, store.PriorityCritical, tickets[0].Priority)
}
