package store

import (
	"context"
	"log/slog"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

type seedTicket struct {
	subject     string
	description string
	status      TicketStatus
	priority    TicketPriority
	category    string
}

var sampleCustomers = []struct {
	customer Customer
	tickets  []seedTicket
}{
	{
		customer: Customer{Name: "John Smith", Email: "john@acme.com", Plan: PlanPremium, CompanyName: "Acme Corp"},
		tickets: []seedTicket{{
			subject:     "Cannot access premium features",
			description: "After upgrading to premium, I still cannot access the advanced reporting features.",
			status:      TicketOpen,
			priority:    PriorityHigh,
			category:    "billing",
		}},
	},
	{
		customer: Customer{Name: "Sarah Johnson", Email: "sarah@techstart.io", Plan: PlanEnterprise, CompanyName: "TechStart"},
		tickets: []seedTicket{{
			subject:     "SSO not working",
			description: "Our team cannot log in through SSO since this morning.",
			status:      TicketOpen,
			priority:    PriorityCritical,
			category:    "technical",
		}},
	},
	{
		customer: Customer{Name: "Mike Brown", Email: "mike.brown@gmail.com", Plan: PlanFree},
		tickets: []seedTicket{{
			subject:     "Export question",
			description: "How do I export my tasks to CSV?",
			status:      TicketInProgress,
			priority:    PriorityMedium,
			category:    "general",
		}},
	},
	{
		customer: Customer{Name: "Emily Davis", Email: "emily@designco.com", Plan: PlanPremium, CompanyName: "Design Co"},
	},
	{
		customer: Customer{Name: "Alex Wilson", Email: "alex@startup.io", Plan: PlanFree, CompanyName: "Startup Inc"},
	},
}

// SeedSampleData inserts the demo customers and their tickets. It does
// nothing when any customer already exists.
func (s *Store) SeedSampleData(ctx context.Context) error {
	existing, err := s.ListCustomers(ctx, &FindCustomer{})
	if err != nil {
		return errors.Wrap(err, "failed to list customers")
	}
	if len(existing) > 0 {
		return nil
	}

	for _, sample := range sampleCustomers {
		c := sample.customer
		customer, err := s.CreateCustomer(ctx, &c)
		if err != nil {
			return errors.Wrapf(err, "failed to seed customer %s", c.Email)
		}
		for _, t := range sample.tickets {
			if _, err := s.CreateTicket(ctx, &Ticket{
				UID:         shortuuid.New(),
				CustomerID:  customer.ID,
				Subject:     t.subject,
				Description: t.description,
				Status:      t.status,
				Priority:    t.priority,
				Category:    t.category,
			}); err != nil {
				return errors.Wrapf(err, "failed to seed ticket for %s", c.Email)
			}
		}
	}
	slog.Info("seeded sample data", slog.Int("customers", len(sampleCustomers)))
	return nil
}
