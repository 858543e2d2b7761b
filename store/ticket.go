package store

import (
	"context"
	"strings"
	"time"
)

type TicketStatus string

const (
	TicketOpen            TicketStatus = "OPEN"
	TicketInProgress      TicketStatus = "IN_PROGRESS"
	TicketWaitingCustomer TicketStatus = "WAITING_CUSTOMER"
	TicketResolved        TicketStatus = "RESOLVED"
	TicketClosed          TicketStatus = "CLOSED"
)

// ParseTicketStatus accepts any letter case.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch st := TicketStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case TicketOpen, TicketInProgress, TicketWaitingCustomer, TicketResolved, TicketClosed:
		return st, true
	default:
		return "", false
	}
}

type TicketPriority string

const (
	PriorityLow      TicketPriority = "LOW"
	PriorityMedium   TicketPriority = "MEDIUM"
	PriorityHigh     TicketPriority = "HIGH"
	PriorityCritical TicketPriority = "CRITICAL"
)

// ParseTicketPriority accepts any letter case.
func ParseTicketPriority(s string) (TicketPriority, bool) {
	switch p := TicketPriority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, true
	default:
		return "", false
	}
}

type Ticket struct {
	ID          int32
	UID         string
	CustomerID  int32
	Subject     string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Category    string
	Escalated   bool
	CreatedTs   int64
	UpdatedTs   int64
}

type FindTicket struct {
	ID         *int32
	UID        *string
	CustomerID *int32
	Escalated  *bool
	// ExcludeStatus drops tickets in this status, e.g. CLOSED for active tickets.
	ExcludeStatus *TicketStatus
}

type UpdateTicket struct {
	UID      string
	Status   *TicketStatus
	Priority *TicketPriority
}

func (s *Store) CreateTicket(ctx context.Context, create *Ticket) (*Ticket, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = create.CreatedTs
	if create.Status == "" {
		create.Status = TicketOpen
	}
	if create.Priority == "" {
		create.Priority = PriorityMedium
	}
	return s.driver.CreateTicket(ctx, create)
}

func (s *Store) ListTickets(ctx context.Context, find *FindTicket) ([]*Ticket, error) {
	return s.driver.ListTickets(ctx, find)
}

// GetTicket returns the first ticket matching find, or nil.
func (s *Store) GetTicket(ctx context.Context, find *FindTicket) (*Ticket, error) {
	list, err := s.driver.ListTickets(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateTicket(ctx context.Context, update *UpdateTicket) (*Ticket, error) {
	return s.driver.UpdateTicket(ctx, update)
}
