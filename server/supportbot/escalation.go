package supportbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/usememos/supportbot/plugin/advisor"
	"github.com/usememos/supportbot/store"
)

var escalationPhrases = []string{
	"speak to human", "talk to human", "human agent", "real person",
	"speak to someone", "talk to someone", "speak with someone",
	"manager", "supervisor", "escalate",
	"cancel my subscription", "cancel account", "want a refund", "need a refund", "get my money back",
	"close my account", "delete my account",
	"legal action", "lawyer",
}

// Escalation is the ticket an escalation phrase leads to.
type Escalation struct {
	Trigger     string
	Priority    store.TicketPriority
	Category    string
	Subject     string
	Description string
}

// DetectEscalation finds the first escalation phrase in message.
func DetectEscalation(message string) (*Escalation, bool) {
	trigger, ok := firstMatch(fold(message), escalationPhrases)
	if !ok {
		return nil, false
	}
	return &Escalation{
		Trigger:     trigger,
		Priority:    escalationPriority(trigger),
		Category:    escalationCategory(trigger),
		Subject:     "Escalation Request: " + trigger,
		Description: fmt.Sprintf("Customer requested escalation.\n\nTrigger phrase: %q\n\nOriginal message: %s", trigger, message),
	}, true
}

func escalationPriority(trigger string) store.TicketPriority {
	switch {
	case containsAny(trigger, "legal", "lawyer"):
		return store.PriorityCritical
	case containsAny(trigger, "refund", "cancel"):
		return store.PriorityHigh
	case containsAny(trigger, "manager", "supervisor"):
		return store.PriorityHigh
	default:
		return store.PriorityMedium
	}
}

func escalationCategory(trigger string) string {
	switch {
	case containsAny(trigger, "refund", "cancel", "money"):
		return "billing"
	case containsAny(trigger, "legal", "lawyer"):
		return "legal"
	default:
		return "support"
	}
}

// EscalationAdvisor opens a ticket when the user asks for a human, a refund
// or legal recourse. It never blocks the call.
type EscalationAdvisor struct {
	desk *TicketDesk
}

func NewEscalationAdvisor(desk *TicketDesk) *EscalationAdvisor {
	return &EscalationAdvisor{desk: desk}
}

func (*EscalationAdvisor) Name() string { return "EscalationAdvisor" }
func (*EscalationAdvisor) Order() int   { return 30 }

func (a *EscalationAdvisor) Advise(ctx context.Context, req *advisor.Request, next advisor.Handler) advisor.Stream {
	escalation, ok := DetectEscalation(req.UserText)
	if !ok {
		return next(ctx, req)
	}
	customerID, ok := req.Params.Int32(advisor.ParamCustomerID)
	if !ok {
		slog.Info("[ADVISOR ESCALATION] trigger without customer", "conversation", req.ConversationID, "trigger", escalation.Trigger)
		return next(ctx, req)
	}

	ticket, err := a.desk.Create(ctx, &CreateTicket{
		CustomerID:  customerID,
		Subject:     escalation.Subject,
		Description: escalation.Description,
		Priority:    escalation.Priority,
		Category:    escalation.Category,
		Escalated:   true,
	})
	switch {
	case errors.Is(err, ErrCustomerNotFound):
		note := fmt.Sprintf("Error: Customer not found with ID %d", customerID)
		slog.Warn("[ADVISOR ESCALATION] customer not found", "customer", customerID)
		req.Params.Set(paramEscalationNote, note)
	case err != nil:
		return advisor.Fail(err)
	default:
		slog.Info("[ADVISOR ESCALATION] ticket created", "ticket", ticket.UID, "priority", ticket.Priority, "category", ticket.Category)
		req.Params.Set(paramTicketUID, ticket.UID)
	}
	return next(ctx, req)
}
