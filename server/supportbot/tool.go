package supportbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/usememos/supportbot/plugin/advisor"
	"github.com/usememos/supportbot/plugin/llm"
	"github.com/usememos/supportbot/store"
)

// CreateTicketTool lets the model open a ticket for the customer of the
// current call. The customer id is read from the call parameters, never
// from the model's arguments.
type CreateTicketTool struct {
	desk   *TicketDesk
	params *advisor.Params
}

var _ llm.Tool = (*CreateTicketTool)(nil)

func NewCreateTicketTool(desk *TicketDesk, params *advisor.Params) *CreateTicketTool {
	return &CreateTicketTool{desk: desk, params: params}
}

func (*CreateTicketTool) Name() string { return "create_ticket" }

func (*CreateTicketTool) Description() string {
	return "Create a new support ticket for the customer. Use this when the user asks for help that requires human intervention, like refunds or technical bugs."
}

func (*CreateTicketTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject":     map[string]any{"type": "string", "description": "Summary of the issue"},
			"description": map[string]any{"type": "string", "description": "Detailed description including specific error messages or requests"},
			"priority":    map[string]any{"type": "string", "description": "Priority level: LOW, MEDIUM, HIGH, or CRITICAL"},
		},
		"required": []string{"subject", "description"},
	}
}

func (t *CreateTicketTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return "Error: failed to parse input JSON.", nil
	}
	customerID, ok := t.params.Int32(advisor.ParamCustomerID)
	if !ok {
		return "Error: no customer is associated with this conversation.", nil
	}
	priority, ok := store.ParseTicketPriority(payload.Priority)
	if !ok {
		priority = store.PriorityMedium
	}

	ticket, err := t.desk.Create(ctx, &CreateTicket{
		CustomerID:  customerID,
		Subject:     payload.Subject,
		Description: payload.Description,
		Priority:    priority,
		Category:    "agent-created",
	})
	switch {
	case errors.Is(err, ErrValidation):
		return "Error: Ticket subject cannot be empty", nil
	case errors.Is(err, ErrCustomerNotFound):
		return fmt.Sprintf("Error: Customer not found with ID %d", customerID), nil
	case err != nil:
		return "", err
	}
	slog.Info("[AGENT TICKET CREATED]", "ticket", ticket.UID, "customer", customerID, "priority", ticket.Priority)
	t.params.Set(paramTicketUID, ticket.UID)
	return "Ticket created successfully! Ticket ID: " + ticket.UID, nil
}
