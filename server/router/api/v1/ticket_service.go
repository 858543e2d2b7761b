package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/usememos/supportbot/server/supportbot"
	"github.com/usememos/supportbot/store"
)

type ticketResponse struct {
	UID         string `json:"id"`
	CustomerID  int32  `json:"customerId"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Category    string `json:"category,omitempty"`
	Escalated   bool   `json:"escalated"`
	CreatedTs   int64  `json:"createdTs"`
	UpdatedTs   int64  `json:"updatedTs"`
}

type createTicketRequest struct {
	CustomerID  int32  `json:"customerId"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

type updateTicketRequest struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

func (s *APIV1Service) registerTicketRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/tickets")
	g.POST("", s.createTicket)
	g.GET("/escalated", s.listEscalatedTickets)
	g.GET("/:uid", s.getTicket)
	g.PATCH("/:uid", s.updateTicket)
	g.POST("/:uid/close", s.closeTicket)
}

func convertTicket(t *store.Ticket) ticketResponse {
	return ticketResponse{
		UID:         t.UID,
		CustomerID:  t.CustomerID,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Category:    t.Category,
		Escalated:   t.Escalated,
		CreatedTs:   t.CreatedTs,
		UpdatedTs:   t.UpdatedTs,
	}
}

func convertTickets(tickets []*store.Ticket) []ticketResponse {
	resp := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, convertTicket(t))
	}
	return resp
}

func (s *APIV1Service) createTicket(c *echo.Context) error {
	var req createTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	create := &supportbot.CreateTicket{
		CustomerID:  req.CustomerID,
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Priority != "" {
		priority, ok := store.ParseTicketPriority(req.Priority)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown priority")
		}
		create.Priority = priority
	}
	ticket, err := s.Service.Desk().Create(c.Request().Context(), create)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, convertTicket(ticket))
}

func (s *APIV1Service) getTicket(c *echo.Context) error {
	ticket, err := s.Service.Desk().Get(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertTicket(ticket))
}

func (s *APIV1Service) listEscalatedTickets(c *echo.Context) error {
	tickets, err := s.Service.Desk().ListEscalated(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertTickets(tickets))
}

func (s *APIV1Service) updateTicket(c *echo.Context) error {
	var req updateTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" && req.Priority == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status or priority is required")
	}
	var (
		status   store.TicketStatus
		priority store.TicketPriority
		ok       bool
	)
	if req.Status != "" {
		if status, ok = store.ParseTicketStatus(req.Status); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		}
	}
	if req.Priority != "" {
		if priority, ok = store.ParseTicketPriority(req.Priority); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown priority")
		}
	}

	ctx, uid, desk := c.Request().Context(), c.Param("uid"), s.Service.Desk()
	var (
		ticket *store.Ticket
		err    error
	)
	if status != "" {
		if ticket, err = desk.UpdateStatus(ctx, uid, status); err != nil {
			return toHTTPError(err)
		}
	}
	if priority != "" {
		if ticket, err = desk.UpdatePriority(ctx, uid, priority); err != nil {
			return toHTTPError(err)
		}
	}
	return c.JSON(http.StatusOK, convertTicket(ticket))
}

func (s *APIV1Service) closeTicket(c *echo.Context) error {
	ticket, err := s.Service.Desk().Close(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertTicket(ticket))
}
