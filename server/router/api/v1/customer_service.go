package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/usememos/supportbot/store"
)

type customerResponse struct {
	ID           int32  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Plan         string `json:"plan"`
	CompanyName  string `json:"companyName,omitempty"`
	CreatedTs    int64  `json:"createdTs"`
	LastActiveTs int64  `json:"lastActiveTs,omitempty"`
}

type createCustomerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Plan        string `json:"plan"`
	CompanyName string `json:"companyName"`
}

type updatePlanRequest struct {
	Plan string `json:"plan"`
}

func (s *APIV1Service) registerCustomerRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/customers")
	g.GET("", s.listCustomers)
	g.POST("", s.createCustomer)
	g.GET("/:id", s.getCustomer)
	g.PATCH("/:id/plan", s.updateCustomerPlan)
	g.GET("/:id/tickets", s.listCustomerTickets)
}

func convertCustomer(c *store.Customer) customerResponse {
	return customerResponse{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Plan:         string(c.Plan),
		CompanyName:  c.CompanyName,
		CreatedTs:    c.CreatedTs,
		LastActiveTs: c.LastActiveTs,
	}
}

func parsePlan(raw string) (store.CustomerPlan, bool) {
	switch p := store.CustomerPlan(strings.ToUpper(strings.TrimSpace(raw))); p {
	case store.PlanFree, store.PlanPremium, store.PlanEnterprise:
		return p, true
	default:
		return "", false
	}
}

func parseCustomerParam(c *echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid customer id")
	}
	return int32(id), nil
}

func (s *APIV1Service) listCustomers(c *echo.Context) error {
	find := &store.FindCustomer{}
	if raw := c.QueryParam("plan"); raw != "" {
		plan, ok := parsePlan(raw)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown plan")
		}
		find.Plan = &plan
	}
	customers, err := s.Store.ListCustomers(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]customerResponse, 0, len(customers))
	for _, customer := range customers {
		resp = append(resp, convertCustomer(customer))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) createCustomer(c *echo.Context) error {
	var req createCustomerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and email are required")
	}
	plan := store.PlanFree
	if req.Plan != "" {
		p, ok := parsePlan(req.Plan)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown plan")
		}
		plan = p
	}
	ctx := c.Request().Context()
	existing, err := s.Store.GetCustomer(ctx, &store.FindCustomer{Email: &req.Email})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	customer, err := s.Store.CreateCustomer(ctx, &store.Customer{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Plan:        plan,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, convertCustomer(customer))
}

func (s *APIV1Service) getCustomer(c *echo.Context) error {
	id, err := parseCustomerParam(c)
	if err != nil {
		return err
	}
	customer, err := s.Store.GetCustomer(c.Request().Context(), &store.FindCustomer{ID: &id})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if customer == nil {
		return echo.NewHTTPError(http.StatusNotFound, "customer not found")
	}
	return c.JSON(http.StatusOK, convertCustomer(customer))
}

func (s *APIV1Service) updateCustomerPlan(c *echo.Context) error {
	id, err := parseCustomerParam(c)
	if err != nil {
		return err
	}
	var req updatePlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	plan, ok := parsePlan(req.Plan)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown plan")
	}
	customer, err := s.Store.UpdateCustomer(c.Request().Context(), &store.UpdateCustomer{ID: id, Plan: &plan})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if customer == nil {
		return echo.NewHTTPError(http.StatusNotFound, "customer not found")
	}
	return c.JSON(http.StatusOK, convertCustomer(customer))
}

func (s *APIV1Service) listCustomerTickets(c *echo.Context) error {
	id, err := parseCustomerParam(c)
	if err != nil {
		return err
	}
	activeOnly := c.QueryParam("active") == "true"
	tickets, err := s.Service.Desk().ListForCustomer(c.Request().Context(), id, activeOnly)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertTickets(tickets))
}
