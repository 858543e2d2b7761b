package supportbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/usememos/supportbot/plugin/advisor"
	"github.com/usememos/supportbot/store"
)

// CustomerFinder looks up customer profiles.
type CustomerFinder interface {
	GetCustomer(ctx context.Context, find *store.FindCustomer) (*store.Customer, error)
}

var planGuidance = map[store.CustomerPlan]string{
	store.PlanEnterprise: "As an Enterprise customer, provide detailed technical responses and mention dedicated support options. Address them professionally.",
	store.PlanPremium:    "As a Premium customer, acknowledge their subscription and highlight premium features when relevant.",
	store.PlanFree:       "This is a free-tier user. Be helpful but also mention upgrade benefits when they encounter limitations.",
}

// CustomerContextAdvisor adds the customer's profile to the system prompt.
type CustomerContextAdvisor struct {
	customers CustomerFinder
}

func NewCustomerContextAdvisor(customers CustomerFinder) *CustomerContextAdvisor {
	return &CustomerContextAdvisor{customers: customers}
}

func (*CustomerContextAdvisor) Name() string { return "CustomerContextAdvisor" }
func (*CustomerContextAdvisor) Order() int   { return 10 }

func (a *CustomerContextAdvisor) Advise(ctx context.Context, req *advisor.Request, next advisor.Handler) advisor.Stream {
	customerID, ok := req.Params.Int32(advisor.ParamCustomerID)
	if !ok {
		return next(ctx, req)
	}
	customer, err := a.customers.GetCustomer(ctx, &store.FindCustomer{ID: &customerID})
	if err != nil {
		return advisor.Fail(errors.Wrap(err, "failed to load customer context"))
	}
	if customer == nil {
		return next(ctx, req)
	}

	slog.Info("[ADVISOR CUSTOMER CONTEXT]", "customer", customer.ID, "plan", customer.Plan)
	block := buildCustomerContext(customer)
	system := block
	if req.SystemText != "" {
		system = req.SystemText + "\n\n" + block
	}
	return next(ctx, req.WithSystemText(system))
}

func buildCustomerContext(c *store.Customer) string {
	var sb strings.Builder
	sb.WriteString("## Customer Context\n")
	fmt.Fprintf(&sb, "You are speaking with %s.\n", c.Name)
	fmt.Fprintf(&sb, "- Customer Plan: %s\n", c.Plan.DisplayName())
	if c.CompanyName != "" {
		fmt.Fprintf(&sb, "- Company: %s\n", c.CompanyName)
	}
	if guidance, ok := planGuidance[c.Plan]; ok {
		sb.WriteString("\n" + guidance + "\n")
	}
	return sb.String()
}
