package store

import (
	"context"
	"time"
)

type CustomerPlan string

const (
	PlanFree       CustomerPlan = "FREE"
	PlanPremium    CustomerPlan = "PREMIUM"
	PlanEnterprise CustomerPlan = "ENTERPRISE"
)

func (p CustomerPlan) DisplayName() string {
	switch p {
	case PlanPremium:
		return "Premium"
	case PlanEnterprise:
		return "Enterprise"
	default:
		return "Free"
	}
}

type Customer struct {
	ID           int32
	Name         string
	Email        string
	Plan         CustomerPlan
	CompanyName  string
	CreatedTs    int64
	LastActiveTs int64
}

type FindCustomer struct {
	ID    *int32
	Email *string
	Plan  *CustomerPlan
}

type UpdateCustomer struct {
	ID           int32
	Plan         *CustomerPlan
	LastActiveTs *int64
}

func (s *Store) CreateCustomer(ctx context.Context, create *Customer) (*Customer, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.Plan == "" {
		create.Plan = PlanFree
	}
	return s.driver.CreateCustomer(ctx, create)
}

func (s *Store) ListCustomers(ctx context.Context, find *FindCustomer) ([]*Customer, error) {
	return s.driver.ListCustomers(ctx, find)
}

// GetCustomer returns the first customer matching find, or nil.
func (s *Store) GetCustomer(ctx context.Context, find *FindCustomer) (*Customer, error) {
	list, err := s.driver.ListCustomers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateCustomer(ctx context.Context, update *UpdateCustomer) (*Customer, error) {
	return s.driver.UpdateCustomer(ctx, update)
}
