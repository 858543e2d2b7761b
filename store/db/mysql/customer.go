package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/usememos/supportbot/store"
)

func (d *DB) CreateCustomer(ctx context.Context, create *store.Customer) (*store.Customer, error) {
	stmt := "INSERT INTO `customer` (`name`, `email`, `plan`, `company_name`, `created_ts`, `last_active_ts`) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := d.db.ExecContext(ctx, stmt, create.Name, create.Email, create.Plan, create.CompanyName, create.CreatedTs, create.LastActiveTs)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	create.ID = int32(id)
	return create, nil
}

func (d *DB) ListCustomers(ctx context.Context, find *store.FindCustomer) ([]*store.Customer, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, "`email` = ?"), append(args, *v)
	}
	if v := find.Plan; v != nil {
		where, args = append(where, "`plan` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `name`, `email`, `plan`, `company_name`, `created_ts`, `last_active_ts` FROM `customer` WHERE %s ORDER BY `id` ASC",
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Customer
	for rows.Next() {
		c := &store.Customer{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Plan, &c.CompanyName, &c.CreatedTs, &c.LastActiveTs); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (d *DB) UpdateCustomer(ctx context.Context, update *store.UpdateCustomer) (*store.Customer, error) {
	set, args := []string{}, []any{}
	if v := update.Plan; v != nil {
		set, args = append(set, "`plan` = ?"), append(args, *v)
	}
	if v := update.LastActiveTs; v != nil {
		set, args = append(set, "`last_active_ts` = ?"), append(args, *v)
	}
	if len(set) > 0 {
		args = append(args, update.ID)
		stmt := fmt.Sprintf("UPDATE `customer` SET %s WHERE `id` = ?", strings.Join(set, ", "))
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return nil, err
		}
	}
	list, err := d.ListCustomers(ctx, &store.FindCustomer{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
