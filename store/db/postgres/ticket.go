package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/usememos/supportbot/store"
)

func (d *DB) CreateTicket(ctx context.Context, create *store.Ticket) (*store.Ticket, error) {
	stmt := `INSERT INTO ticket (uid, customer_id, subject, description, status, priority, category, escalated, created_ts, updated_ts)
	         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	         RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID, create.CustomerID, create.Subject, create.Description,
		create.Status, create.Priority, create.Category, create.Escalated,
		create.CreatedTs, create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListTickets(ctx context.Context, find *store.FindTicket) ([]*store.Ticket, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CustomerID; v != nil {
		where, args = append(where, "customer_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Escalated; v != nil {
		where, args = append(where, "escalated = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ExcludeStatus; v != nil {
		where, args = append(where, "status <> "+placeholder(len(args)+1)), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT id, uid, customer_id, subject, description, status, priority, category, escalated, created_ts, updated_ts
		 FROM ticket WHERE %s ORDER BY created_ts DESC, id DESC`,
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Ticket
	for rows.Next() {
		t := &store.Ticket{}
		if err := rows.Scan(&t.ID, &t.UID, &t.CustomerID, &t.Subject, &t.Description, &t.Status, &t.Priority, &t.Category, &t.Escalated, &t.CreatedTs, &t.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (d *DB) UpdateTicket(ctx context.Context, update *store.UpdateTicket) (*store.Ticket, error) {
	set, args := []string{}, []any{}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Priority; v != nil {
		set, args = append(set, "priority = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) > 0 {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, time.Now().Unix())
		args = append(args, update.UID)
		stmt := fmt.Sprintf("UPDATE ticket SET %s WHERE uid = %s", strings.Join(set, ", "), placeholder(len(args)))
		if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
			return nil, err
		}
	}
	list, err := d.ListTickets(ctx, &store.FindTicket{UID: &update.UID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
