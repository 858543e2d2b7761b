package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/usememos/supportbot/store"
)

func (d *DB) CreateConversationMessages(ctx context.Context, conversationID string, creates []*store.ConversationMessage, keep int) ([]*store.ConversationMessage, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, create := range creates {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO `conversation_message` (`conversation_id`, `role`, `content`, `created_ts`) VALUES (?, ?, ?, ?)",
			conversationID, create.Role, create.Content, create.CreatedTs,
		)
		if err != nil {
			return nil, err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		create.ID = int32(id)
	}

	if keep > 0 {
		// MySQL rejects LIMIT inside IN and self-reference in DELETE, hence the derived table.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM `conversation_message` WHERE `conversation_id` = ? AND `id` NOT IN (SELECT `id` FROM (SELECT `id` FROM `conversation_message` WHERE `conversation_id` = ? ORDER BY `id` DESC LIMIT ?) AS `recent`)",
			conversationID, conversationID, keep,
		); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return creates, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT `id`, `conversation_id`, `role`, `content`, `created_ts` FROM `conversation_message` WHERE `conversation_id` = ? ORDER BY `id` ASC",
		find.ConversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.ConversationMessage
	for rows.Next() {
		m := &store.ConversationMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (d *DB) DeleteConversationMessages(ctx context.Context, conversationID string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM `conversation_message` WHERE `conversation_id` = ?", conversationID)
	return err
}

func (d *DB) UpsertConversationSession(ctx context.Context, upsert *store.UpsertConversationSession) (*store.ConversationSession, error) {
	stmt := "INSERT INTO `conversation_session` (`conversation_id`, `customer_id`, `last_sentiment`, `message_count`, `ticket_uid`, `ended`, `created_ts`, `updated_ts`) " +
		"VALUES (?, ?, ?, ?, ?, FALSE, ?, ?) " +
		"ON DUPLICATE KEY UPDATE " +
		"`customer_id` = IF(VALUES(`customer_id`) <> 0, VALUES(`customer_id`), `customer_id`), " +
		"`last_sentiment` = IF(VALUES(`last_sentiment`) <> '', VALUES(`last_sentiment`), `last_sentiment`), " +
		"`message_count` = `message_count` + VALUES(`message_count`), " +
		"`ticket_uid` = IF(VALUES(`ticket_uid`) <> '', VALUES(`ticket_uid`), `ticket_uid`), " +
		"`ended` = FALSE, " +
		"`updated_ts` = VALUES(`updated_ts`)"
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ConversationID, upsert.CustomerID, upsert.LastSentiment, upsert.MessageDelta, upsert.TicketUID, upsert.Ts, upsert.Ts,
	); err != nil {
		return nil, err
	}
	list, err := d.ListConversationSessions(ctx, &store.FindConversationSession{ConversationID: &upsert.ConversationID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListConversationSessions(ctx context.Context, find *store.FindConversationSession) ([]*store.ConversationSession, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ConversationID; v != nil {
		where, args = append(where, "`conversation_id` = ?"), append(args, *v)
	}
	if v := find.CustomerID; v != nil {
		where, args = append(where, "`customer_id` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `conversation_id`, `customer_id`, `last_sentiment`, `message_count`, `ticket_uid`, `ended`, `created_ts`, `updated_ts` FROM `conversation_session` WHERE %s ORDER BY `updated_ts` DESC, `id` DESC",
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.ConversationSession
	for rows.Next() {
		s := &store.ConversationSession{}
		if err := rows.Scan(&s.ID, &s.ConversationID, &s.CustomerID, &s.LastSentiment, &s.MessageCount, &s.TicketUID, &s.Ended, &s.CreatedTs, &s.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (d *DB) EndConversationSession(ctx context.Context, conversationID string, endedTs int64) error {
	_, err := d.db.ExecContext(ctx,
		"UPDATE `conversation_session` SET `ended` = TRUE, `updated_ts` = ? WHERE `conversation_id` = ?",
		endedTs, conversationID,
	)
	return err
}
